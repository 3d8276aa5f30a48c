// Command ftpsh is an interactive administration shell for an FTP server
// host. It connects to the host's Unix socket, asks which modules the host
// exposes and offers only the commands those modules support.
//
// Usage:
//
//	ftpsh                      # interactive, line editor with Tab completion
//	ftpsh --format json        # print results as JSON
//	echo status | ftpsh        # read commands from stdin
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"

	ftpsh "github.com/Paranoid-AF/ftpsh"
	"github.com/Paranoid-AF/ftpsh/admin"
	"github.com/Paranoid-AF/ftpsh/channel"
	"github.com/Paranoid-AF/ftpsh/command"
	"github.com/Paranoid-AF/ftpsh/shell"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Exit codes.
const (
	exitOK       = 0
	exitFatal    = 1
	exitBadFlags = 2
)

// Options are the command-line flags of ftpsh.
type Options struct {
	Config  string        `short:"f" long:"config" description:"Configuration file (TOML)" value-name:"PATH"`
	Socket  string        `short:"s" long:"socket" description:"Host socket path" value-name:"PATH"`
	Timeout time.Duration `short:"t" long:"timeout" description:"Per-call timeout, e.g. 5s"`
	Format  string        `long:"format" description:"Result format" choice:"text" choice:"json" choice:"yaml" choice:"toml"`
	Verbose bool          `short:"v" long:"verbose" description:"Log every request and state change to stderr"`
	Version bool          `long:"version" description:"Print version and exit"`
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "ftpsh"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitBadFlags
	}
	if len(rest) > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", rest)
		return exitBadFlags
	}

	if opts.Version {
		fmt.Fprintln(stdout, "ftpsh", Version)
		return exitOK
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFatal
	}
	for _, w := range ftpsh.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}

	socketPath := opts.Socket
	if socketPath == "" {
		socketPath = ftpsh.ResolveSocketPath(cfg)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = ftpsh.ResolveTimeout(cfg)
	}
	format := opts.Format
	if format == "" {
		format = ftpsh.ResolveFormat(cfg)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionID := uuid.NewString()
	slog.Debug("connecting", "socket", socketPath, "timeout", timeout, "session", sessionID)

	ch, err := channel.Dial(ctx, socketPath, channel.WithTimeout(timeout), channel.WithSessionID(sessionID))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFatal
	}

	registry := command.NewRegistry()
	command.RegisterBuiltins(registry)
	admin.Register(registry)

	in, closeInput := openInput(stdin)
	defer closeInput()

	session := shell.New(ch, registry,
		shell.WithOutput(stdout),
		shell.WithErrorOutput(stderr),
		shell.WithFormat(format),
		shell.WithPrompt(cfg.Prompt),
		shell.WithHintTTL(cfg.HintTTL.Duration),
	)
	if err := session.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFatal
	}
	if ed, ok := in.(*Editor); ok {
		ed.SetCompleter(session.Complete)
		ed.Printf("ftpsh %s: %d commands available, type help to list them\n", Version, session.Active().Len())
	}

	if err := session.Run(ctx, in); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFatal
	}
	return exitOK
}

func loadConfig(path string) (*ftpsh.Config, error) {
	if path != "" {
		return ftpsh.LoadConfigFile(path)
	}
	return ftpsh.LoadConfig()
}

// openInput returns the line editor when stdin is a terminal and a plain
// line scanner otherwise.
func openInput(stdin io.Reader) (shell.LineReader, func()) {
	if f, ok := stdin.(*os.File); ok && isTerminal(f) {
		ed, err := NewEditor()
		if err == nil {
			return ed, ed.Close
		}
		slog.Debug("line editor unavailable, reading lines", "error", err)
	}
	return newScanReader(stdin), func() {}
}
