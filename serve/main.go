// Command ftphostd is a reference host for ftpsh. It listens on a Unix domain
// socket and answers the administration operations from an in-memory
// simulated FTP server whose modules come from the [host] config section.
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

	"github.com/jessevdk/go-flags"

	ftpsh "github.com/Paranoid-AF/ftpsh"
	"github.com/Paranoid-AF/ftpsh/host"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Options are the command-line flags of ftphostd.
type Options struct {
	Config  string `short:"f" long:"config" description:"Configuration file (TOML)" value-name:"PATH"`
	Socket  string `short:"s" long:"socket" description:"Socket path to listen on" value-name:"PATH"`
	Verbose bool   `short:"v" long:"verbose" description:"Log every request and response to stderr"`
	Version bool   `long:"version" description:"Print version and exit"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil))
}

// run serves until ctx is cancelled. ready, when set, receives the server
// once it listens.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, ready chan<- *host.Server) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "ftphostd"
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if opts.Version {
		fmt.Fprintln(stdout, "ftphostd", Version)
		return 0
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	var (
		cfg *ftpsh.Config
		err error
	)
	if opts.Config != "" {
		cfg, err = ftpsh.LoadConfigFile(opts.Config)
	} else {
		cfg, err = ftpsh.LoadConfig()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	for _, w := range ftpsh.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}

	socketPath := opts.Socket
	if socketPath == "" {
		socketPath = ftpsh.ResolveSocketPath(cfg)
	}

	slog.Info("starting", "socket", socketPath, "simple", cfg.Host.SimpleModules, "extended", cfg.Host.ExtendedModules)

	srv, err := host.NewServer(socketPath)
	if err != nil {
		slog.Error("failed to start server", "error", err)
		return 1
	}
	NewSimulator(cfg.Host).Register(srv)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		slog.Info("shutting down")
		srv.Close()
	}()

	slog.Info("ready")
	if ready != nil {
		ready <- srv
	}
	err = srv.Serve()
	cancel()
	<-done
	if err != nil {
		slog.Error("server error", "error", err)
		return 1
	}
	return 0
}
