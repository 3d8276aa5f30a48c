// Package shell runs one interactive administration session against an FTP
// server host: it fetches the host's capabilities once, restricts the
// command surface to what the host supports, and loops reading, dispatching
// and printing until the user exits or the session is cancelled.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	ftpsh "github.com/Paranoid-AF/ftpsh"
	"github.com/Paranoid-AF/ftpsh/capability"
	"github.com/Paranoid-AF/ftpsh/command"
)

// State is the lifecycle state of a Session.
type State int

const (
	Connecting State = iota
	Ready
	Executing
	Terminating
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Executing:
		return "executing"
	case Terminating:
		return "terminating"
	case Closed:
		return "closed"
	}
	return "unknown"
}

var (
	// ErrTerminated is returned by Execute when the line ended the session.
	ErrTerminated = errors.New("session terminated")
	// ErrInterrupt is returned by a LineReader when the user presses Ctrl-C.
	ErrInterrupt = errors.New("interrupted")
)

// Channel is the session's connection to the host.
type Channel interface {
	command.Invoker
	Close() error
}

// LineReader supplies input lines. Returning io.EOF or ErrInterrupt ends
// the session cleanly.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Option configures a Session.
type Option func(*Session)

// WithOutput sets where results are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithErrorOutput sets where failures are printed. Defaults to os.Stderr.
func WithErrorOutput(w io.Writer) Option {
	return func(s *Session) { s.errOut = w }
}

// WithFormat sets the result format: text, json, yaml or toml.
func WithFormat(format string) Option {
	return func(s *Session) { s.renderer = NewRenderer(format) }
}

// WithPrompt sets the input prompt.
func WithPrompt(prompt string) Option {
	return func(s *Session) { s.prompt = prompt }
}

// WithHintTTL sets how long completion hints stay available.
func WithHintTTL(d time.Duration) Option {
	return func(s *Session) { s.hintTTL = d }
}

// Session is one run of the shell from connect to termination.
type Session struct {
	ch       Channel
	registry *command.Registry
	out      io.Writer
	errOut   io.Writer
	renderer *Renderer
	prompt   string
	hintTTL  time.Duration

	// Set by Start and read-only afterwards.
	caps   *capability.Set
	active *command.ActiveSet
	hints  *command.Hints

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
}

// New creates a session in the Connecting state. The session owns ch from
// now on and closes it when it terminates.
func New(ch Channel, registry *command.Registry, opts ...Option) *Session {
	s := &Session{
		ch:       ch,
		registry: registry,
		out:      os.Stdout,
		errOut:   os.Stderr,
		renderer: NewRenderer("text"),
		prompt:   "> ",
		state:    Connecting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fetches the capability snapshot and derives the active command set.
// On failure the channel is closed, the session is Closed and the error is
// returned; no partial shell is offered.
func (s *Session) Start(ctx context.Context) error {
	if st := s.State(); st != Connecting {
		return fmt.Errorf("start: session is %s", st)
	}

	caps, err := capability.Fetch(ctx, s.ch)
	if err != nil {
		s.Close()
		return fmt.Errorf("connect: %w", err)
	}

	s.caps = caps
	s.active = s.registry.ActiveFor(caps)
	s.hints = command.NewHints(s.hintTTL)
	s.setState(Ready)
	slog.Debug("session ready", "modules", caps.Len(), "commands", s.active.Names())
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	slog.Debug("session state", "from", prev, "to", st)
}

// Capabilities returns the snapshot fetched by Start.
func (s *Session) Capabilities() *capability.Set { return s.caps }

// Active returns the active command set derived by Start.
func (s *Session) Active() *command.ActiveSet { return s.active }

// Complete returns completion candidates for buf with the cursor at byte
// offset cursor. It never calls the host.
func (s *Session) Complete(buf string, cursor int) []string {
	return command.Complete(command.Context{Buffer: buf, Cursor: cursor, Hints: s.hints}, s.active)
}

// Execute runs one input line. Failures of the command are printed and the
// session stays Ready; the returned error is nil. When the line exits the
// session or the context is cancelled, the session moves to Terminating
// and an error wrapping ErrTerminated is returned.
func (s *Session) Execute(ctx context.Context, line string) error {
	if st := s.State(); st != Ready {
		return fmt.Errorf("execute: session is %s", st)
	}
	s.setState(Executing)

	err := s.dispatch(ctx, line)
	switch {
	case errors.Is(err, command.ErrExit):
		s.setState(Terminating)
		return ErrTerminated
	case errors.Is(err, ftpsh.ErrCancelled) || ctx.Err() != nil:
		s.setState(Terminating)
		if err == nil {
			err = ctx.Err()
		}
		slog.Info("session cancelled", "error", err)
		return fmt.Errorf("%w: %w", ErrTerminated, err)
	case err != nil:
		s.reportError(err)
	}
	s.setState(Ready)
	return nil
}

func (s *Session) dispatch(ctx context.Context, line string) error {
	words, err := splitWords(line)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return nil
	}

	name := words[0]
	cmd, ok := s.active.Lookup(name)
	if !ok {
		suggestion, _ := s.active.Suggest(name)
		return &ftpsh.UnknownCommandError{Name: name, Suggestion: suggestion}
	}

	slog.Debug("execute", "command", cmd.Name, "args", words[1:])
	result, err := cmd.Run(ctx, &command.Env{
		Args:   words[1:],
		Remote: s.ch,
		Active: s.active,
		Hints:  s.hints,
	})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := s.renderer.Render(s.out, result); err != nil {
		return fmt.Errorf("render %s result: %w", cmd.Name, err)
	}
	return nil
}

func (s *Session) reportError(err error) {
	switch ftpsh.Kind(err) {
	case ftpsh.ErrChannelUnavailable:
		slog.Warn("channel unavailable", "error", err)
		fmt.Fprintf(s.errOut, "error: %v (the server connection is not restored automatically)\n", err)
	default:
		fmt.Fprintf(s.errOut, "error: %v\n", err)
	}
}

// Run reads and executes lines until the user exits, input ends, or ctx is
// cancelled, then closes the session. Clean terminations return nil.
func (s *Session) Run(ctx context.Context, in LineReader) error {
	if st := s.State(); st != Ready {
		return fmt.Errorf("run: session is %s", st)
	}
	defer s.Close()

	for {
		line, err := s.readLine(ctx, in)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				slog.Info("session cancelled while waiting for input")
				return nil
			case errors.Is(err, io.EOF), errors.Is(err, ErrInterrupt):
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrTerminated) {
				return nil
			}
			return err
		}
	}
}

// readLine waits for the next line while observing cancellation. A reader
// blocked when ctx is cancelled is abandoned.
func (s *Session) readLine(ctx context.Context, in LineReader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := in.ReadLine(s.prompt)
		ch <- result{line, err}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close terminates the session: the channel is closed and the state
// becomes Closed. A session that never became Ready goes straight from
// Connecting to Closed. Close is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		switch s.State() {
		case Ready, Executing:
			s.setState(Terminating)
		}
		if err := s.ch.Close(); err != nil {
			slog.Debug("close channel", "error", err)
		}
		s.hints.Close()
		s.setState(Closed)
	})
}
