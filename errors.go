package ftpsh

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors wrap or match one of these so callers can
// classify failures with errors.Is.
var (
	// ErrChannelUnavailable means the channel could not be established, was
	// lost, or a call did not complete within the configured timeout.
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrServerFault means the host executed the operation and reported an error.
	ErrServerFault = errors.New("server fault")
	// ErrUnknownCommand means the leading token matched no active command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrParse means the arguments of a resolved command were malformed.
	ErrParse = errors.New("parse error")
	// ErrCancelled means an external cancellation was observed mid-invocation.
	ErrCancelled = errors.New("cancelled")
)

// ServerFault carries the host's error detail.
type ServerFault struct {
	Operation string
	Code      string
	Message   string
}

func (e *ServerFault) Error() string {
	return fmt.Sprintf("server fault in %s: %s: %s", e.Operation, e.Code, e.Message)
}

func (e *ServerFault) Is(target error) bool { return target == ErrServerFault }

// UnknownCommandError names the unresolved token and, when one is close
// enough, an active command the user may have meant.
type UnknownCommandError struct {
	Name       string
	Suggestion string
}

func (e *UnknownCommandError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown command %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown command %q", e.Name)
}

func (e *UnknownCommandError) Is(target error) bool { return target == ErrUnknownCommand }

// ParseError reports malformed input for an otherwise-resolved command.
// Command is empty when the line itself could not be tokenized.
type ParseError struct {
	Command string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Command == "" {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Usagef returns a ParseError for cmd.
func Usagef(cmd, format string, args ...any) error {
	return &ParseError{Command: cmd, Reason: fmt.Sprintf(format, args...)}
}

// Kind returns the error kind err belongs to, or nil when it belongs to none.
func Kind(err error) error {
	for _, k := range []error{ErrCancelled, ErrChannelUnavailable, ErrServerFault, ErrUnknownCommand, ErrParse} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
