// Package command implements the shell's command registry, the active
// command set derived from a capability snapshot, and completion.
package command

import (
	"context"
	"errors"

	"github.com/Paranoid-AF/ftpsh/capability"
)

// ErrExit is returned by a command body to end the session cleanly.
var ErrExit = errors.New("exit requested")

// Invoker performs one remote call and decodes its result into out.
type Invoker interface {
	Invoke(ctx context.Context, operation string, args []string, out any) error
}

// Env is what a command body gets for a single execution. Bodies must not
// keep Remote after they return.
type Env struct {
	// Args are the tokens following the command name.
	Args []string
	// Remote is the session's channel.
	Remote Invoker
	// Active is the session's active command set; Active.Caps() is the
	// capability snapshot.
	Active *ActiveSet
	// Hints collects values later offered by argument completion.
	Hints *Hints
}

// Caps returns the capability snapshot of the session.
func (e *Env) Caps() *capability.Set {
	if e.Active == nil {
		return nil
	}
	return e.Active.Caps()
}

// Func is a command body. A non-nil result is rendered by the session.
type Func func(ctx context.Context, env *Env) (any, error)

// ArgsFunc returns argument candidates for the argument at index pos.
// It runs on every Tab press and must not perform remote calls.
type ArgsFunc func(active *ActiveSet, hints *Hints, pos int) []string

// Command is one named entry of the registry.
type Command struct {
	// Name is the identifier typed by the user. Matched case-insensitively.
	Name string
	// Help is a one-line description shown by "help".
	Help string
	// Usage shows the argument syntax, e.g. "close <id>".
	Usage string
	// Requires names the capability the host must expose for the command
	// to be active. Empty means always active.
	Requires string
	Run      Func
	Args     ArgsFunc
}

// UsageLine returns Usage, or Name when no usage is set.
func (c *Command) UsageLine() string {
	if c.Usage != "" {
		return c.Usage
	}
	return c.Name
}
