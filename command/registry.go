package command

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Paranoid-AF/ftpsh/capability"
)

// Registry is the ordered set of every command known to the process.
// Commands are registered at start-up; the registry is read-only afterwards.
type Registry struct {
	cmds   []*Command
	byName map[string]*Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register adds cmd. Empty or blank-containing names, a nil body and names
// colliding case-insensitively with an earlier command are errors.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("register: nil command")
	}
	if cmd.Name == "" || strings.ContainsAny(cmd.Name, " \t\r\n") {
		return fmt.Errorf("register: invalid command name %q", cmd.Name)
	}
	if cmd.Run == nil {
		return fmt.Errorf("register %s: missing body", cmd.Name)
	}
	key := strings.ToLower(cmd.Name)
	if prev, ok := r.byName[key]; ok {
		return fmt.Errorf("register %s: name collides with %q", cmd.Name, prev.Name)
	}
	r.byName[key] = cmd
	r.cmds = append(r.cmds, cmd)
	return nil
}

// MustRegister registers every cmd and panics on the first error.
func (r *Registry) MustRegister(cmds ...*Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

// All returns the registered commands in registration order.
func (r *Registry) All() []*Command {
	return slices.Clone(r.cmds)
}

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.cmds) }

// ActiveFor returns the commands usable against a host exposing caps: every
// command without a requirement, plus those whose required capability is in
// either tier of caps.
func (r *Registry) ActiveFor(caps *capability.Set) *ActiveSet {
	var active []*Command
	for _, cmd := range r.cmds {
		if cmd.Requires == "" || caps.Has(cmd.Requires) {
			active = append(active, cmd)
		}
	}
	return newActiveSet(caps, active)
}
