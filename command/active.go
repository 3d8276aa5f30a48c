package command

import (
	"slices"
	"strings"

	"github.com/Paranoid-AF/ftpsh/capability"
)

// ActiveSet is the subset of registered commands a session may use.
// It is derived once from the capability snapshot and never changes.
type ActiveSet struct {
	caps    *capability.Set
	cmds    []*Command // sorted by lower-cased name
	byName  map[string]*Command
	suggest *suggester
}

func newActiveSet(caps *capability.Set, cmds []*Command) *ActiveSet {
	a := &ActiveSet{
		caps:   caps,
		cmds:   slices.Clone(cmds),
		byName: make(map[string]*Command, len(cmds)),
	}
	slices.SortFunc(a.cmds, func(x, y *Command) int {
		return strings.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
	})
	names := make([]string, 0, len(a.cmds))
	for _, cmd := range a.cmds {
		key := strings.ToLower(cmd.Name)
		a.byName[key] = cmd
		names = append(names, key)
	}
	a.suggest = newSuggester(names)
	return a
}

// Caps returns the capability snapshot the set was derived from.
func (a *ActiveSet) Caps() *capability.Set {
	if a == nil {
		return nil
	}
	return a.caps
}

// Lookup resolves name case-insensitively.
func (a *ActiveSet) Lookup(name string) (*Command, bool) {
	if a == nil {
		return nil, false
	}
	cmd, ok := a.byName[strings.ToLower(name)]
	return cmd, ok
}

// Names returns the lower-cased command names in lexicographic order.
func (a *ActiveSet) Names() []string {
	if a == nil {
		return nil
	}
	names := make([]string, len(a.cmds))
	for i, cmd := range a.cmds {
		names[i] = strings.ToLower(cmd.Name)
	}
	return names
}

// Commands returns the active commands sorted by name.
func (a *ActiveSet) Commands() []*Command {
	if a == nil {
		return nil
	}
	return slices.Clone(a.cmds)
}

// Len returns the number of active commands.
func (a *ActiveSet) Len() int {
	if a == nil {
		return 0
	}
	return len(a.cmds)
}

// Suggest returns the active command name closest to a mistyped token.
func (a *ActiveSet) Suggest(name string) (string, bool) {
	if a == nil {
		return "", false
	}
	return a.suggest.nearest(name)
}
