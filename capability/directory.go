// Package capability holds the snapshot of optional host modules a shell
// session may rely on. A Set is fetched once when the session connects and
// never refreshed; host-side changes become visible only to a new session.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	ftpsh "github.com/Paranoid-AF/ftpsh"
)

// Tier is one of the two categories the host groups its modules under.
type Tier int

const (
	Simple Tier = iota
	Extended
)

func (t Tier) String() string {
	switch t {
	case Simple:
		return "simple"
	case Extended:
		return "extended"
	}
	return "unknown"
}

// Invoker performs one remote call and decodes its result into out.
type Invoker interface {
	Invoke(ctx context.Context, operation string, args []string, out any) error
}

// Set is an immutable snapshot of the host's simple and extended modules.
type Set struct {
	tiers map[string]Tier
}

// New builds a Set. Empty and duplicate names are dropped; a name listed in
// both tiers is kept as simple.
func New(simple, extended []string) *Set {
	s := &Set{tiers: make(map[string]Tier, len(simple)+len(extended))}
	for _, name := range simple {
		if name != "" {
			s.tiers[name] = Simple
		}
	}
	for _, name := range extended {
		if name == "" {
			continue
		}
		if tier, ok := s.tiers[name]; ok {
			if tier == Simple {
				slog.Warn("module reported in both tiers", "module", name)
			}
			continue
		}
		s.tiers[name] = Extended
	}
	return s
}

// Fetch queries the host for its simple and extended modules and merges
// them into one Set.
func Fetch(ctx context.Context, inv Invoker) (*Set, error) {
	var simple, extended []string
	if err := inv.Invoke(ctx, ftpsh.OpListSimpleModules, nil, &simple); err != nil {
		return nil, fmt.Errorf("fetch simple modules: %w", err)
	}
	if err := inv.Invoke(ctx, ftpsh.OpListExtendedModules, nil, &extended); err != nil {
		return nil, fmt.Errorf("fetch extended modules: %w", err)
	}
	s := New(simple, extended)
	slog.Debug("capabilities fetched", "simple", s.Simple(), "extended", s.Extended())
	return s, nil
}

// Has reports whether name is present in either tier.
func (s *Set) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.tiers[name]
	return ok
}

// Tier returns the tier name belongs to.
func (s *Set) Tier(name string) (Tier, bool) {
	if s == nil {
		return 0, false
	}
	t, ok := s.tiers[name]
	return t, ok
}

// Simple returns the simple module names, sorted.
func (s *Set) Simple() []string { return s.names(Simple) }

// Extended returns the extended module names, sorted.
func (s *Set) Extended() []string { return s.names(Extended) }

// All returns every module name, sorted.
func (s *Set) All() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.tiers))
	for name := range s.tiers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of modules across both tiers.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tiers)
}

func (s *Set) names(t Tier) []string {
	if s == nil {
		return nil
	}
	var out []string
	for name, tier := range s.tiers {
		if tier == t {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
