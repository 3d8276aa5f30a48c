package capability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ftpsh "github.com/Paranoid-AF/ftpsh"
)

// scriptedInvoker answers operations from a fixed table.
type scriptedInvoker struct {
	results map[string]any
	errs    map[string]error
	calls   []string
}

func (s *scriptedInvoker) Invoke(_ context.Context, op string, _ []string, out any) error {
	s.calls = append(s.calls, op)
	if err := s.errs[op]; err != nil {
		return err
	}
	data, err := json.Marshal(s.results[op])
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func TestFetchMergesTiers(t *testing.T) {
	inv := &scriptedInvoker{results: map[string]any{
		ftpsh.OpListSimpleModules:   []string{"CORE", "DIR"},
		ftpsh.OpListExtendedModules: []string{"TLS"},
	}}

	set, err := Fetch(context.Background(), inv)
	require.NoError(t, err)

	assert.Equal(t, []string{ftpsh.OpListSimpleModules, ftpsh.OpListExtendedModules}, inv.calls)
	assert.Equal(t, []string{"CORE", "DIR"}, set.Simple())
	assert.Equal(t, []string{"TLS"}, set.Extended())
	assert.Equal(t, []string{"CORE", "DIR", "TLS"}, set.All())
	assert.True(t, set.Has("DIR"))
	assert.True(t, set.Has("TLS"))
	assert.False(t, set.Has("BILLING"))
	assert.False(t, set.Has("dir"), "capability names are matched exactly")

	tier, ok := set.Tier("TLS")
	require.True(t, ok)
	assert.Equal(t, Extended, tier)
}

func TestFetchNullListsYieldEmptySet(t *testing.T) {
	inv := &scriptedInvoker{results: map[string]any{}}

	set, err := Fetch(context.Background(), inv)
	require.NoError(t, err)
	assert.Zero(t, set.Len())
	assert.Empty(t, set.Simple())
}

func TestFetchPropagatesFailure(t *testing.T) {
	inv := &scriptedInvoker{
		results: map[string]any{ftpsh.OpListSimpleModules: []string{"fs"}},
		errs:    map[string]error{ftpsh.OpListExtendedModules: ftpsh.ErrChannelUnavailable},
	}

	set, err := Fetch(context.Background(), inv)
	assert.Nil(t, set)
	assert.True(t, errors.Is(err, ftpsh.ErrChannelUnavailable))
	assert.Contains(t, err.Error(), "extended")
}

func TestNewDeduplicatesAndResolvesOverlap(t *testing.T) {
	set := New([]string{"fs", "fs", "", "auth"}, []string{"auth", "tls", "tls"})

	assert.Equal(t, []string{"auth", "fs"}, set.Simple())
	assert.Equal(t, []string{"tls"}, set.Extended())
	assert.Equal(t, 3, set.Len())

	tier, ok := set.Tier("auth")
	require.True(t, ok)
	assert.Equal(t, Simple, tier)
}

func TestSetAccessorsReturnCopies(t *testing.T) {
	set := New([]string{"b", "a"}, nil)

	got := set.Simple()
	got[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, set.Simple())
}

func TestNilSet(t *testing.T) {
	var set *Set
	assert.False(t, set.Has("fs"))
	assert.Zero(t, set.Len())
	assert.Nil(t, set.All())
	_, ok := set.Tier("fs")
	assert.False(t, ok)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "simple", Simple.String())
	assert.Equal(t, "extended", Extended.String())
	assert.Equal(t, "unknown", Tier(7).String())
}

func TestNewTiers(t *testing.T) {
	tests := []struct {
		name         string
		simple       []string
		extended     []string
		wantSimple   []string
		wantExtended []string
	}{
		{"empty", nil, nil, []string{}, []string{}},
		{"sorted", []string{"fs", "authentication"}, []string{"tls", "connections"}, []string{"authentication", "fs"}, []string{"connections", "tls"}},
		{"overlap kept simple", []string{"tls"}, []string{"tls", "connections"}, []string{"tls"}, []string{"connections"}},
		{"blank names dropped", []string{"", "fs"}, []string{""}, []string{"fs"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := New(tt.simple, tt.extended)
			got := [][]string{nonNil(set.Simple()), nonNil(set.Extended())}
			want := [][]string{tt.wantSimple, tt.wantExtended}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("tiers mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
