package command

import (
	"slices"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultHintTTL is used when NewHints gets a non-positive TTL.
const DefaultHintTTL = time.Minute

// Hints is a TTL cache of values learned from earlier command results, keyed
// by kind (e.g. "connections"). Argument completion reads it so that Tab
// never needs a remote call. A nil *Hints remembers nothing.
type Hints struct {
	cache *ttlcache.Cache[string, []string]
}

// NewHints creates a Hints cache whose entries expire after ttl. No expiry
// goroutine is started: Recall skips stale entries and Remember evicts them.
func NewHints(ttl time.Duration) *Hints {
	if ttl <= 0 {
		ttl = DefaultHintTTL
	}
	c := ttlcache.New[string, []string](
		ttlcache.WithTTL[string, []string](ttl),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	return &Hints{cache: c}
}

// Remember replaces the values stored under kind.
func (h *Hints) Remember(kind string, values []string) {
	if h == nil {
		return
	}
	h.cache.DeleteExpired()
	h.cache.Set(kind, slices.Clone(values), ttlcache.DefaultTTL)
}

// Recall returns the values stored under kind, or nil if absent or expired.
func (h *Hints) Recall(kind string) []string {
	if h == nil {
		return nil
	}
	item := h.cache.Get(kind)
	if item == nil {
		return nil
	}
	return slices.Clone(item.Value())
}

// Close drops every remembered value.
func (h *Hints) Close() {
	if h == nil {
		return
	}
	h.cache.DeleteAll()
}
