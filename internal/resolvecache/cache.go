// Package resolvecache memoises override lookups.
//
// Both positive and negative results are stored and never evicted: an
// override file added after the first lookup of its key is not seen until
// the process restarts.
package resolvecache

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ComputeFunc resolves key. ok=false is a negative result and is cached.
type ComputeFunc func() (value string, ok bool)

type entry struct {
	value string
	ok    bool
}

type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Shared  uint64 `json:"shared"`
	Entries int    `json:"entries"`
}

type Cache struct {
	name    string
	entries sync.Map // string -> entry
	group   singleflight.Group
	size    atomic.Int64
	hits    atomic.Uint64
	misses  atomic.Uint64
	shared  atomic.Uint64
}

func New(name string) *Cache {
	return &Cache{name: name}
}

func (c *Cache) Name() string { return c.name }

// Lookup returns the cached result for key. present is false when the key has
// never been computed.
func (c *Cache) Lookup(key string) (value string, ok bool, present bool) {
	v, found := c.entries.Load(key)
	if !found {
		return "", false, false
	}
	e := v.(entry)
	return e.value, e.ok, true
}

// GetOrCompute returns the cached result for key, calling compute only when
// the key is absent. Concurrent misses on the same key share one call. Once a
// value is stored for a key it never changes.
func (c *Cache) GetOrCompute(key string, compute ComputeFunc) (string, bool) {
	if v, found := c.entries.Load(key); found {
		c.hits.Add(1)
		e := v.(entry)
		return e.value, e.ok
	}
	v, _, shared := c.group.Do(key, func() (any, error) {
		if v, found := c.entries.Load(key); found {
			return v, nil
		}
		c.misses.Add(1)
		value, ok := compute()
		actual, loaded := c.entries.LoadOrStore(key, entry{value: value, ok: ok})
		if !loaded {
			c.size.Add(1)
		}
		return actual, nil
	})
	if shared {
		c.shared.Add(1)
	}
	e := v.(entry)
	return e.value, e.ok
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Shared:  c.shared.Load(),
		Entries: int(c.size.Load()),
	}
}
