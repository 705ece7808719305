package compiler

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/veloq/querylanguage"
)

// QueryKey identifies a compiled delegate: the structural fingerprint
// of the extracted expression, the owning context, and the execution
// form. The sync and lazy delegates of one shape are distinct entries.
type QueryKey struct {
	Shape   querylanguage.Fingerprint
	Context string
	Async   bool
}

func (k QueryKey) String() string {
	return fmt.Sprintf("%s|%s|%t", k.Context, k.Shape, k.Async)
}

// flightKey is the singleflight key. The variable-length fields are
// length-prefixed so a context name containing the separator cannot
// alias another key's flight.
func (k QueryKey) flightKey() string {
	return fmt.Sprintf("%d:%s|%d:%s|%t", len(k.Context), k.Context, len(k.Shape), k.Shape, k.Async)
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Cache stores compiled delegates for the lifetime of the process. It
// is unbounded: the population is one entry per authored query shape,
// which is fixed by the program text.
type Cache struct {
	mu      sync.RWMutex
	entries map[QueryKey]any
	group   singleflight.Group
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[QueryKey]any)}
}

// GetOrAdd returns the entry under key, invoking compile to produce it
// on first use. Concurrent callers for the same key share a single
// compile invocation; a failed compile is not stored, so a later call
// retries it.
func (c *Cache) GetOrAdd(key QueryKey, compile func() (any, error)) (any, error) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, nil
	}
	v, err, _ := c.group.Do(key.flightKey(), func() (any, error) {
		c.mu.RLock()
		v, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}
		c.misses.Add(1)
		v, err := compile()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Len returns the number of cached delegates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the hit and miss counters. A miss is
// counted once per compile, not once per waiting caller.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
