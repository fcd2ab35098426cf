// Package lru provides a generic soft-limit cache with eviction callbacks.
//
// When an insertion pushes the cache above its soft limit, the least
// recently used quarter of the entries is evicted in one batch and handed to
// the OnEvict callback. This amortizes eviction for caches of GPU objects
// whose release must be explicit.
//
//	c := lru.New[string, *Thing](64, func(k string, v *Thing) { v.Destroy() })
//	t := c.GetOrCreate("key", newThing)
package lru

import "sync"

// Cache is a generic LRU cache with a soft limit.
//
// Cache is safe for concurrent use and must not be copied after creation.
// OnEvict runs without the lock held.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*entry[V]
	softLimit int
	tick      int64
	onEvict   func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

type entry[V any] struct {
	value V
	atime int64
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// New creates a cache with the given soft limit. A softLimit of 0 means
// unlimited. onEvict may be nil.
func New[K comparable, V any](softLimit int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*entry[V]),
		softLimit: softLimit,
		onEvict:   onEvict,
	}
}

// Get returns the value for key and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.tick++
	e.atime = c.tick
	return e.value, true
}

// Set stores value under key. A replaced value is passed to OnEvict.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	var evicted []kv[K, V]
	if old, ok := c.entries[key]; ok {
		evicted = append(evicted, kv[K, V]{key, old.value})
	}
	c.insert(key, value)
	evicted = append(evicted, c.trim()...)
	c.mu.Unlock()

	c.notify(evicted)
}

// GetOrCreate returns the cached value for key or stores the result of
// create. If create fails nothing is stored.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		c.tick++
		e.atime = c.tick
		c.mu.Unlock()
		return e.value, nil
	}
	c.misses++

	value, err := create()
	if err != nil {
		c.mu.Unlock()
		var zero V
		return zero, err
	}
	c.insert(key, value)
	// The new entry has the newest tick and always survives trimming.
	evicted := c.trim()
	c.mu.Unlock()

	c.notify(evicted)
	return value, nil
}

// Delete removes key without calling OnEvict and reports whether it was
// present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		return true
	}
	return false
}

// Clear removes every entry, passing each to OnEvict.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	evicted := make([]kv[K, V], 0, len(c.entries))
	for k, e := range c.entries {
		evicted = append(evicted, kv[K, V]{k, e.value})
	}
	c.entries = make(map[K]*entry[V])
	c.tick = 0
	c.mu.Unlock()

	c.notify(evicted)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:       len(c.entries),
		Capacity:  c.softLimit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

type kv[K comparable, V any] struct {
	key   K
	value V
}

// insert stores a fresh entry. Caller must hold c.mu.
func (c *Cache[K, V]) insert(key K, value V) {
	c.tick++
	c.entries[key] = &entry[V]{value: value, atime: c.tick}
}

// trim evicts the oldest entries down to 3/4 of the soft limit once the
// limit is exceeded. Caller must hold c.mu.
func (c *Cache[K, V]) trim() []kv[K, V] {
	if c.softLimit <= 0 || len(c.entries) <= c.softLimit {
		return nil
	}
	target := max(c.softLimit*3/4, 1)
	n := len(c.entries) - target

	type aged struct {
		key   K
		atime int64
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.atime})
	}

	// Partial selection sort; n is small relative to the cache.
	evicted := make([]kv[K, V], 0, n)
	for i := 0; i < n; i++ {
		oldest := i
		for j := i + 1; j < len(all); j++ {
			if all[j].atime < all[oldest].atime {
				oldest = j
			}
		}
		all[i], all[oldest] = all[oldest], all[i]
		k := all[i].key
		evicted = append(evicted, kv[K, V]{k, c.entries[k].value})
		delete(c.entries, k)
	}
	c.evictions += uint64(n)
	return evicted
}

func (c *Cache[K, V]) notify(evicted []kv[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range evicted {
		c.onEvict(e.key, e.value)
	}
}
