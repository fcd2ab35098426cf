package resource

import (
	"math"
	"slices"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/logging"
)

// DefaultMaxBytes is the default budget of a Cache (256 MB).
const DefaultMaxBytes int64 = 1 << 28

// Stats contains cache statistics.
type Stats struct {
	Textures      int
	Budgeted      int
	Cleanable     int
	BudgetedBytes int64
	MaxBytes      int64
	ScratchHits   uint64
	UniqueHits    uint64
	Purged        uint64
}

// Cache tracks every texture created through a Provider.
//
// Textures whose references dropped to zero are cleanable: they stay alive
// for reuse until the budget is exceeded or a purge is requested, and are
// purged least recently used first.
//
// Cache is not safe for concurrent use; it belongs to one context.
type Cache struct {
	maxBytes      int64
	budgetedBytes int64
	budgetedCount int

	all       map[*Texture]struct{}
	scratch   map[ScratchKey][]*Texture
	unique    map[UniqueKey]*Texture
	cleanable *simplelru.LRU[*Texture, struct{}]
	timestamp uint64

	scratchHits uint64
	uniqueHits  uint64
	purged      uint64
}

// NewCache creates a cache with the given budget. maxBytes <= 0 selects
// DefaultMaxBytes.
func NewCache(maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	// The queue is bounded by the byte budget, not by entry count.
	cleanable, err := simplelru.NewLRU[*Texture, struct{}](math.MaxInt32, nil)
	if err != nil {
		panic(err)
	}
	return &Cache{
		maxBytes:  maxBytes,
		all:       make(map[*Texture]struct{}),
		scratch:   make(map[ScratchKey][]*Texture),
		unique:    make(map[UniqueKey]*Texture),
		cleanable: cleanable,
	}
}

// MaxBytes returns the budget.
func (c *Cache) MaxBytes() int64 { return c.maxBytes }

// SetMaxBytes changes the budget and purges idle textures until the cache
// fits or nothing idle remains.
func (c *Cache) SetMaxBytes(n int64) {
	c.maxBytes = n
	c.purgeAsNeeded()
}

// BudgetedBytes returns the bytes used by budgeted textures.
func (c *Cache) BudgetedBytes() int64 { return c.budgetedBytes }

// Len returns the number of live textures.
func (c *Cache) Len() int { return len(c.all) }

// IsOverrun reports whether budgeted bytes exceed the budget.
func (c *Cache) IsOverrun() bool { return c.budgetedBytes > c.maxBytes }

// WouldFit reports whether bytes more budgeted memory fits the budget.
func (c *Cache) WouldFit(bytes int64) bool {
	return c.budgetedBytes+bytes <= c.maxBytes
}

// Insert adds a freshly created backend texture and returns it with one
// reference held by the caller.
func (c *Cache) Insert(tex gpucore.Texture, key ScratchKey, budgeted bool) *Texture {
	t := &Texture{
		cache:      c,
		tex:        tex,
		refs:       1,
		scratchKey: key,
		size:       ComputeSize(tex.Format(), tex.Width(), tex.Height(), tex.SampleCount(), tex.MipLevelCount() > 1),
		budgeted:   budgeted,
	}
	c.all[t] = struct{}{}
	if budgeted {
		c.budgetedBytes += t.size
		c.budgetedCount++
	}
	c.purgeAsNeeded()
	return t
}

// Wrap adds a texture owned by someone else. Wrapped textures are never
// budgeted, reused as scratch or destroyed by the cache.
func (c *Cache) Wrap(tex gpucore.Texture) *Texture {
	t := &Texture{
		cache:   c,
		tex:     tex,
		refs:    1,
		size:    ComputeSize(tex.Format(), tex.Width(), tex.Height(), tex.SampleCount(), tex.MipLevelCount() > 1),
		wrapped: true,
	}
	c.all[t] = struct{}{}
	return t
}

// FindAndRefScratch returns an idle texture matching key with one added
// reference, or nil.
func (c *Cache) FindAndRefScratch(key ScratchKey) *Texture {
	list := c.scratch[key]
	if len(list) == 0 {
		return nil
	}
	t := list[len(list)-1]
	c.removeScratch(t)
	c.cleanable.Remove(t)
	t.Ref()
	c.scratchHits++
	return t
}

// FindAndRefUnique returns the texture holding key with one added
// reference, or nil.
func (c *Cache) FindAndRefUnique(key UniqueKey) *Texture {
	t := c.unique[key]
	if t == nil {
		return nil
	}
	if t.refs == 0 {
		c.cleanable.Remove(t)
	}
	t.Ref()
	c.uniqueHits++
	return t
}

// AssignUniqueKey gives t the unique key, taking it from any texture that
// held it before. An invalid key removes t's key.
func (c *Cache) AssignUniqueKey(t *Texture, key UniqueKey) {
	if !key.IsValid() {
		c.RemoveUniqueKey(t)
		return
	}
	if t.uniqueKey == key {
		return
	}
	if old := c.unique[key]; old != nil {
		c.RemoveUniqueKey(old)
	}
	if t.uniqueKey.IsValid() {
		delete(c.unique, t.uniqueKey)
	}
	c.removeScratch(t)
	t.uniqueKey = key
	c.unique[key] = t
}

// RemoveUniqueKey clears t's unique key. An idle texture that loses its key
// either becomes a scratch candidate or, if unbudgeted, is purged.
func (c *Cache) RemoveUniqueKey(t *Texture) {
	if !t.uniqueKey.IsValid() {
		return
	}
	if c.unique[t.uniqueKey] == t {
		delete(c.unique, t.uniqueKey)
	}
	t.uniqueKey = UniqueKey{}
	if t.refs > 0 {
		return
	}
	if t.usableAsScratch() {
		c.scratch[t.scratchKey] = append(c.scratch[t.scratchKey], t)
	} else if !t.budgeted {
		c.remove(t)
	}
}

// PurgeToMakeHeadroom purges idle textures in LRU order until bytes more
// budgeted memory fits. If that is impossible nothing is purged and false
// is returned.
func (c *Cache) PurgeToMakeHeadroom(bytes int64) bool {
	if bytes > c.maxBytes {
		return false
	}
	if c.WouldFit(bytes) {
		return true
	}
	projected := c.budgetedBytes
	queue := c.cleanable.Keys()
	n := 0
	for i, t := range queue {
		if t.budgeted {
			projected -= t.size
		}
		if projected+bytes <= c.maxBytes {
			n = i + 1
			break
		}
	}
	if n == 0 {
		return false
	}
	for _, t := range queue[:n] {
		c.remove(t)
	}
	logging.L().Debug("resource: purged for headroom",
		"textures", n, "headroom", bytes, "budgeted", c.budgetedBytes)
	return true
}

// PurgeUnlocked destroys every idle texture.
func (c *Cache) PurgeUnlocked() {
	for _, t := range c.cleanable.Keys() {
		c.remove(t)
	}
}

// ReleaseAll destroys every texture, including referenced ones.
func (c *Cache) ReleaseAll() {
	for t := range c.all {
		c.remove(t)
	}
	c.cleanable.Purge()
	clear(c.scratch)
	clear(c.unique)
}

// Stats returns a snapshot of the cache state.
func (c *Cache) Stats() Stats {
	return Stats{
		Textures:      len(c.all),
		Budgeted:      c.budgetedCount,
		Cleanable:     c.cleanable.Len(),
		BudgetedBytes: c.budgetedBytes,
		MaxBytes:      c.maxBytes,
		ScratchHits:   c.scratchHits,
		UniqueHits:    c.uniqueHits,
		Purged:        c.purged,
	}
}

func (c *Cache) refsReachedZero(t *Texture) {
	c.timestamp++
	t.timestamp = c.timestamp
	if t.usableAsScratch() {
		c.scratch[t.scratchKey] = append(c.scratch[t.scratchKey], t)
	}
	c.cleanable.Add(t, struct{}{})

	if t.budgeted {
		hasKey := t.uniqueKey.IsValid() || t.scratchKey.IsValid()
		if !c.IsOverrun() && hasKey {
			return
		}
	} else {
		// Unbudgeted textures with a unique key stay reachable by that key.
		if t.uniqueKey.IsValid() {
			return
		}
		if !t.wrapped && t.scratchKey.IsValid() && c.WouldFit(t.size) {
			t.MakeBudgeted(true)
			return
		}
	}
	c.remove(t)
}

func (c *Cache) budgetChanged(t *Texture) {
	if t.budgeted {
		c.budgetedBytes += t.size
		c.budgetedCount++
	} else {
		c.budgetedBytes -= t.size
		c.budgetedCount--
	}
	if t.refs == 0 {
		c.removeScratch(t)
		if t.usableAsScratch() {
			c.scratch[t.scratchKey] = append(c.scratch[t.scratchKey], t)
		}
	}
	c.purgeAsNeeded()
}

// purgeAsNeeded purges idle textures, oldest first, while over budget.
func (c *Cache) purgeAsNeeded() {
	for c.IsOverrun() {
		t, _, ok := c.cleanable.GetOldest()
		if !ok {
			return
		}
		c.remove(t)
	}
}

func (c *Cache) removeScratch(t *Texture) {
	list := c.scratch[t.scratchKey]
	if i := slices.Index(list, t); i >= 0 {
		list = slices.Delete(list, i, i+1)
		if len(list) == 0 {
			delete(c.scratch, t.scratchKey)
		} else {
			c.scratch[t.scratchKey] = list
		}
	}
}

func (c *Cache) remove(t *Texture) {
	if _, ok := c.all[t]; !ok {
		return
	}
	delete(c.all, t)
	c.removeScratch(t)
	if t.uniqueKey.IsValid() && c.unique[t.uniqueKey] == t {
		delete(c.unique, t.uniqueKey)
	}
	c.cleanable.Remove(t)
	if t.budgeted {
		c.budgetedBytes -= t.size
		c.budgetedCount--
	}
	c.purged++
	if t.wrapped {
		t.destroyed = true
		return
	}
	t.release()
}
