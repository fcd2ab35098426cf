package pipeline

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/lru"
)

// DefaultCacheSize is the default soft limit of a Cache.
const DefaultCacheSize = 64

type cacheKey struct {
	name        string
	format      gputypes.TextureFormat
	sampleCount int
}

// Cache keeps pipeline states keyed by processor name and target.
//
// States evicted by the soft limit may still be referenced by submitted
// work, so they are retired and destroyed by the next ReleaseRetired.
type Cache struct {
	device  gpucore.Device
	states  *lru.Cache[cacheKey, *PipelineState]
	retired []*PipelineState
}

// NewCache returns a cache for device. softLimit <= 0 selects
// DefaultCacheSize.
func NewCache(device gpucore.Device, softLimit int) *Cache {
	if softLimit <= 0 {
		softLimit = DefaultCacheSize
	}
	c := &Cache{device: device}
	c.states = lru.New(softLimit, func(_ cacheKey, s *PipelineState) {
		c.retired = append(c.retired, s)
	})
	return c
}

// FindOrCreate returns the state for gp rendering into target, with gp set
// as the processor that writes its uniforms.
func (c *Cache) FindOrCreate(gp GeometryProcessor, target Target) (*PipelineState, error) {
	key := cacheKey{name: gp.Name(), format: target.Format, sampleCount: max(target.SampleCount, 1)}
	s, err := c.states.GetOrCreate(key, func() (*PipelineState, error) {
		return NewPipelineState(c.device, gp, target)
	})
	if err != nil {
		return nil, err
	}
	s.SetProcessor(gp)
	return s, nil
}

// Len returns the number of cached states.
func (c *Cache) Len() int { return c.states.Len() }

// CacheStats contains pipeline cache counters.
type CacheStats struct {
	States    int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	s := c.states.Stats()
	return CacheStats{States: s.Len, Hits: s.Hits, Misses: s.Misses, Evictions: s.Evictions}
}

// ReleaseRetired destroys states evicted since the last call.
func (c *Cache) ReleaseRetired() {
	for _, s := range c.retired {
		s.Destroy()
	}
	c.retired = c.retired[:0]
}

// Destroy destroys every state.
func (c *Cache) Destroy() {
	c.states.Clear()
	c.ReleaseRetired()
}

// Discard drops every state without releasing GPU objects.
func (c *Cache) Discard() {
	c.states.Clear()
	for _, s := range c.retired {
		s.Discard()
	}
	c.retired = c.retired[:0]
}
