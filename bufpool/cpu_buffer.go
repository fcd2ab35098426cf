package bufpool

import (
	"github.com/gogpu/ge/internal/logging"
	"github.com/gogpu/ge/internal/refcnt"
)

// CpuBuffer is a reference-counted block of host memory.
//
// The memory is dropped when the last reference is released.
type CpuBuffer struct {
	refcnt.RefCnt
	data []byte
}

func newCpuBuffer(size int) *CpuBuffer {
	b := &CpuBuffer{data: make([]byte, size)}
	b.Init(func() { b.data = nil })
	return b
}

// Bytes returns the buffer memory. It is nil once the buffer is released.
func (b *CpuBuffer) Bytes() []byte { return b.data }

// Size returns the capacity in bytes.
func (b *CpuBuffer) Size() int { return len(b.data) }

// CpuBufferCache keeps up to a fixed number of default-size CpuBuffers for
// reuse. Buffers of any other size bypass the cache.
type CpuBufferCache struct {
	slots       []*CpuBuffer
	defaultSize int
}

// NewCpuBufferCache returns a cache with capacity slots for buffers of
// exactly defaultSize bytes.
func NewCpuBufferCache(capacity, defaultSize int) *CpuBufferCache {
	return &CpuBufferCache{
		slots:       make([]*CpuBuffer, max(capacity, 0)),
		defaultSize: defaultSize,
	}
}

// MakeBuffer returns a buffer of exactly size bytes. The caller owns one
// reference and must Unref it when done.
//
// For the default size, a cached buffer referenced only by the cache is
// reused; otherwise a free slot is filled. When every slot is busy, or size
// is not the default, the buffer is not cached.
func (c *CpuBufferCache) MakeBuffer(size int) *CpuBuffer {
	if size == c.defaultSize {
		free := -1
		for i, b := range c.slots {
			if b == nil {
				if free < 0 {
					free = i
				}
				continue
			}
			if b.IsUnique() {
				b.Ref()
				return b
			}
		}
		if free >= 0 {
			b := newCpuBuffer(size)
			b.Ref()
			c.slots[free] = b
			return b
		}
		logging.L().Debug("bufpool: cpu buffer cache full", "capacity", len(c.slots))
	}
	return newCpuBuffer(size)
}

// ReleaseAll drops the cache's reference to every cached buffer. Buffers
// still borrowed stay valid until their borrowers release them. It must be
// called before the cache is discarded.
func (c *CpuBufferCache) ReleaseAll() {
	for i, b := range c.slots {
		if b != nil {
			b.Unref()
			c.slots[i] = nil
		}
	}
}

// Len returns the number of occupied slots.
func (c *CpuBufferCache) Len() int {
	n := 0
	for _, b := range c.slots {
		if b != nil {
			n++
		}
	}
	return n
}

// Capacity returns the number of slots.
func (c *CpuBufferCache) Capacity() int { return len(c.slots) }

// DefaultSize returns the only size the cache keeps.
func (c *CpuBufferCache) DefaultSize() int { return c.defaultSize }

// contains reports whether b occupies a slot.
func (c *CpuBufferCache) contains(b *CpuBuffer) bool {
	for _, s := range c.slots {
		if s == b {
			return true
		}
	}
	return false
}
