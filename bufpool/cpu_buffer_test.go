package bufpool

import "testing"

func TestCpuBufferCacheReuse(t *testing.T) {
	const capacity, size = 3, 256
	c := NewCpuBufferCache(capacity, size)
	defer c.ReleaseAll()

	var held []*CpuBuffer
	for range capacity {
		b := c.MakeBuffer(size)
		if b.Size() != size {
			t.Fatalf("Size() = %d, want %d", b.Size(), size)
		}
		if !c.contains(b) {
			t.Fatal("default-size buffer not cached while a slot is free")
		}
		if b.RefCount() != 2 {
			t.Fatalf("RefCount() = %d, want 2 (cache + caller)", b.RefCount())
		}
		held = append(held, b)
	}
	if c.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", c.Len(), capacity)
	}

	// All slots busy: falls back to an uncached buffer.
	extra := c.MakeBuffer(size)
	if c.contains(extra) {
		t.Error("overflow buffer must not be cached")
	}
	if !extra.IsUnique() {
		t.Errorf("overflow RefCount() = %d, want 1", extra.RefCount())
	}
	extra.Unref()
	if extra.Bytes() != nil {
		t.Error("uncached buffer memory not released on last Unref")
	}

	// Releasing a borrowed buffer makes it eligible for reuse.
	held[1].Unref()
	again := c.MakeBuffer(size)
	if again != held[1] {
		t.Error("released buffer was not reused")
	}
	again.Unref()
	held[0].Unref()
	held[2].Unref()
}

func TestCpuBufferCacheDistinctAllocationsBounded(t *testing.T) {
	const capacity, size = 4, 64
	c := NewCpuBufferCache(capacity, size)
	defer c.ReleaseAll()

	seen := make(map[*CpuBuffer]bool)
	for i := range 100 {
		b := c.MakeBuffer(size)
		seen[b] = true
		if i%2 == 0 {
			b.Unref()
			continue
		}
		// Hold odd buffers briefly, never more than capacity at once.
		defer b.Unref()
		if i > 2*capacity-2 {
			break
		}
	}
	if len(seen) > capacity {
		t.Errorf("distinct allocations = %d, want <= %d", len(seen), capacity)
	}
}

func TestCpuBufferCacheNonDefaultSizeBypasses(t *testing.T) {
	c := NewCpuBufferCache(2, 128)
	defer c.ReleaseAll()

	for _, size := range []int{1, 127, 129, 4096} {
		b := c.MakeBuffer(size)
		if c.contains(b) {
			t.Errorf("MakeBuffer(%d) returned a cached buffer", size)
		}
		if b.Size() != size {
			t.Errorf("MakeBuffer(%d).Size() = %d", size, b.Size())
		}
		b.Unref()
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after non-default requests, want 0", c.Len())
	}
}

func TestCpuBufferCacheReleaseAll(t *testing.T) {
	c := NewCpuBufferCache(2, 32)
	borrowed := c.MakeBuffer(32)
	idle := c.MakeBuffer(32)
	idle.Unref()

	c.ReleaseAll()
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after ReleaseAll, want 0", c.Len())
	}
	if idle.Bytes() != nil {
		t.Error("idle cached buffer not freed by ReleaseAll")
	}
	if borrowed.Bytes() == nil || !borrowed.IsUnique() {
		t.Error("borrowed buffer must stay valid with the borrower as sole owner")
	}
	borrowed.Unref()
	if borrowed.Bytes() != nil {
		t.Error("borrowed buffer not freed by its last Unref")
	}
}
