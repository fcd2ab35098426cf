package bufpool

import (
	"errors"
	"testing"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/gputest"
)

func newTestPool(t *testing.T, blockSize int64) (*AllocPool, *gputest.Device, *CpuBufferCache) {
	t.Helper()
	dev := gputest.NewDevice()
	cache := NewCpuBufferCache(8, int(blockSize))
	p := NewAllocPool(dev, cache, gpucore.BufferUsageVertex, blockSize)
	t.Cleanup(func() {
		p.Destroy()
		cache.ReleaseAll()
	})
	return p, dev, cache
}

func TestAllocPoolThreeLargeAllocations(t *testing.T) {
	p, dev, _ := newTestPool(t, 65536)

	var spans []Span
	for i := range 3 {
		s, err := p.MakeSpace(40000, 4)
		if err != nil {
			t.Fatalf("MakeSpace #%d: %v", i, err)
		}
		for j := range s.Data {
			s.Data[j] = byte(i + 1)
		}
		spans = append(spans, s)
	}
	if p.NumBlocks() < 2 {
		t.Fatalf("NumBlocks() = %d, want >= 2", p.NumBlocks())
	}
	if len(dev.Uploads) != 0 {
		t.Fatalf("%d uploads before Flush, want 0", len(dev.Uploads))
	}

	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := dev.UploadedBytes(gpucore.BufferUsageVertex); got != 120000 {
		t.Errorf("uploaded bytes = %d, want 120000", got)
	}
	for i, s := range spans {
		gb := s.Buffer.(*gputest.Buffer)
		if gb.Data[s.Offset] != byte(i+1) || gb.Data[s.Offset+39999] != byte(i+1) {
			t.Errorf("span %d contents not uploaded", i)
		}
	}
}

func TestAllocPoolAlignment(t *testing.T) {
	p, _, _ := newTestPool(t, 1024)

	tests := []struct {
		size, align int64
	}{
		{3, 1}, {8, 4}, {5, 12}, {24, 24}, {7, 16}, {36, 36}, {1, 7},
	}
	for _, tt := range tests {
		s, err := p.MakeSpace(tt.size, tt.align)
		if err != nil {
			t.Fatalf("MakeSpace(%d, %d): %v", tt.size, tt.align, err)
		}
		if s.Offset%tt.align != 0 {
			t.Errorf("MakeSpace(%d, %d) offset %d not aligned", tt.size, tt.align, s.Offset)
		}
		if int64(len(s.Data)) != tt.size {
			t.Errorf("len(Data) = %d, want %d", len(s.Data), tt.size)
		}
	}
	if p.NumBlocks() != 1 {
		t.Errorf("NumBlocks() = %d, want 1", p.NumBlocks())
	}
}

func TestAllocPoolSpansStayValidAcrossBlocks(t *testing.T) {
	p, dev, _ := newTestPool(t, 64)

	first, err := p.MakeSpace(48, 4)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.MakeSpace(48, 4)
	if err != nil {
		t.Fatal(err)
	}
	if first.Buffer == second.Buffer {
		t.Fatal("second allocation should open a new block")
	}
	// Writing to the first span after the block change is still legal.
	first.Data[0] = 0xAB
	second.Data[0] = 0xCD
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := first.Buffer.(*gputest.Buffer).Data[0]; got != 0xAB {
		t.Errorf("first block byte = %#x, want 0xAB", got)
	}
	if got := second.Buffer.(*gputest.Buffer).Data[0]; got != 0xCD {
		t.Errorf("second block byte = %#x, want 0xCD", got)
	}
	if len(dev.Uploads) != 2 {
		t.Errorf("uploads = %d, want 2", len(dev.Uploads))
	}
}

func TestAllocPoolOversizedBlock(t *testing.T) {
	p, dev, cache := newTestPool(t, 256)

	s, err := p.MakeSpace(1000, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s.Buffer.Size() != 1000 {
		t.Errorf("block size = %d, want 1000", s.Buffer.Size())
	}
	if cache.Len() != 0 {
		t.Error("oversized staging buffer must bypass the cache")
	}
	p.Reset()
	if !dev.Buffers[0].Destroyed {
		t.Error("oversized block should be destroyed on Reset")
	}
}

func TestAllocPoolFlushClosesBlock(t *testing.T) {
	p, _, _ := newTestPool(t, 256)

	a, _ := p.MakeSpace(16, 4)
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	b, _ := p.MakeSpace(16, 4)
	if a.Buffer == b.Buffer {
		t.Error("allocation after Flush reused the flushed block")
	}
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if p.Stats().BytesUploaded != 32 {
		t.Errorf("BytesUploaded = %d, want 32", p.Stats().BytesUploaded)
	}
}

func TestAllocPoolResetReusesBlocks(t *testing.T) {
	p, dev, cache := newTestPool(t, 128)

	for range 3 {
		if _, err := p.MakeSpace(100, 4); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	p.Reset()
	if p.NumBlocks() != 0 {
		t.Fatalf("NumBlocks() = %d after Reset, want 0", p.NumBlocks())
	}

	for range 3 {
		if _, err := p.MakeSpace(100, 4); err != nil {
			t.Fatal(err)
		}
	}
	if len(dev.Buffers) != 3 {
		t.Errorf("GPU buffers created = %d, want 3 (reused after Reset)", len(dev.Buffers))
	}
	if got := p.Stats().BlocksReused; got != 3 {
		t.Errorf("BlocksReused = %d, want 3", got)
	}
	if cache.Len() != 3 {
		t.Errorf("cache Len() = %d, want 3", cache.Len())
	}
}

func TestAllocPoolCreateFailure(t *testing.T) {
	p, dev, _ := newTestPool(t, 128)
	dev.FailBuffers = true

	if _, err := p.MakeSpace(16, 4); !errors.Is(err, gputest.ErrInjected) {
		t.Fatalf("MakeSpace error = %v, want ErrInjected", err)
	}
	if p.NumBlocks() != 0 {
		t.Errorf("NumBlocks() = %d after failure, want 0", p.NumBlocks())
	}
}

func TestAllocPoolPutBack(t *testing.T) {
	p, _, _ := newTestPool(t, 128)

	if err := p.PutBack(4); !errors.Is(err, ErrNoActiveBlock) {
		t.Errorf("PutBack without block error = %v, want ErrNoActiveBlock", err)
	}
	if _, err := p.MakeSpace(64, 4); err != nil {
		t.Fatal(err)
	}
	if err := p.PutBack(16); err != nil {
		t.Fatalf("PutBack: %v", err)
	}
	s, err := p.MakeSpace(16, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s.Offset != 48 {
		t.Errorf("offset after PutBack = %d, want 48", s.Offset)
	}
	if err := p.PutBack(1000); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("PutBack too much error = %v, want ErrInvalidSize", err)
	}
}

func TestAllocPoolInvalidSize(t *testing.T) {
	p, _, _ := newTestPool(t, 128)
	if _, err := p.MakeSpace(0, 4); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("MakeSpace(0) error = %v, want ErrInvalidSize", err)
	}
}

func TestAlignUpPad(t *testing.T) {
	tests := []struct{ x, a, want int64 }{
		{0, 4, 0}, {1, 4, 3}, {4, 4, 0}, {5, 12, 7}, {24, 12, 0}, {25, 7, 3},
	}
	for _, tt := range tests {
		if got := alignUpPad(tt.x, tt.a); got != tt.want {
			t.Errorf("alignUpPad(%d, %d) = %d, want %d", tt.x, tt.a, got, tt.want)
		}
	}
}
