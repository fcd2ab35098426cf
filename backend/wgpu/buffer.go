package wgpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ge/gpucore"
)

// Buffer implements gpucore.Buffer on a HAL buffer.
//
// The HAL allocation is rounded up to a multiple of 4 bytes; Size reports the
// requested size.
type Buffer struct {
	dev   *Device
	buf   hal.Buffer
	size  int64
	usage gpucore.BufferUsage
}

// Size implements gpucore.Buffer.
func (b *Buffer) Size() int64 { return b.size }

// Usage implements gpucore.Buffer.
func (b *Buffer) Usage() gpucore.BufferUsage { return b.usage }

// Update writes data through the queue. Writes whose length is not a
// multiple of 4 are padded with zeros inside the aligned allocation.
func (b *Buffer) Update(offset int64, data []byte) error {
	if b.buf == nil {
		return fmt.Errorf("wgpu: update of destroyed buffer")
	}
	if offset < 0 || offset+int64(len(data)) > b.size {
		return fmt.Errorf("wgpu: update [%d, %d) out of range %d", offset, offset+int64(len(data)), b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if offset%4 != 0 {
		return fmt.Errorf("wgpu: update offset %d not 4-byte aligned", offset)
	}
	if pad := alignBufferSize(uint64(len(data))) - uint64(len(data)); pad != 0 {
		padded := make([]byte, len(data)+int(pad))
		copy(padded, data)
		data = padded
	}
	if err := b.dev.queue.WriteBuffer(b.buf, uint64(offset), data); err != nil {
		return fmt.Errorf("wgpu: write buffer: %w", err)
	}
	return nil
}

// Destroy implements gpucore.Buffer.
func (b *Buffer) Destroy() {
	if b.buf == nil {
		return
	}
	b.dev.device.DestroyBuffer(b.buf)
	b.buf = nil
}

// Raw returns the HAL buffer.
func (b *Buffer) Raw() hal.Buffer { return b.buf }
