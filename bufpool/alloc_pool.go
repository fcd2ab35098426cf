// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bufpool

import (
	"errors"
	"fmt"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/logging"
)

// DefaultBlockSize is the default size of one pool block in bytes.
const DefaultBlockSize = 1 << 16

// Errors returned by pools.
var (
	// ErrInvalidSize is returned for non-positive allocation sizes.
	ErrInvalidSize = errors.New("bufpool: invalid allocation size")

	// ErrWriterOverflow is returned when a Writer is asked to write past
	// the end of its allocation.
	ErrWriterOverflow = errors.New("bufpool: write past end of allocation")

	// ErrNoActiveBlock is returned by PutBack when no block is being written.
	ErrNoActiveBlock = errors.New("bufpool: no active block")
)

// Span is a sub-range of a pool block. Data aliases the block's CPU staging
// memory and is uploaded to Buffer at Offset by the next Flush.
type Span struct {
	Buffer gpucore.Buffer
	Offset int64
	Data   []byte
}

// Stats reports pool activity since creation.
type Stats struct {
	BlocksCreated int
	BlocksReused  int
	Uploads       int
	BytesUploaded int64
	BytesInUse    int64
}

type block struct {
	buf     gpucore.Buffer
	size    int64
	free    int64
	staging *CpuBuffer // nil once uploaded
}

// AllocPool is a bump allocator over GPU buffer blocks with CPU staging.
//
// Only the last block accepts new allocations, and only while its staging
// buffer is held. Earlier blocks keep their staging memory, and so every
// outstanding Span stays writable, until Flush uploads them.
type AllocPool struct {
	device    gpucore.Device
	cache     *CpuBufferCache
	usage     gpucore.BufferUsage
	blockSize int64

	blocks []block
	spares []gpucore.Buffer

	stats Stats
}

// NewAllocPool returns a pool of blocks with the given usage. Blocks are at
// least blockSize bytes; blockSize <= 0 selects DefaultBlockSize. Staging
// memory is borrowed from cache, whose default size should equal blockSize
// for staging buffers to be recycled.
func NewAllocPool(device gpucore.Device, cache *CpuBufferCache, usage gpucore.BufferUsage, blockSize int64) *AllocPool {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &AllocPool{
		device:    device,
		cache:     cache,
		usage:     usage | gpucore.BufferUsageStream,
		blockSize: blockSize,
	}
}

// BlockSize returns the minimum block size.
func (p *AllocPool) BlockSize() int64 { return p.blockSize }

// NumBlocks returns the number of blocks handed out since the last Reset.
func (p *AllocPool) NumBlocks() int { return len(p.blocks) }

// Stats returns pool counters.
func (p *AllocPool) Stats() Stats { return p.stats }

// MakeSpace returns size bytes at an offset that is a multiple of
// alignment. Alignment need not be a power of two. On error no space was
// reserved and the caller must skip the data it meant to write.
func (p *AllocPool) MakeSpace(size, alignment int64) (Span, error) {
	if size <= 0 {
		return Span{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if alignment <= 0 {
		alignment = 1
	}

	if blk := p.active(); blk != nil {
		pos := blk.size - blk.free
		pad := alignUpPad(pos, alignment)
		if pad+size <= blk.free {
			data := blk.staging.Bytes()
			clear(data[pos : pos+pad])
			offset := pos + pad
			blk.free -= pad + size
			p.stats.BytesInUse += pad + size
			return Span{Buffer: blk.buf, Offset: offset, Data: data[offset : offset+size]}, nil
		}
	}

	if err := p.createBlock(size); err != nil {
		return Span{}, err
	}
	blk := &p.blocks[len(p.blocks)-1]
	blk.free -= size
	p.stats.BytesInUse += size
	return Span{Buffer: blk.buf, Offset: 0, Data: blk.staging.Bytes()[:size]}, nil
}

// active returns the block accepting allocations, or nil.
func (p *AllocPool) active() *block {
	if len(p.blocks) == 0 {
		return nil
	}
	blk := &p.blocks[len(p.blocks)-1]
	if blk.staging == nil {
		return nil
	}
	return blk
}

// PutBack returns the last n bytes handed out by MakeSpace to the active
// block.
func (p *AllocPool) PutBack(n int64) error {
	blk := p.active()
	if blk == nil {
		return ErrNoActiveBlock
	}
	if n < 0 || n > blk.size-blk.free {
		return fmt.Errorf("%w: put back %d of %d used bytes", ErrInvalidSize, n, blk.size-blk.free)
	}
	blk.free += n
	p.stats.BytesInUse -= n
	return nil
}

// createBlock opens a new block that fits size. The previous block stops
// accepting allocations; its upload waits for Flush.
func (p *AllocPool) createBlock(size int64) error {
	blockSize := max(size, p.blockSize)
	var buf gpucore.Buffer
	if blockSize == p.blockSize && len(p.spares) > 0 {
		buf = p.spares[len(p.spares)-1]
		p.spares = p.spares[:len(p.spares)-1]
		p.stats.BlocksReused++
	} else {
		var err error
		buf, err = p.device.CreateBuffer(blockSize, p.usage)
		if err != nil {
			logging.L().Warn("bufpool: block allocation failed", "size", blockSize, "err", err)
			return fmt.Errorf("bufpool: create %d-byte block: %w", blockSize, err)
		}
		p.stats.BlocksCreated++
		logging.L().Debug("bufpool: block created", "size", blockSize, "usage", p.usage.String())
	}

	p.blocks = append(p.blocks, block{
		buf:     buf,
		size:    blockSize,
		free:    blockSize,
		staging: p.cache.MakeBuffer(int(blockSize)),
	})
	return nil
}

// Flush uploads the bytes written to every block not yet uploaded and
// releases their staging memory. It must be called before a draw reads data
// from the pool. Later allocations start a new block.
func (p *AllocPool) Flush() error {
	var firstErr error
	for i := range p.blocks {
		blk := &p.blocks[i]
		if blk.staging == nil {
			continue
		}
		staging := blk.staging
		blk.staging = nil

		used := blk.size - blk.free
		if used > 0 {
			if err := blk.buf.Update(0, staging.Bytes()[:used]); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("bufpool: upload block %d: %w", i, err)
			} else if err == nil {
				p.stats.Uploads++
				p.stats.BytesUploaded += used
			}
		}
		staging.Unref()
	}
	return firstErr
}

// Reset discards unflushed data and releases all blocks. Blocks of the
// default size are kept for reuse.
func (p *AllocPool) Reset() {
	for _, blk := range p.blocks {
		if blk.staging != nil {
			blk.staging.Unref()
		}
		if blk.size == p.blockSize {
			p.spares = append(p.spares, blk.buf)
		} else {
			blk.buf.Destroy()
		}
	}
	clear(p.blocks)
	p.blocks = p.blocks[:0]
	p.stats.BytesInUse = 0
}

// Destroy releases every block, including spares.
func (p *AllocPool) Destroy() {
	p.Reset()
	for _, buf := range p.spares {
		buf.Destroy()
	}
	p.spares = nil
}

// alignUpPad returns the padding that rounds x up to a multiple of alignment.
func alignUpPad(x, alignment int64) int64 {
	return (alignment - x%alignment) % alignment
}
