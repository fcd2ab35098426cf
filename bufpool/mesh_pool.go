package bufpool

import (
	"fmt"

	"github.com/gogpu/ge/gpucore"
)

// VertexMesh is geometry that sources per-vertex data from a VertexPool.
type VertexMesh interface {
	// VertexSize returns the byte stride of one vertex.
	VertexSize() int
	// VertexCount returns the number of vertices to allocate.
	VertexCount() int
	// SetVertexBuffer receives the buffer holding the vertices and the index
	// of the first one within it.
	SetVertexBuffer(buf gpucore.Buffer, baseVertex, vertexCount int)
}

// InstanceMesh is geometry that sources per-instance data from an
// InstancePool.
type InstanceMesh interface {
	InstanceSize() int
	InstanceCount() int
	SetInstanceBuffer(buf gpucore.Buffer, baseInstance, instanceCount int)
}

// VertexPool allocates vertex data for meshes.
type VertexPool struct {
	pool *AllocPool
}

// NewVertexPool returns a vertex pool with blocks of at least blockSize bytes.
func NewVertexPool(device gpucore.Device, cache *CpuBufferCache, blockSize int64) *VertexPool {
	return &VertexPool{pool: NewAllocPool(device, cache, gpucore.BufferUsageVertex, blockSize)}
}

// MakeSpace reserves VertexSize*VertexCount bytes aligned to the vertex
// size and hands the buffer and base vertex to the mesh.
func (p *VertexPool) MakeSpace(mesh VertexMesh) ([]byte, error) {
	span, err := makeElements(p.pool, mesh.VertexSize(), mesh.VertexCount())
	if err != nil {
		return nil, err
	}
	mesh.SetVertexBuffer(span.Buffer, int(span.Offset)/mesh.VertexSize(), mesh.VertexCount())
	return span.Data, nil
}

// MakeWriter is MakeSpace returning a Writer bounded to the allocation.
func (p *VertexPool) MakeWriter(mesh VertexMesh) (*Writer, error) {
	data, err := p.MakeSpace(mesh)
	if err != nil {
		return nil, err
	}
	return NewWriter(data), nil
}

// Pool returns the underlying allocator.
func (p *VertexPool) Pool() *AllocPool { return p.pool }

// Flush uploads pending vertex data.
func (p *VertexPool) Flush() error { return p.pool.Flush() }

// Reset releases all blocks for reuse.
func (p *VertexPool) Reset() { p.pool.Reset() }

// Destroy releases all GPU buffers.
func (p *VertexPool) Destroy() { p.pool.Destroy() }

// InstancePool allocates instance data for meshes.
type InstancePool struct {
	pool *AllocPool
}

// NewInstancePool returns an instance pool with blocks of at least
// blockSize bytes.
func NewInstancePool(device gpucore.Device, cache *CpuBufferCache, blockSize int64) *InstancePool {
	return &InstancePool{pool: NewAllocPool(device, cache, gpucore.BufferUsageVertex, blockSize)}
}

// MakeSpace reserves InstanceSize*InstanceCount bytes aligned to the
// instance size and hands the buffer and base instance to the mesh.
func (p *InstancePool) MakeSpace(mesh InstanceMesh) ([]byte, error) {
	span, err := makeElements(p.pool, mesh.InstanceSize(), mesh.InstanceCount())
	if err != nil {
		return nil, err
	}
	mesh.SetInstanceBuffer(span.Buffer, int(span.Offset)/mesh.InstanceSize(), mesh.InstanceCount())
	return span.Data, nil
}

// MakeWriter is MakeSpace returning a Writer bounded to the allocation.
func (p *InstancePool) MakeWriter(mesh InstanceMesh) (*Writer, error) {
	data, err := p.MakeSpace(mesh)
	if err != nil {
		return nil, err
	}
	return NewWriter(data), nil
}

// Pool returns the underlying allocator.
func (p *InstancePool) Pool() *AllocPool { return p.pool }

// Flush uploads pending instance data.
func (p *InstancePool) Flush() error { return p.pool.Flush() }

// Reset releases all blocks for reuse.
func (p *InstancePool) Reset() { p.pool.Reset() }

// Destroy releases all GPU buffers.
func (p *InstancePool) Destroy() { p.pool.Destroy() }

func makeElements(pool *AllocPool, elemSize, count int) (Span, error) {
	if elemSize <= 0 || count <= 0 {
		return Span{}, fmt.Errorf("%w: %d elements of %d bytes", ErrInvalidSize, count, elemSize)
	}
	span, err := pool.MakeSpace(int64(elemSize)*int64(count), int64(elemSize))
	if err != nil {
		return Span{}, err
	}
	if span.Offset%int64(elemSize) != 0 {
		panic(fmt.Sprintf("bufpool: offset %d not a multiple of element size %d", span.Offset, elemSize))
	}
	return span, nil
}
