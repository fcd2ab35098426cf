// Package bufpool pools host staging memory and sub-allocates GPU vertex and
// instance buffers.
//
// [CpuBufferCache] recycles fixed-size host buffers through reference
// counting: a cached buffer whose only reference is the cache's own is free
// for the next borrower. [AllocPool] is a bump allocator over a sequence of
// GPU buffer blocks; callers write into a CPU staging buffer borrowed from
// the cache and the pool uploads the written bytes when the block is
// retired or the pool is flushed.
//
// Typical use per frame:
//
//	w, err := vertices.MakeWriter(mesh)
//	if err != nil {
//		// skip this mesh
//	}
//	w.PutFloat32s(x, y, u, v)
//	...
//	vertices.Flush() // before any draw reads the data
//	...
//	vertices.Reset() // once the frame's draws are submitted
//
// Spans returned by MakeSpace stay writable until the next Flush, Reset or
// block change; writing after that is undefined.
package bufpool
