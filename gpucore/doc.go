// Package gpucore defines the backend capability layer consumed by the ge
// resource core.
//
// The interfaces in this package abstract over a concrete GPU backend so that
// buffer pools, pipeline states and the resource allocator can be written and
// tested once. The reference implementation lives in backend/wgpu and runs on
// any gogpu/wgpu HAL backend, including the noop backend used in tests.
//
//	+------------------------------------------+
//	|  bufpool / uniform / pipeline / alloc    |
//	+--------------------+---------------------+
//	                     |
//	            +--------v--------+
//	            |     gpucore     |
//	            | Device, Buffer, |
//	            | Texture, Pass   |
//	            +--------+--------+
//	                     |
//	            +--------v--------+
//	            |  backend/wgpu   |
//	            |  (hal.Device)   |
//	            +-----------------+
//
// # Ordering
//
// [Buffer.Update] is ordered with respect to submitted work: data written
// before [Device.Submit] is visible to every pass recorded for that
// submission. Callers that rewrite the same range for several draws must
// submit between them.
//
// # Threading
//
// Implementations are confined to the thread that owns the recording
// context. No method blocks.
package gpucore
