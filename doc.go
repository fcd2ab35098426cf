// Package ge is a deferred GPU resource and command core.
//
// Drawing code records work against texture proxies, placeholders whose
// GPU textures do not exist yet. At [DirectContext.Flush] the recorded
// tasks are linearized, an interval allocator decides which proxies can
// share a texture, textures are created or reused from a budgeted cache,
// vertex and instance data is written through pooled staging buffers and
// uploaded, and every task is executed as a render pass.
//
// # Overview
//
//	dc, err := ge.NewDirectContext(device)
//	if err != nil {
//		return err
//	}
//	defer dc.Close()
//
//	sc, err := ge.NewRenderTarget(dc, 800, 600,
//		ge.ColorInfo{Format: gputypes.TextureFormatRGBA8Unorm}, gpucore.OriginTopLeft)
//	if err != nil {
//		return err
//	}
//	defer sc.Close()
//
//	sc.Clear(gputypes.Color{A: 1})
//	sc.Draw(ge.DrawOp{Processor: gp, VertexSize: 8, VertexCount: 6, WriteVertices: write})
//	return dc.Flush()
//
// # Contexts
//
// A [RecordingContext] is either a [*DirectContext], which owns a
// [gpucore.Device] and executes work, or a [*DeferredContext], which records
// work without a device. [DeferredContext.Snap] packages the recorded work
// into a [Recording] that a DirectContext replays.
//
// # Failures
//
// Work is dropped rather than executed against partially valid state. If a
// texture cannot be created the whole flush is dropped and Flush returns an
// error wrapping [ErrFlushDropped]. If the textures of a flush do not fit
// the resource budget, tasks are retried one at a time and the ones that
// still do not fit are dropped ([ErrOverBudget]). A draw whose sampled
// texture is missing at execution is skipped.
//
// # Threading
//
// A context and everything created from it is confined to one goroutine.
// Nothing in ge blocks.
//
// # Sub-packages
//
//   - gpucore: backend interfaces and capabilities
//   - backend/wgpu: gpucore on the gogpu/wgpu HAL
//   - bufpool: staging buffer cache and vertex/instance allocation pools
//   - uniform: std140 uniform block mirror with dirty tracking
//   - pipeline: pipeline states and their cache
//   - resource: texture cache and provider
//   - surface: texture proxies and views
//   - alloc: interval-based texture allocator
package ge
