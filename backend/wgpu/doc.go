// Package wgpu implements the gpucore backend layer on gogpu/wgpu HAL.
//
// Any HAL backend may be used: Vulkan, Metal, DX12, GLES or the noop backend
// used by tests. The package owns no device; callers pass an opened
// hal.Device and hal.Queue, or a host provider exposing them.
//
// # Bindings
//
// Every pipeline uses the same layout:
//
//	group 0  binding 0        uniform block
//	group 1  binding 2i       texture of sampler unit i
//	group 1  binding 2i+1     sampler of sampler unit i
//
// Bind groups are built lazily at draw time from the bindings recorded on the
// pass and are destroyed once the submission that used them has completed.
//
// # Shaders
//
// Shader sources are WGSL. With [WithSPIRV] they are compiled to SPIR-V by
// gogpu/naga before reaching the HAL.
package wgpu
