// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "github.com/gogpu/gputypes"

// Buffer is a GPU-resident buffer object.
type Buffer interface {
	// Size returns the usable size in bytes.
	Size() int64

	// Usage returns the flags the buffer was created with.
	Usage() BufferUsage

	// Update copies data into the buffer starting at offset.
	Update(offset int64, data []byte) error

	// Destroy releases the buffer. The buffer must not be used afterwards.
	Destroy()
}

// TextureDesc describes a 2D texture to allocate.
type TextureDesc struct {
	Label       string
	Width       int
	Height      int
	Format      gputypes.TextureFormat
	Mipmapped   bool
	SampleCount int
	Renderable  bool
}

// MipLevelCount returns the number of mip levels a full chain of desc has.
func (d *TextureDesc) MipLevelCount() int {
	if !d.Mipmapped {
		return 1
	}
	n := 1
	for s := max(d.Width, d.Height); s > 1; s >>= 1 {
		n++
	}
	return n
}

// Texture is a GPU-resident 2D texture.
type Texture interface {
	Width() int
	Height() int
	Format() gputypes.TextureFormat
	MipLevelCount() int
	SampleCount() int
	Renderable() bool
	Destroy()
}

// PipelineDesc describes a render pipeline.
//
// Bindings follow a fixed convention: the uniform block is bound at group 0,
// binding 0. Texture sampler unit i is bound at group 1 with the texture at
// binding 2i and its sampler at binding 2i+1.
type PipelineDesc struct {
	Label              string
	ShaderSource       string // WGSL
	VertexEntry        string
	FragmentEntry      string
	VertexLayouts      []gputypes.VertexBufferLayout
	UniformSize        int
	NumTextureSamplers int
	ColorFormat        gputypes.TextureFormat
	SampleCount        int
	Topology           gputypes.PrimitiveTopology
	Blend              *gputypes.BlendState // nil selects premultiplied alpha
}

// Pipeline is a compiled render pipeline.
type Pipeline interface {
	NumTextureSamplers() int
	Destroy()
}

// RenderPassDesc describes a pass over one color target.
type RenderPassDesc struct {
	Label      string
	Target     Texture
	Clear      bool
	ClearColor gputypes.Color
}

// RenderPass records draw commands for one color target.
type RenderPass interface {
	BindPipeline(p Pipeline) error
	BindUniformBuffer(b Buffer, offset, size int64) error
	BindTexture(unit int, t Texture, s SamplerState) error
	BindIndexBuffer(b Buffer, format gputypes.IndexFormat, offset int64) error
	BindVertexBuffer(slot int, b Buffer, offset int64) error
	SetViewport(x, y, width, height float32)
	Draw(vertexCount, instanceCount, baseVertex, baseInstance int) error
	DrawIndexed(indexCount, instanceCount, baseIndex, baseVertex, baseInstance int) error
	End() error
}

// Device creates resources and records work for one GPU.
type Device interface {
	Caps() Caps
	CreateBuffer(size int64, usage BufferUsage) (Buffer, error)
	CreateTexture(desc *TextureDesc) (Texture, error)
	CreatePipeline(desc *PipelineDesc) (Pipeline, error)
	BeginRenderPass(desc *RenderPassDesc) (RenderPass, error)

	// Submit sends all passes ended since the previous Submit to the GPU.
	Submit() error

	Destroy()
}
