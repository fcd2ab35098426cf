// Package gputest provides test doubles for the gpucore backend layer.
//
// [Device] is an in-memory gpucore.Device that records every buffer upload,
// texture allocation and draw so tests can assert on what the core sent to
// the backend. [NoopHAL] opens a gogpu/wgpu noop HAL device for tests of the
// concrete backend.
package gputest

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("gputest: injected failure")

// Upload records one Buffer.Update call.
type Upload struct {
	Buffer *Buffer
	Offset int64
	Size   int
}

// Device is a recording in-memory gpucore.Device.
type Device struct {
	caps gpucore.Caps

	Buffers   []*Buffer
	Textures  []*Texture
	Pipelines []*Pipeline
	Passes    []*Pass
	Uploads   []Upload
	Submits   int
	Destroyed bool

	// FailBuffers, FailTextures and FailPipelines make the corresponding
	// Create call return ErrInjected.
	FailBuffers   bool
	FailTextures  bool
	FailPipelines bool

	// TextureBudget fails texture creation once this many textures have
	// been created. Zero means unlimited.
	TextureBudget int
}

// NewDevice returns a Device with generous default caps.
func NewDevice() *Device {
	return &Device{caps: DefaultCaps()}
}

// DefaultCaps returns the caps NewDevice reports.
func DefaultCaps() gpucore.Caps {
	return gpucore.CapsFromLimits(gputypes.DefaultLimits())
}

// SetCaps overrides the reported caps.
func (d *Device) SetCaps(c gpucore.Caps) { d.caps = c }

// Caps implements gpucore.Device.
func (d *Device) Caps() gpucore.Caps { return d.caps }

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(size int64, usage gpucore.BufferUsage) (gpucore.Buffer, error) {
	if d.FailBuffers {
		return nil, ErrInjected
	}
	if size <= 0 {
		return nil, fmt.Errorf("gputest: invalid buffer size %d", size)
	}
	b := &Buffer{dev: d, ID: len(d.Buffers), size: size, usage: usage, Data: make([]byte, size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.Texture, error) {
	if d.FailTextures || (d.TextureBudget > 0 && len(d.Textures) >= d.TextureBudget) {
		return nil, ErrInjected
	}
	t := &Texture{ID: len(d.Textures), Desc: *desc}
	d.Textures = append(d.Textures, t)
	return t, nil
}

// CreatePipeline implements gpucore.Device.
func (d *Device) CreatePipeline(desc *gpucore.PipelineDesc) (gpucore.Pipeline, error) {
	if d.FailPipelines {
		return nil, ErrInjected
	}
	p := &Pipeline{ID: len(d.Pipelines), Desc: *desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

// BeginRenderPass implements gpucore.Device.
func (d *Device) BeginRenderPass(desc *gpucore.RenderPassDesc) (gpucore.RenderPass, error) {
	if desc.Target == nil {
		return nil, errors.New("gputest: render pass without target")
	}
	p := &Pass{Desc: *desc, textures: make(map[int]gpucore.Texture)}
	d.Passes = append(d.Passes, p)
	return p, nil
}

// Submit implements gpucore.Device.
func (d *Device) Submit() error {
	d.Submits++
	return nil
}

// Destroy implements gpucore.Device.
func (d *Device) Destroy() { d.Destroyed = true }

// UploadedBytes returns the total number of bytes written through
// Buffer.Update to buffers whose usage contains mask.
func (d *Device) UploadedBytes(mask gpucore.BufferUsage) int64 {
	var n int64
	for _, u := range d.Uploads {
		if u.Buffer.usage.Contains(mask) {
			n += int64(u.Size)
		}
	}
	return n
}

// LiveTextures returns the number of textures not yet destroyed.
func (d *Device) LiveTextures() int {
	n := 0
	for _, t := range d.Textures {
		if !t.Destroyed {
			n++
		}
	}
	return n
}

// Draws returns every draw recorded across all passes.
func (d *Device) Draws() []DrawCall {
	var out []DrawCall
	for _, p := range d.Passes {
		out = append(out, p.Draws...)
	}
	return out
}

// Buffer is a recording gpucore.Buffer.
type Buffer struct {
	dev       *Device
	ID        int
	size      int64
	usage     gpucore.BufferUsage
	Data      []byte
	Destroyed bool
}

// Size implements gpucore.Buffer.
func (b *Buffer) Size() int64 { return b.size }

// Usage implements gpucore.Buffer.
func (b *Buffer) Usage() gpucore.BufferUsage { return b.usage }

// Update implements gpucore.Buffer.
func (b *Buffer) Update(offset int64, data []byte) error {
	if b.Destroyed {
		return errors.New("gputest: update of destroyed buffer")
	}
	if offset < 0 || offset+int64(len(data)) > b.size {
		return fmt.Errorf("gputest: update [%d, %d) out of range %d", offset, offset+int64(len(data)), b.size)
	}
	copy(b.Data[offset:], data)
	b.dev.Uploads = append(b.dev.Uploads, Upload{Buffer: b, Offset: offset, Size: len(data)})
	return nil
}

// Destroy implements gpucore.Buffer.
func (b *Buffer) Destroy() { b.Destroyed = true }

// Texture is a recording gpucore.Texture.
type Texture struct {
	ID        int
	Desc      gpucore.TextureDesc
	Destroyed bool
}

func (t *Texture) Width() int                     { return t.Desc.Width }
func (t *Texture) Height() int                    { return t.Desc.Height }
func (t *Texture) Format() gputypes.TextureFormat { return t.Desc.Format }
func (t *Texture) MipLevelCount() int             { return t.Desc.MipLevelCount() }
func (t *Texture) SampleCount() int               { return max(t.Desc.SampleCount, 1) }
func (t *Texture) Renderable() bool               { return t.Desc.Renderable }
func (t *Texture) Destroy()                       { t.Destroyed = true }

// Pipeline is a recording gpucore.Pipeline.
type Pipeline struct {
	ID        int
	Desc      gpucore.PipelineDesc
	Destroyed bool
}

// NumTextureSamplers implements gpucore.Pipeline.
func (p *Pipeline) NumTextureSamplers() int { return p.Desc.NumTextureSamplers }

// Destroy implements gpucore.Pipeline.
func (p *Pipeline) Destroy() { p.Destroyed = true }

// DrawCall is the binding state captured at one Draw or DrawIndexed.
type DrawCall struct {
	Pipeline       gpucore.Pipeline
	Uniform        []byte
	Textures       []gpucore.Texture
	Vertex         gpucore.Buffer
	VertexOffset   int64
	Instance       gpucore.Buffer
	InstanceOffset int64
	Index          gpucore.Buffer
	Indexed        bool
	Count          int
	InstanceCount  int
	BaseVertex     int
	BaseInstance   int
}

// Pass is a recording gpucore.RenderPass.
type Pass struct {
	Desc  gpucore.RenderPassDesc
	Draws []DrawCall
	Ended bool

	pipeline       gpucore.Pipeline
	uniform        gpucore.Buffer
	uniformOffset  int64
	uniformSize    int64
	textures       map[int]gpucore.Texture
	vertex         gpucore.Buffer
	vertexOffset   int64
	instance       gpucore.Buffer
	instanceOffset int64
	index          gpucore.Buffer
}

func (p *Pass) check() error {
	if p.Ended {
		return errors.New("gputest: pass already ended")
	}
	return nil
}

// BindPipeline implements gpucore.RenderPass.
func (p *Pass) BindPipeline(pl gpucore.Pipeline) error {
	p.pipeline = pl
	return p.check()
}

// BindUniformBuffer implements gpucore.RenderPass.
func (p *Pass) BindUniformBuffer(b gpucore.Buffer, offset, size int64) error {
	p.uniform, p.uniformOffset, p.uniformSize = b, offset, size
	return p.check()
}

// BindTexture implements gpucore.RenderPass.
func (p *Pass) BindTexture(unit int, t gpucore.Texture, _ gpucore.SamplerState) error {
	p.textures[unit] = t
	return p.check()
}

// BindIndexBuffer implements gpucore.RenderPass.
func (p *Pass) BindIndexBuffer(b gpucore.Buffer, _ gputypes.IndexFormat, _ int64) error {
	p.index = b
	return p.check()
}

// BindVertexBuffer implements gpucore.RenderPass.
func (p *Pass) BindVertexBuffer(slot int, b gpucore.Buffer, offset int64) error {
	switch slot {
	case 0:
		p.vertex, p.vertexOffset = b, offset
	case 1:
		p.instance, p.instanceOffset = b, offset
	default:
		return fmt.Errorf("gputest: vertex slot %d", slot)
	}
	return p.check()
}

// SetViewport implements gpucore.RenderPass.
func (p *Pass) SetViewport(_, _, _, _ float32) {}

func (p *Pass) record(indexed bool, count, instances, baseVertex, baseInstance int) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.pipeline == nil {
		return errors.New("gputest: draw without pipeline")
	}
	dc := DrawCall{
		Pipeline:       p.pipeline,
		Vertex:         p.vertex,
		VertexOffset:   p.vertexOffset,
		Instance:       p.instance,
		InstanceOffset: p.instanceOffset,
		Index:          p.index,
		Indexed:        indexed,
		Count:          count,
		InstanceCount:  instances,
		BaseVertex:     baseVertex,
		BaseInstance:   baseInstance,
	}
	if ub, ok := p.uniform.(*Buffer); ok {
		dc.Uniform = append([]byte(nil), ub.Data[p.uniformOffset:p.uniformOffset+p.uniformSize]...)
	}
	for i := 0; i < p.pipeline.NumTextureSamplers(); i++ {
		dc.Textures = append(dc.Textures, p.textures[i])
	}
	p.Draws = append(p.Draws, dc)
	return nil
}

// Draw implements gpucore.RenderPass.
func (p *Pass) Draw(vertexCount, instanceCount, baseVertex, baseInstance int) error {
	return p.record(false, vertexCount, instanceCount, baseVertex, baseInstance)
}

// DrawIndexed implements gpucore.RenderPass.
func (p *Pass) DrawIndexed(indexCount, instanceCount, _, baseVertex, baseInstance int) error {
	if p.index == nil {
		return errors.New("gputest: indexed draw without index buffer")
	}
	return p.record(true, indexCount, instanceCount, baseVertex, baseInstance)
}

// End implements gpucore.RenderPass.
func (p *Pass) End() error {
	if err := p.check(); err != nil {
		return err
	}
	p.Ended = true
	return nil
}
