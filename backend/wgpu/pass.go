package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ge/gpucore"
)

type textureBinding struct {
	tex     *Texture
	sampler gpucore.SamplerState
}

// RenderPass implements gpucore.RenderPass. Uniform and texture bindings
// are collected and turned into bind groups at the next draw.
type RenderPass struct {
	dev    *Device
	rp     hal.RenderPassEncoder
	target *Texture
	ended  bool

	pipeline *Pipeline

	uniform       *Buffer
	uniformOffset int64
	uniformSize   int64
	uniformDirty  bool

	textures      []textureBinding
	texturesDirty bool
}

func (p *RenderPass) live() error {
	if p.ended {
		return fmt.Errorf("wgpu: render pass ended")
	}
	return nil
}

// BindPipeline implements gpucore.RenderPass.
func (p *RenderPass) BindPipeline(pl gpucore.Pipeline) error {
	if err := p.live(); err != nil {
		return err
	}
	wp, ok := pl.(*Pipeline)
	if !ok || wp == nil || wp.pipeline == nil {
		return fmt.Errorf("%w: pipeline", ErrForeignResource)
	}
	if p.pipeline != wp {
		p.pipeline = wp
		p.uniformDirty = true
		p.texturesDirty = true
	}
	p.rp.SetPipeline(wp.pipeline)
	return nil
}

// BindUniformBuffer implements gpucore.RenderPass.
func (p *RenderPass) BindUniformBuffer(b gpucore.Buffer, offset, size int64) error {
	if err := p.live(); err != nil {
		return err
	}
	wb, ok := b.(*Buffer)
	if !ok || wb == nil || wb.buf == nil {
		return fmt.Errorf("%w: uniform buffer", ErrForeignResource)
	}
	p.uniform, p.uniformOffset, p.uniformSize = wb, offset, size
	p.uniformDirty = true
	return nil
}

// BindTexture implements gpucore.RenderPass.
func (p *RenderPass) BindTexture(unit int, t gpucore.Texture, s gpucore.SamplerState) error {
	if err := p.live(); err != nil {
		return err
	}
	wt, ok := t.(*Texture)
	if !ok || wt == nil || wt.view == nil {
		return fmt.Errorf("%w: texture unit %d", ErrForeignResource, unit)
	}
	if unit < 0 || unit >= p.dev.caps.MaxTextureSamplers {
		return fmt.Errorf("wgpu: texture unit %d out of range", unit)
	}
	for len(p.textures) <= unit {
		p.textures = append(p.textures, textureBinding{})
	}
	p.textures[unit] = textureBinding{tex: wt, sampler: s}
	p.texturesDirty = true
	return nil
}

// BindIndexBuffer implements gpucore.RenderPass.
func (p *RenderPass) BindIndexBuffer(b gpucore.Buffer, format gputypes.IndexFormat, offset int64) error {
	if err := p.live(); err != nil {
		return err
	}
	wb, ok := b.(*Buffer)
	if !ok || wb == nil || wb.buf == nil {
		return fmt.Errorf("%w: index buffer", ErrForeignResource)
	}
	p.rp.SetIndexBuffer(wb.buf, format, uint64(offset))
	return nil
}

// BindVertexBuffer implements gpucore.RenderPass.
func (p *RenderPass) BindVertexBuffer(slot int, b gpucore.Buffer, offset int64) error {
	if err := p.live(); err != nil {
		return err
	}
	wb, ok := b.(*Buffer)
	if !ok || wb == nil || wb.buf == nil {
		return fmt.Errorf("%w: vertex buffer", ErrForeignResource)
	}
	p.rp.SetVertexBuffer(uint32(slot), wb.buf, uint64(offset))
	return nil
}

// SetViewport implements gpucore.RenderPass.
func (p *RenderPass) SetViewport(x, y, width, height float32) {
	p.rp.SetViewport(x, y, width, height, 0, 1)
}

// flushBindings creates bind groups for bindings changed since the last draw.
func (p *RenderPass) flushBindings() error {
	if p.pipeline == nil {
		return ErrNoPipeline
	}
	device := p.dev.device

	if p.uniformDirty {
		entries := []gputypes.BindGroupEntry(nil)
		if p.pipeline.uniformSize > 0 {
			if p.uniform == nil {
				return fmt.Errorf("wgpu: pipeline requires a uniform buffer")
			}
			entries = []gputypes.BindGroupEntry{{
				Binding: 0,
				Resource: gputypes.BufferBinding{
					Buffer: p.uniform.buf.NativeHandle(),
					Offset: uint64(p.uniformOffset),
					Size:   uint64(p.uniformSize),
				},
			}}
		}
		bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "ge_uniforms",
			Layout:  p.pipeline.uniformLayout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create uniform bind group: %w", err)
		}
		p.dev.transient = append(p.dev.transient, bg)
		p.rp.SetBindGroup(0, bg, nil)
		p.uniformDirty = false
	}

	if p.texturesDirty && p.pipeline.numTextureSamplers > 0 {
		n := p.pipeline.numTextureSamplers
		entries := make([]gputypes.BindGroupEntry, 0, 2*n)
		for i := 0; i < n; i++ {
			if i >= len(p.textures) || p.textures[i].tex == nil {
				return fmt.Errorf("wgpu: texture unit %d not bound", i)
			}
			tb := p.textures[i]
			smp, err := p.dev.sampler(tb.sampler)
			if err != nil {
				return err
			}
			entries = append(entries,
				gputypes.BindGroupEntry{
					Binding:  uint32(2 * i),
					Resource: gputypes.TextureViewBinding{TextureView: tb.tex.view.NativeHandle()},
				},
				gputypes.BindGroupEntry{
					Binding:  uint32(2*i + 1),
					Resource: gputypes.SamplerBinding{Sampler: smp.NativeHandle()},
				})
		}
		bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "ge_textures",
			Layout:  p.pipeline.textureLayout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create texture bind group: %w", err)
		}
		p.dev.transient = append(p.dev.transient, bg)
		p.rp.SetBindGroup(1, bg, nil)
		p.texturesDirty = false
	}
	return nil
}

// Draw implements gpucore.RenderPass.
func (p *RenderPass) Draw(vertexCount, instanceCount, baseVertex, baseInstance int) error {
	if err := p.live(); err != nil {
		return err
	}
	if err := p.flushBindings(); err != nil {
		return err
	}
	p.rp.Draw(uint32(vertexCount), uint32(max(instanceCount, 1)), uint32(baseVertex), uint32(baseInstance))
	return nil
}

// DrawIndexed implements gpucore.RenderPass.
func (p *RenderPass) DrawIndexed(indexCount, instanceCount, baseIndex, baseVertex, baseInstance int) error {
	if err := p.live(); err != nil {
		return err
	}
	if err := p.flushBindings(); err != nil {
		return err
	}
	p.rp.DrawIndexed(uint32(indexCount), uint32(max(instanceCount, 1)), uint32(baseIndex),
		int32(baseVertex), uint32(baseInstance))
	return nil
}

// End implements gpucore.RenderPass.
func (p *RenderPass) End() error {
	if err := p.live(); err != nil {
		return err
	}
	p.rp.End()
	p.ended = true
	p.dev.passActive = false
	return nil
}
