// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ge/gpucore"
)

// Pipeline implements gpucore.Pipeline.
type Pipeline struct {
	dev *Device

	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	textureLayout hal.BindGroupLayout
	layout        hal.PipelineLayout
	pipeline      hal.RenderPipeline

	uniformSize        int
	numTextureSamplers int
}

// NumTextureSamplers implements gpucore.Pipeline.
func (p *Pipeline) NumTextureSamplers() int { return p.numTextureSamplers }

// CreatePipeline implements gpucore.Device.
func (d *Device) CreatePipeline(desc *gpucore.PipelineDesc) (gpucore.Pipeline, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if desc.NumTextureSamplers > d.caps.MaxTextureSamplers {
		return nil, fmt.Errorf("wgpu: %d texture samplers exceeds limit %d",
			desc.NumTextureSamplers, d.caps.MaxTextureSamplers)
	}
	p := &Pipeline{
		dev:                d,
		uniformSize:        desc.UniformSize,
		numTextureSamplers: desc.NumTextureSamplers,
	}
	if err := p.create(desc); err != nil {
		p.Destroy()
		return nil, err
	}
	slogger().Debug("wgpu: pipeline created", "label", desc.Label,
		"uniformSize", desc.UniformSize, "samplers", desc.NumTextureSamplers)
	return p, nil
}

func (p *Pipeline) create(desc *gpucore.PipelineDesc) error {
	device := p.dev.device

	src, err := p.dev.shaderSource(desc.ShaderSource)
	if err != nil {
		return fmt.Errorf("wgpu: %s: %w", desc.Label, err)
	}
	p.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label + "_shader",
		Source: src,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create shader module: %w", err)
	}

	var uniformEntries []gputypes.BindGroupLayoutEntry
	if desc.UniformSize > 0 {
		uniformEntries = []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: uint64(desc.UniformSize),
			},
		}}
	}
	p.uniformLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_uniform_layout",
		Entries: uniformEntries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create uniform bind group layout: %w", err)
	}
	layouts := []hal.BindGroupLayout{p.uniformLayout}

	if desc.NumTextureSamplers > 0 {
		entries := make([]gputypes.BindGroupLayoutEntry, 0, 2*desc.NumTextureSamplers)
		for i := 0; i < desc.NumTextureSamplers; i++ {
			entries = append(entries,
				gputypes.BindGroupLayoutEntry{
					Binding:    uint32(2 * i),
					Visibility: gputypes.ShaderStageFragment,
					Texture: &gputypes.TextureBindingLayout{
						SampleType:    gputypes.TextureSampleTypeFloat,
						ViewDimension: gputypes.TextureViewDimension2D,
					},
				},
				gputypes.BindGroupLayoutEntry{
					Binding:    uint32(2*i + 1),
					Visibility: gputypes.ShaderStageFragment,
					Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
				})
		}
		p.textureLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   desc.Label + "_texture_layout",
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create texture bind group layout: %w", err)
		}
		layouts = append(layouts, p.textureLayout)
	}

	p.layout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	blend := gputypes.BlendStatePremultiplied()
	if desc.Blend != nil {
		blend = *desc.Blend
	}
	vertexEntry, fragmentEntry := desc.VertexEntry, desc.FragmentEntry
	if vertexEntry == "" {
		vertexEntry = "vs_main"
	}
	if fragmentEntry == "" {
		fragmentEntry = "fs_main"
	}
	p.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: vertexEntry,
			Buffers:    desc.VertexLayouts,
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: fragmentEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    desc.ColorFormat,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: desc.Topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: uint32(max(desc.SampleCount, 1)),
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create render pipeline: %w", err)
	}
	return nil
}

// Destroy releases pipeline objects in reverse creation order.
func (p *Pipeline) Destroy() {
	device := p.dev.device
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.layout != nil {
		device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	if p.textureLayout != nil {
		device.DestroyBindGroupLayout(p.textureLayout)
		p.textureLayout = nil
	}
	if p.uniformLayout != nil {
		device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
