// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ge/gpucore"
)

// Errors returned by the wgpu backend.
var (
	// ErrNilDevice is returned when a nil HAL device or queue is supplied.
	ErrNilDevice = errors.New("wgpu: nil device or queue")

	// ErrNotHALProvider is returned when a provider does not expose HAL types.
	ErrNotHALProvider = errors.New("wgpu: provider does not expose HAL device and queue")

	// ErrPassActive is returned when a pass is begun or work is submitted
	// while another pass is still recording.
	ErrPassActive = errors.New("wgpu: render pass still active")

	// ErrNoPipeline is returned by draws issued before BindPipeline.
	ErrNoPipeline = errors.New("wgpu: no pipeline bound")

	// ErrForeignResource is returned when a resource from another backend is bound.
	ErrForeignResource = errors.New("wgpu: resource not created by this backend")

	// ErrDestroyed is returned by operations on a destroyed device.
	ErrDestroyed = errors.New("wgpu: device destroyed")
)

// inflight is a submission whose command buffer and bind groups are freed
// once the queue reports it complete.
type inflight struct {
	index      uint64
	encoder    hal.CommandEncoder
	cmdBuf     hal.CommandBuffer
	bindGroups []hal.BindGroup
}

// Device implements gpucore.Device on a HAL device and queue.
type Device struct {
	device hal.Device
	queue  hal.Queue
	opts   options
	caps   gpucore.Caps

	samplers map[gpucore.SamplerState]hal.Sampler

	encoder    hal.CommandEncoder
	passActive bool
	transient  []hal.BindGroup
	inflight   []inflight

	destroyed bool
}

var _ gpucore.Device = (*Device)(nil)

// NewDevice wraps an opened HAL device and its queue.
func NewDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	caps := gpucore.CapsFromLimits(o.limits)
	caps.SkipErrorChecks = o.skipChecks

	slogger().Debug("wgpu: device wrapped",
		"maxTextureSize", caps.MaxTextureSize,
		"maxTextureSamplers", caps.MaxTextureSamplers,
		"spirv", o.spirv)

	return &Device{
		device:   device,
		queue:    queue,
		opts:     o,
		caps:     caps,
		samplers: make(map[gpucore.SamplerState]hal.Sampler),
	}, nil
}

// FromProvider wraps the HAL device and queue of a host provider, such as a
// gpucontext.DeviceProvider implementation that exposes HalDevice and
// HalQueue.
func FromProvider(provider any, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHALProvider)
	}
	return NewDevice(device, queue, opts...)
}

// HAL returns the wrapped HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) {
	return d.device, d.queue
}

// Caps implements gpucore.Device.
func (d *Device) Caps() gpucore.Caps {
	return d.caps
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(size int64, usage gpucore.BufferUsage) (gpucore.Buffer, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if size <= 0 {
		return nil, fmt.Errorf("wgpu: invalid buffer size %d", size)
	}
	if d.caps.MaxBufferSize > 0 && uint64(size) > d.caps.MaxBufferSize {
		return nil, fmt.Errorf("wgpu: buffer size %d exceeds limit %d", size, d.caps.MaxBufferSize)
	}

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ge_" + usage.String(),
		Size:  alignBufferSize(uint64(size)),
		Usage: halBufferUsage(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer: %w", err)
	}
	return &Buffer{dev: d, buf: buf, size: size, usage: usage}, nil
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.Texture, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("wgpu: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	if m := d.caps.MaxTextureSize; m > 0 && (desc.Width > m || desc.Height > m) {
		return nil, fmt.Errorf("wgpu: texture %dx%d exceeds limit %d", desc.Width, desc.Height, m)
	}

	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	if desc.Renderable {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	sampleCount := max(desc.SampleCount, 1)

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: uint32(desc.MipLevelCount()),
		SampleCount:   uint32(sampleCount),
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: desc.Label + "_view"})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create texture view: %w", err)
	}
	return &Texture{dev: d, tex: tex, view: view, desc: *desc}, nil
}

// BeginRenderPass implements gpucore.Device.
func (d *Device) BeginRenderPass(desc *gpucore.RenderPassDesc) (gpucore.RenderPass, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if d.passActive {
		return nil, ErrPassActive
	}
	target, ok := desc.Target.(*Texture)
	if !ok || target == nil {
		return nil, fmt.Errorf("%w: render target", ErrForeignResource)
	}
	if d.encoder == nil {
		enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "ge_encoder"})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
		}
		if err := enc.BeginEncoding("ge_frame"); err != nil {
			return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
		}
		d.encoder = enc
	}

	loadOp := gputypes.LoadOpLoad
	if desc.Clear {
		loadOp = gputypes.LoadOpClear
	}
	rp := d.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: desc.ClearColor,
		}},
	})
	d.passActive = true
	return &RenderPass{dev: d, rp: rp, target: target}, nil
}

// Submit implements gpucore.Device.
func (d *Device) Submit() error {
	if d.destroyed {
		return ErrDestroyed
	}
	if d.passActive {
		return ErrPassActive
	}
	d.reclaim()
	if d.encoder == nil {
		return nil
	}

	enc := d.encoder
	d.encoder = nil
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		d.releaseTransient()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		enc.Destroy()
		d.releaseTransient()
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	d.inflight = append(d.inflight, inflight{index: index, encoder: enc, cmdBuf: cmdBuf, bindGroups: d.transient})
	d.transient = nil
	d.reclaim()
	return nil
}

// reclaim frees resources of submissions the queue reports complete.
func (d *Device) reclaim() {
	done := d.queue.PollCompleted()
	kept := d.inflight[:0]
	for _, f := range d.inflight {
		if f.index > done {
			kept = append(kept, f)
			continue
		}
		d.freeInflight(f)
	}
	d.inflight = kept
}

func (d *Device) freeInflight(f inflight) {
	for _, bg := range f.bindGroups {
		d.device.DestroyBindGroup(bg)
	}
	d.device.FreeCommandBuffer(f.cmdBuf)
	f.encoder.Destroy()
}

func (d *Device) releaseTransient() {
	for _, bg := range d.transient {
		d.device.DestroyBindGroup(bg)
	}
	d.transient = nil
}

// sampler returns the cached HAL sampler for s.
func (d *Device) sampler(s gpucore.SamplerState) (hal.Sampler, error) {
	if smp, ok := d.samplers[s]; ok {
		return smp, nil
	}
	smp, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "ge_sampler",
		AddressModeU: s.WrapX,
		AddressModeV: s.WrapY,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    s.Filter,
		MinFilter:    s.Filter,
		MipmapFilter: s.MipFilter,
		LodMaxClamp:  32,
		Anisotropy:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create sampler: %w", err)
	}
	d.samplers[s] = smp
	return smp, nil
}

// Destroy waits for the GPU to go idle and releases every backend object
// owned by d. Buffers, textures and pipelines created by d must be destroyed
// by their owners first.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true

	if d.encoder != nil {
		d.encoder.DiscardEncoding()
		d.encoder.Destroy()
		d.encoder = nil
	}
	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("wgpu: wait idle failed", "err", err)
	}
	for _, f := range d.inflight {
		d.freeInflight(f)
	}
	d.inflight = nil
	d.releaseTransient()
	for key, smp := range d.samplers {
		d.device.DestroySampler(smp)
		delete(d.samplers, key)
	}
	if d.opts.ownsDevice {
		d.device.Destroy()
	}
}

// alignBufferSize rounds size up to the 4-byte copy alignment.
func alignBufferSize(size uint64) uint64 {
	return (size + 3) &^ 3
}

func halBufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	usage := gputypes.BufferUsageCopyDst
	if u.Contains(gpucore.BufferUsageVertex) {
		usage |= gputypes.BufferUsageVertex
	}
	if u.Contains(gpucore.BufferUsageIndex) {
		usage |= gputypes.BufferUsageIndex
	}
	if u.Contains(gpucore.BufferUsageUniform) {
		usage |= gputypes.BufferUsageUniform
	}
	if u.Contains(gpucore.BufferUsageTransferSrc) {
		usage |= gputypes.BufferUsageCopySrc
	}
	return usage
}
