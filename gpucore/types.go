// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BufferUsage is a bitmask describing how a buffer is used by the core.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageVertex marks a buffer bindable as per-vertex or per-instance data.
	BufferUsageVertex BufferUsage = 1 << iota

	// BufferUsageIndex marks a buffer bindable as an index buffer.
	BufferUsageIndex

	// BufferUsageUniform marks a buffer bindable as a uniform block.
	BufferUsageUniform

	// BufferUsageTransferSrc marks a buffer usable as a copy source.
	BufferUsageTransferSrc

	// BufferUsageTransferDst marks a buffer usable as a copy destination.
	BufferUsageTransferDst

	// BufferUsageStatic hints that contents are written once.
	BufferUsageStatic

	// BufferUsageStream hints that contents are rewritten every frame.
	BufferUsageStream
)

// Contains reports whether all bits of other are set in u.
func (u BufferUsage) Contains(other BufferUsage) bool {
	return u&other == other
}

// String returns a compact flag list, e.g. "vertex|stream".
func (u BufferUsage) String() string {
	names := []struct {
		flag BufferUsage
		name string
	}{
		{BufferUsageVertex, "vertex"},
		{BufferUsageIndex, "index"},
		{BufferUsageUniform, "uniform"},
		{BufferUsageTransferSrc, "transfer-src"},
		{BufferUsageTransferDst, "transfer-dst"},
		{BufferUsageStatic, "static"},
		{BufferUsageStream, "stream"},
	}
	s := ""
	for _, n := range names {
		if u&n.flag == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n.name
	}
	if s == "" {
		return "none"
	}
	return s
}

// Origin is the vertical origin convention of a surface.
type Origin uint8

// Surface origins.
const (
	// OriginTopLeft has y growing downward from the top edge.
	OriginTopLeft Origin = iota

	// OriginBottomLeft has y growing upward from the bottom edge.
	// Projections for such surfaces flip Y.
	OriginBottomLeft
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginTopLeft:
		return "top-left"
	case OriginBottomLeft:
		return "bottom-left"
	default:
		return fmt.Sprintf("Origin(%d)", uint8(o))
	}
}

// Caps describes what the backend supports.
type Caps struct {
	// MaxTextureSamplers is the number of texture sampler units a single
	// fragment stage may bind.
	MaxTextureSamplers int

	// MaxTextureSize is the largest width or height of a 2D texture.
	MaxTextureSize int

	// MaxBufferSize is the largest buffer the backend may allocate.
	MaxBufferSize uint64

	// UniformBufferAlignment is the required offset alignment for uniform
	// buffer bindings.
	UniformBufferAlignment uint32

	// SkipErrorChecks allows the backend to omit validation of resource
	// creation results.
	SkipErrorChecks bool
}

// CapsFromLimits derives Caps from WebGPU limits.
func CapsFromLimits(l gputypes.Limits) Caps {
	return Caps{
		MaxTextureSamplers:     int(min(l.MaxSampledTexturesPerShaderStage, l.MaxSamplersPerShaderStage)),
		MaxTextureSize:         int(l.MaxTextureDimension2D),
		MaxBufferSize:          l.MaxBufferSize,
		UniformBufferAlignment: l.MinUniformBufferOffsetAlignment,
	}
}

// SamplerState selects filtering and wrapping for one texture sampler unit.
type SamplerState struct {
	Filter    gputypes.FilterMode
	MipFilter gputypes.FilterMode
	WrapX     gputypes.AddressMode
	WrapY     gputypes.AddressMode
}

// DefaultSamplerState returns nearest filtering with clamp-to-edge wrapping.
func DefaultSamplerState() SamplerState {
	return SamplerState{
		Filter:    gputypes.FilterModeNearest,
		MipFilter: gputypes.FilterModeNearest,
		WrapX:     gputypes.AddressModeClampToEdge,
		WrapY:     gputypes.AddressModeClampToEdge,
	}
}

// LinearSamplerState returns bilinear filtering with clamp-to-edge wrapping.
func LinearSamplerState() SamplerState {
	s := DefaultSamplerState()
	s.Filter = gputypes.FilterModeLinear
	return s
}

// BytesPerPixel returns the storage size of one texel of f, or 0 for
// formats the core does not allocate.
func BytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatR16Float:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatRG16Float, gputypes.TextureFormatR32Float,
		gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureFormatDepth32Float:
		return 4
	case gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatRG32Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}
