package resource

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
)

// ScratchKey identifies textures that are interchangeable for reuse.
type ScratchKey struct {
	Width       int
	Height      int
	Format      gputypes.TextureFormat
	Mipmapped   bool
	SampleCount int
	Renderable  bool
}

// Desc returns the texture descriptor that creates a texture for k.
func (k ScratchKey) Desc(label string) *gpucore.TextureDesc {
	return &gpucore.TextureDesc{
		Label:       label,
		Width:       k.Width,
		Height:      k.Height,
		Format:      k.Format,
		Mipmapped:   k.Mipmapped,
		SampleCount: max(k.SampleCount, 1),
		Renderable:  k.Renderable,
	}
}

// IsValid reports whether k describes a non-empty texture.
func (k ScratchKey) IsValid() bool {
	return k.Width > 0 && k.Height > 0
}

func (k ScratchKey) String() string {
	return fmt.Sprintf("%dx%d %v mip=%v samples=%d rt=%v",
		k.Width, k.Height, k.Format, k.Mipmapped, k.SampleCount, k.Renderable)
}

// UniqueKey names one specific texture content, such as a cached glyph
// atlas or an uploaded image. The zero value is invalid.
type UniqueKey struct {
	Domain string
	Data   string
}

// IsValid reports whether k names anything.
func (k UniqueKey) IsValid() bool { return k.Domain != "" }

// ComputeSize returns the estimated GPU memory of a texture with the given
// shape: bytes per pixel times pixels times samples, plus a third for a
// full mip chain.
func ComputeSize(format gputypes.TextureFormat, width, height, sampleCount int, mipmapped bool) int64 {
	size := int64(gpucore.BytesPerPixel(format)) * int64(width) * int64(height) * int64(max(sampleCount, 1))
	if mipmapped {
		size = size * 4 / 3
	}
	return size
}
