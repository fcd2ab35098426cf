package wgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ge/gpucore"
)

// Texture implements gpucore.Texture on a HAL texture and its default view.
type Texture struct {
	dev  *Device
	tex  hal.Texture
	view hal.TextureView
	desc gpucore.TextureDesc
}

func (t *Texture) Width() int                     { return t.desc.Width }
func (t *Texture) Height() int                    { return t.desc.Height }
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }
func (t *Texture) MipLevelCount() int             { return t.desc.MipLevelCount() }
func (t *Texture) SampleCount() int               { return max(t.desc.SampleCount, 1) }
func (t *Texture) Renderable() bool               { return t.desc.Renderable }

// Destroy releases the view and the texture.
func (t *Texture) Destroy() {
	if t.view != nil {
		t.dev.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.dev.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// Raw returns the HAL texture and its default view.
func (t *Texture) Raw() (hal.Texture, hal.TextureView) { return t.tex, t.view }
