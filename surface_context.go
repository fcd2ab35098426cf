package ge

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/bufpool"
	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/pipeline"
	"github.com/gogpu/ge/surface"
)

// AlphaType says how color values relate to alpha.
type AlphaType uint8

// Alpha types.
const (
	AlphaPremul AlphaType = iota
	AlphaUnpremul
	AlphaOpaque
)

// ColorInfo describes how the texels of a surface are interpreted.
type ColorInfo struct {
	Format    gputypes.TextureFormat
	AlphaType AlphaType
}

// DrawOp is one draw into a surface.
//
// Geometry is written at flush time. If VertexSize is positive,
// WriteVertices must write exactly VertexSize*VertexCount bytes; a zero
// VertexSize draws VertexCount vertices generated by the shader. Instance
// data works the same way. Indices, if any, are 16-bit and select from the
// written vertices.
type DrawOp struct {
	Processor pipeline.GeometryProcessor

	// Textures holds one view per texture sampler unit of the processor.
	Textures []surface.ProxyView

	VertexSize    int
	VertexCount   int
	WriteVertices func(w *bufpool.Writer)

	InstanceSize   int
	InstanceCount  int
	WriteInstances func(w *bufpool.Writer)

	Indices []uint16
}

func (op *DrawOp) validate() error {
	switch {
	case op.Processor == nil:
		return fmt.Errorf("%w: nil processor", ErrInvalidDraw)
	case op.VertexCount <= 0 && len(op.Indices) == 0:
		return fmt.Errorf("%w: %s has no vertices", ErrInvalidDraw, op.Processor.Name())
	case op.VertexSize < 0 || op.InstanceSize < 0 || op.InstanceCount < 0:
		return fmt.Errorf("%w: %s has negative sizes", ErrInvalidDraw, op.Processor.Name())
	case op.VertexSize > 0 && op.VertexCount <= 0:
		return fmt.Errorf("%w: %s has a vertex size but no vertices", ErrInvalidDraw, op.Processor.Name())
	case op.VertexSize > 0 && op.WriteVertices == nil:
		return fmt.Errorf("%w: %s has vertex data but no WriteVertices", ErrInvalidDraw, op.Processor.Name())
	case op.InstanceSize > 0 && (op.InstanceCount == 0 || op.WriteInstances == nil):
		return fmt.Errorf("%w: %s has instance data but no instances", ErrInvalidDraw, op.Processor.Name())
	case len(op.Textures) != len(op.Processor.TextureSamplers()):
		return fmt.Errorf("%w: %s has %d texture samplers, got %d textures", ErrInvalidDraw,
			op.Processor.Name(), len(op.Processor.TextureSamplers()), len(op.Textures))
	}
	for i, v := range op.Textures {
		if !v.IsValid() {
			return fmt.Errorf("%w: %s texture %d has no proxy", ErrInvalidDraw, op.Processor.Name(), i)
		}
	}
	return nil
}

// SurfaceContext records clears and draws into one surface.
//
// A SurfaceContext holds a reference to its proxy until Close. It does not
// own its recording context, which must outlive it.
type SurfaceContext struct {
	rc       RecordingContext
	readView surface.ProxyView
	info     ColorInfo
	closed   bool
}

// MakeSurfaceContext returns a context over view. The view's proxy must
// have the format given in info.
func MakeSurfaceContext(rc RecordingContext, view surface.ProxyView, info ColorInfo) (*SurfaceContext, error) {
	if rc == nil || rc.IsClosed() {
		return nil, ErrContextClosed
	}
	if !view.IsValid() {
		return nil, fmt.Errorf("%w: no proxy", ErrInvalidView)
	}
	if view.Proxy.Format() != info.Format {
		return nil, fmt.Errorf("%w: proxy format %v, color info %v", ErrInvalidView, view.Proxy.Format(), info.Format)
	}
	return &SurfaceContext{rc: rc, readView: view.Ref(), info: info}, nil
}

// NewRenderTarget creates a budgeted, renderable proxy of the given size
// and a context drawing into it.
func NewRenderTarget(rc RecordingContext, width, height int, info ColorInfo, origin gpucore.Origin) (*SurfaceContext, error) {
	if rc == nil || rc.IsClosed() {
		return nil, ErrContextClosed
	}
	proxy, err := rc.ProxyProvider().CreateTextureProxy(surface.ProxyDesc{
		Label:      "ge.render-target",
		Width:      width,
		Height:     height,
		Format:     info.Format,
		Renderable: true,
		Budgeted:   true,
	})
	if err != nil {
		return nil, err
	}
	defer proxy.Unref()
	return MakeSurfaceContext(rc, surface.ProxyView{Proxy: proxy, Origin: origin, Swizzle: surface.SwizzleRGBA}, info)
}

// RecordingContext returns the context work is recorded into.
func (sc *SurfaceContext) RecordingContext() RecordingContext { return sc.rc }

// ReadView returns the view the surface is read through. The caller must
// Ref it to keep it past Close.
func (sc *SurfaceContext) ReadView() surface.ProxyView { return sc.readView }

// ColorInfo returns the color description of the surface.
func (sc *SurfaceContext) ColorInfo() ColorInfo { return sc.info }

// Width returns the surface width.
func (sc *SurfaceContext) Width() int { return sc.readView.Width() }

// Height returns the surface height.
func (sc *SurfaceContext) Height() int { return sc.readView.Height() }

// Origin returns the surface origin.
func (sc *SurfaceContext) Origin() gpucore.Origin { return sc.readView.Origin }

// IsClosed reports whether Close has been called.
func (sc *SurfaceContext) IsClosed() bool { return sc.closed }

func (sc *SurfaceContext) checkWritable() error {
	if sc.closed {
		return ErrClosed
	}
	if sc.rc.IsClosed() {
		return ErrContextClosed
	}
	if !sc.readView.Proxy.IsRenderable() {
		return ErrNotRenderable
	}
	return nil
}

// Clear records a clear of the whole surface to c.
func (sc *SurfaceContext) Clear(c gputypes.Color) error {
	if err := sc.checkWritable(); err != nil {
		return err
	}
	return sc.rc.base().addTask(&clearTask{target: sc.readView.Ref(), color: c})
}

// Draw records op. The draw holds references to the surface and the
// texture views of op until the flush that executes it.
func (sc *SurfaceContext) Draw(op DrawOp) error {
	if err := sc.checkWritable(); err != nil {
		return err
	}
	if err := op.validate(); err != nil {
		return err
	}
	t := &drawTask{target: sc.readView.Ref(), op: op}
	t.textures = make([]surface.ProxyView, len(op.Textures))
	for i, v := range op.Textures {
		t.textures[i] = v.Ref()
	}
	t.op.Textures = nil
	return sc.rc.base().addTask(t)
}

// Close drops the surface reference. Recorded work stays queued.
func (sc *SurfaceContext) Close() error {
	if sc.closed {
		return ErrClosed
	}
	sc.closed = true
	sc.readView.Unref()
	return nil
}
