package ge

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/bufpool"
	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/surface"
)

func TestDrawValidation(t *testing.T) {
	dc, _ := newTestContext(t)
	sc := newTarget(t, dc, 16, 16)
	defer func() { _ = sc.Close() }()
	layer := newTarget(t, dc, 16, 16)
	defer func() { _ = layer.Close() }()

	write := func(*bufpool.Writer) {}
	tests := []struct {
		name string
		op   DrawOp
	}{
		{"nil processor", DrawOp{VertexCount: 3}},
		{"no vertices", DrawOp{Processor: &testProcessor{}}},
		{"negative size", DrawOp{Processor: &testProcessor{}, VertexCount: 3, VertexSize: -8}},
		{"vertex size without vertices", DrawOp{
			Processor: &testProcessor{}, VertexSize: 8, WriteVertices: write, Indices: []uint16{0, 1, 2},
		}},
		{"vertex size without writer", DrawOp{Processor: &testProcessor{}, VertexSize: 8, VertexCount: 3}},
		{"instance size without instances", DrawOp{
			Processor: &testProcessor{}, VertexCount: 3, InstanceSize: 16, WriteInstances: write,
		}},
		{"missing texture", DrawOp{Processor: &testProcessor{samplers: 1}, VertexCount: 3}},
		{"extra texture", DrawOp{
			Processor: &testProcessor{}, VertexCount: 3, Textures: []surface.ProxyView{layer.ReadView()},
		}},
		{"texture without proxy", DrawOp{
			Processor: &testProcessor{samplers: 1}, VertexCount: 3, Textures: []surface.ProxyView{{}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sc.Draw(tt.op); !errors.Is(err, ErrInvalidDraw) {
				t.Errorf("Draw() = %v, want ErrInvalidDraw", err)
			}
		})
	}
	if n := dc.NumPendingTasks(); n != 0 {
		t.Errorf("NumPendingTasks() = %d, want 0", n)
	}
}

func TestSurfaceContextClosed(t *testing.T) {
	dc, _ := newTestContext(t)
	sc := newTarget(t, dc, 16, 16)
	if err := sc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sc.Clear(gputypes.Color{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Clear() after Close = %v, want ErrClosed", err)
	}
	if err := sc.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() = %v, want ErrClosed", err)
	}
}

func TestMakeSurfaceContextFormatMismatch(t *testing.T) {
	dc, _ := newTestContext(t)
	sc := newTarget(t, dc, 16, 16)
	defer func() { _ = sc.Close() }()

	info := ColorInfo{Format: gputypes.TextureFormatBGRA8Unorm}
	if _, err := MakeSurfaceContext(dc, sc.ReadView(), info); !errors.Is(err, ErrInvalidView) {
		t.Errorf("MakeSurfaceContext() = %v, want ErrInvalidView", err)
	}
	if _, err := MakeSurfaceContext(dc, surface.ProxyView{}, rgba); !errors.Is(err, ErrInvalidView) {
		t.Errorf("MakeSurfaceContext(empty view) = %v, want ErrInvalidView", err)
	}
	if sc.Origin() != gpucore.OriginTopLeft || sc.Width() != 16 {
		t.Errorf("Width() = %d, Origin() = %v", sc.Width(), sc.Origin())
	}
}
