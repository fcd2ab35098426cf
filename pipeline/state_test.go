package pipeline

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/gputest"
	"github.com/gogpu/ge/uniform"
)

type colorProcessor struct {
	name     string
	color    [4]float32
	samplers int
	setCalls int
}

func (p *colorProcessor) Name() string         { return p.name }
func (p *colorProcessor) ShaderSource() string { return "// wgsl" }
func (p *colorProcessor) VertexLayouts() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: 8,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  []gputypes.VertexAttribute{{Format: gputypes.VertexFormatFloat32x2}},
	}}
}
func (p *colorProcessor) Uniforms() []uniform.Uniform {
	return []uniform.Uniform{{Name: "u_Color", Type: uniform.Float4}}
}
func (p *colorProcessor) TextureSamplers() []gpucore.SamplerState {
	out := make([]gpucore.SamplerState, p.samplers)
	for i := range out {
		out[i] = gpucore.DefaultSamplerState()
	}
	return out
}
func (p *colorProcessor) SetData(dm *DataManager) {
	p.setCalls++
	dm.Set4f(FirstProcessorUniform, p.color[0], p.color[1], p.color[2], p.color[3])
}

type texSource struct{ tex gpucore.Texture }

func (s texSource) PeekTexture() gpucore.Texture { return s.tex }

var rgbaTarget = Target{Format: gputypes.TextureFormatRGBA8Unorm, SampleCount: 1}

func beginPass(t *testing.T, dev *gputest.Device) gpucore.RenderPass {
	t.Helper()
	rt, err := dev.CreateTexture(&gpucore.TextureDesc{Width: 100, Height: 50, Format: rgbaTarget.Format, Renderable: true})
	if err != nil {
		t.Fatal(err)
	}
	pass, err := dev.BeginRenderPass(&gpucore.RenderPassDesc{Target: rt})
	if err != nil {
		t.Fatal(err)
	}
	return pass
}

func f32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestProjection(t *testing.T) {
	tests := []struct {
		origin gpucore.Origin
		want   [4]float32
	}{
		{gpucore.OriginTopLeft, [4]float32{0.02, -1, 0.04, -1}},
		{gpucore.OriginBottomLeft, [4]float32{0.02, -1, -0.04, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.origin.String(), func(t *testing.T) {
			dm := NewDataManager(nil)
			dm.SetProjection(100, 50, tt.origin)
			for i, want := range tt.want {
				if got := f32(dm.Data(), 4*i); math.Abs(float64(got-want)) > 1e-6 {
					t.Errorf("proj[%d] = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestProjectionCached(t *testing.T) {
	dev := gputest.NewDevice()
	dm := NewDataManager(nil)
	buf, _ := dev.CreateBuffer(int64(dm.Size()), gpucore.BufferUsageUniform)

	dm.SetProjection(10, 10, gpucore.OriginTopLeft)
	if err := dm.Upload(buf); err != nil {
		t.Fatal(err)
	}
	dm.SetProjection(10, 10, gpucore.OriginTopLeft)
	if dm.IsDirty() {
		t.Error("unchanged projection marked dirty")
	}
	dm.SetProjection(20, 10, gpucore.OriginTopLeft)
	if !dm.Dirty(ProjectionUniform) {
		t.Error("new size not marked dirty")
	}
}

func TestPipelineStateDraw(t *testing.T) {
	dev := gputest.NewDevice()
	gp := &colorProcessor{name: "solid", color: [4]float32{1, 0, 0, 1}}
	ps, err := NewPipelineState(dev, gp, rgbaTarget)
	if err != nil {
		t.Fatal(err)
	}
	if got := dev.Pipelines[0].Desc; got.UniformSize != 32 || got.NumTextureSamplers != 0 || got.ColorFormat != rgbaTarget.Format {
		t.Errorf("pipeline desc = %+v", got)
	}

	pass := beginPass(t, dev)
	vb, _ := dev.CreateBuffer(64, gpucore.BufferUsageVertex)
	if err := ps.BindPipeline(pass); err != nil {
		t.Fatal(err)
	}
	if err := ps.BindUniforms(pass, 100, 50, gpucore.OriginTopLeft); err != nil {
		t.Fatal(err)
	}
	if ok, err := ps.BindTextures(pass, nil); !ok || err != nil {
		t.Fatalf("BindTextures = %v, %v", ok, err)
	}
	if err := ps.BindBuffers(pass, Buffers{Vertex: vb, VertexOffset: 16}); err != nil {
		t.Fatal(err)
	}
	if err := pass.Draw(3, 1, 0, 0); err != nil {
		t.Fatal(err)
	}

	draws := dev.Draws()
	if len(draws) != 1 {
		t.Fatalf("draws = %d", len(draws))
	}
	d := draws[0]
	if d.Vertex != vb || d.VertexOffset != 16 || d.Instance != nil {
		t.Errorf("buffers = %v@%d instance %v", d.Vertex, d.VertexOffset, d.Instance)
	}
	if f32(d.Uniform, 0) != 0.02 || f32(d.Uniform, 16) != 1 || f32(d.Uniform, 28) != 1 {
		t.Errorf("uniform block = %v", d.Uniform)
	}
	if gp.setCalls != 1 {
		t.Errorf("SetData calls = %d", gp.setCalls)
	}

	// A second bind with identical data uploads nothing.
	uploads := len(dev.Uploads)
	if err := ps.BindUniforms(pass, 100, 50, gpucore.OriginTopLeft); err != nil {
		t.Fatal(err)
	}
	if len(dev.Uploads) != uploads {
		t.Error("unchanged uniforms uploaded again")
	}
}

func TestBindTexturesSkipsUninstantiated(t *testing.T) {
	dev := gputest.NewDevice()
	ps, err := NewPipelineState(dev, &colorProcessor{name: "tex", samplers: 2}, rgbaTarget)
	if err != nil {
		t.Fatal(err)
	}
	pass := beginPass(t, dev)
	tex, _ := dev.CreateTexture(&gpucore.TextureDesc{Width: 4, Height: 4, Format: rgbaTarget.Format})

	ok, err := ps.BindTextures(pass, []TextureSource{texSource{tex}, texSource{}})
	if ok || err != nil {
		t.Errorf("missing texture: BindTextures = %v, %v", ok, err)
	}
	ok, err = ps.BindTextures(pass, []TextureSource{texSource{tex}, nil})
	if ok || err != nil {
		t.Errorf("nil source: BindTextures = %v, %v", ok, err)
	}
	ok, err = ps.BindTextures(pass, []TextureSource{texSource{tex}, texSource{tex}})
	if !ok || err != nil {
		t.Errorf("BindTextures = %v, %v", ok, err)
	}

	defer func() {
		if recover() == nil {
			t.Error("wrong texture count did not panic")
		}
	}()
	ps.BindTextures(pass, []TextureSource{texSource{tex}})
}

func TestNewPipelineStateErrors(t *testing.T) {
	dev := gputest.NewDevice()
	caps := gputest.DefaultCaps()
	caps.MaxTextureSamplers = 1
	dev.SetCaps(caps)
	if _, err := NewPipelineState(dev, &colorProcessor{name: "many", samplers: 2}, rgbaTarget); err == nil {
		t.Error("too many samplers accepted")
	}

	dev.FailPipelines = true
	if _, err := NewPipelineState(dev, &colorProcessor{name: "p"}, rgbaTarget); !errors.Is(err, gputest.ErrInjected) {
		t.Errorf("pipeline failure: err = %v", err)
	}

	dev.FailPipelines = false
	dev.FailBuffers = true
	if _, err := NewPipelineState(dev, &colorProcessor{name: "b"}, rgbaTarget); !errors.Is(err, gputest.ErrInjected) {
		t.Errorf("buffer failure: err = %v", err)
	}
	if p := dev.Pipelines[len(dev.Pipelines)-1]; !p.Destroyed {
		t.Error("pipeline leaked after buffer failure")
	}
}

func TestDestroyAndDiscard(t *testing.T) {
	dev := gputest.NewDevice()
	ps, _ := NewPipelineState(dev, &colorProcessor{name: "a"}, rgbaTarget)
	ps.Destroy()
	if !dev.Pipelines[0].Destroyed || !dev.Buffers[0].Destroyed {
		t.Error("Destroy left GPU objects alive")
	}
	if err := ps.BindPipeline(beginPass(t, dev)); !errors.Is(err, ErrDestroyed) {
		t.Errorf("BindPipeline after Destroy: err = %v", err)
	}
	ps.Destroy() // idempotent

	ps2, _ := NewPipelineState(dev, &colorProcessor{name: "b"}, rgbaTarget)
	ps2.Discard()
	if dev.Pipelines[1].Destroyed {
		t.Error("Discard destroyed the pipeline")
	}
}
