// Command gedemo records a few frames of instanced rectangles and a
// composite pass, flushes them through the wgpu backend on the noop HAL
// and prints what the resource core did.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/ge"
	"github.com/gogpu/ge/backend/wgpu"
	"github.com/gogpu/ge/bufpool"
	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/pipeline"
	"github.com/gogpu/ge/surface"
	"github.com/gogpu/ge/uniform"
)

const rectShader = `
struct Uniforms {
    rt_adjust: vec4<f32>,
    alpha: f32,
}

@group(0) @binding(0) var<uniform> u: Uniforms;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(@location(0) corner: vec2<f32>, @location(1) rect: vec4<f32>, @location(2) color: vec4<f32>) -> VertexOutput {
    let pos = rect.xy + corner * rect.zw;
    var out: VertexOutput;
    out.position = vec4<f32>(pos * u.rt_adjust.xz + u.rt_adjust.yw, 0.0, 1.0);
    out.color = color * u.alpha;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color;
}
`

const compositeShader = `
struct Uniforms {
    rt_adjust: vec4<f32>,
}

@group(0) @binding(0) var<uniform> u: Uniforms;
@group(1) @binding(0) var tex: texture_2d<f32>;
@group(1) @binding(1) var samp: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec2<f32>, @location(1) uv: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(pos * u.rt_adjust.xz + u.rt_adjust.yw, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, in.uv);
}
`

// rectProcessor draws one rectangle per instance.
type rectProcessor struct {
	alpha float32
}

func (p *rectProcessor) Name() string         { return "demo.rects" }
func (p *rectProcessor) ShaderSource() string { return rectShader }

func (p *rectProcessor) VertexLayouts() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: 8,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
		{
			ArrayStride: 32,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 1},
				{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
			},
		},
	}
}

func (p *rectProcessor) Uniforms() []uniform.Uniform {
	return []uniform.Uniform{{Name: "u_Alpha", Type: uniform.Float}}
}

func (p *rectProcessor) TextureSamplers() []gpucore.SamplerState { return nil }

func (p *rectProcessor) SetData(dm *pipeline.DataManager) {
	dm.Set1f(pipeline.FirstProcessorUniform, p.alpha)
}

// compositeProcessor copies one texture to a quad.
type compositeProcessor struct{}

func (compositeProcessor) Name() string         { return "demo.composite" }
func (compositeProcessor) ShaderSource() string { return compositeShader }

func (compositeProcessor) VertexLayouts() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: 16,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
		},
	}}
}

func (compositeProcessor) Uniforms() []uniform.Uniform { return nil }

func (compositeProcessor) TextureSamplers() []gpucore.SamplerState {
	return []gpucore.SamplerState{gpucore.LinearSamplerState()}
}

func (compositeProcessor) SetData(*pipeline.DataManager) {}

func main() {
	var (
		width   = flag.Int("width", 800, "surface width")
		height  = flag.Int("height", 600, "surface height")
		frames  = flag.Int("frames", 3, "number of frames to flush")
		rects   = flag.Int("rects", 2000, "rectangles per frame")
		config  = flag.String("config", "", "TOML config file")
		verbose = flag.Bool("v", false, "log debug output to stderr")
	)
	flag.Parse()

	if *verbose {
		ge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := ge.DefaultConfig()
	if *config != "" {
		var err error
		if cfg, err = ge.LoadConfig(*config); err != nil {
			log.Fatal(err)
		}
	}

	halDev, queue, cleanup, err := openNoop()
	if err != nil {
		log.Fatalf("open noop device: %v", err)
	}
	defer cleanup()

	device, err := wgpu.NewDevice(halDev, queue)
	if err != nil {
		log.Fatalf("wrap device: %v", err)
	}
	dc, err := ge.NewDirectContext(device, ge.WithConfig(cfg), ge.WithOwnedDevice())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = dc.Close() }()

	info := ge.ColorInfo{Format: gputypes.TextureFormatRGBA8Unorm}
	for f := 0; f < *frames; f++ {
		if err := drawFrame(dc, *width, *height, *rects, f, info); err != nil {
			log.Fatalf("frame %d: %v", f, err)
		}
		if err := dc.Flush(); err != nil {
			log.Printf("frame %d flush: %v", f, err)
		}
	}

	printStats(dc.Stats())
}

// openNoop opens the first adapter of the noop HAL backend.
func openNoop() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, errors.New("noop: no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, err
	}
	return openDev.Device, openDev.Queue, instance.Destroy, nil
}

// drawFrame renders rectangles into an offscreen layer and composites the
// layer into a bottom-left origin target.
func drawFrame(dc *ge.DirectContext, w, h, n, frame int, info ge.ColorInfo) error {
	layer, err := ge.NewRenderTarget(dc, w, h, info, gpucore.OriginTopLeft)
	if err != nil {
		return err
	}
	defer func() { _ = layer.Close() }()

	if err := layer.Clear(gputypes.Color{R: 0.1, G: 0.2, B: 0.4, A: 1}); err != nil {
		return err
	}
	phase := float64(frame) * 0.3
	err = layer.Draw(ge.DrawOp{
		Processor:   &rectProcessor{alpha: 0.8},
		VertexSize:  8,
		VertexCount: 4,
		WriteVertices: func(wr *bufpool.Writer) {
			wr.PutFloat32s(0, 0, 1, 0, 0, 1, 1, 1)
		},
		Indices:       []uint16{0, 1, 2, 2, 1, 3},
		InstanceSize:  32,
		InstanceCount: n,
		WriteInstances: func(wr *bufpool.Writer) {
			for i := 0; i < n; i++ {
				a := float64(i)*0.05 + phase
				x := float32(float64(w)/2 + math.Cos(a)*float64(w)/3)
				y := float32(float64(h)/2 + math.Sin(a*1.3)*float64(h)/3)
				wr.PutFloat32s(x, y, 12, 12)
				wr.PutFloat32s(float32(i%7)/7, float32(i%5)/5, float32(i%3)/3, 1)
			}
		},
	})
	if err != nil {
		return err
	}

	screen, err := ge.NewRenderTarget(dc, w, h, info, gpucore.OriginBottomLeft)
	if err != nil {
		return err
	}
	defer func() { _ = screen.Close() }()

	fw, fh := float32(w), float32(h)
	return screen.Draw(ge.DrawOp{
		Processor:   compositeProcessor{},
		Textures:    []surface.ProxyView{layer.ReadView()},
		VertexSize:  16,
		VertexCount: 4,
		WriteVertices: func(wr *bufpool.Writer) {
			wr.PutFloat32s(0, 0, 0, 0)
			wr.PutFloat32s(fw, 0, 1, 0)
			wr.PutFloat32s(0, fh, 0, 1)
			wr.PutFloat32s(fw, fh, 1, 1)
		},
		Indices: []uint16{0, 1, 2, 2, 1, 3},
	})
}

func printStats(s ge.Stats) {
	fmt.Printf("flushes:    %d (dropped %d)\n", s.Flushes, s.FlushesDropped)
	fmt.Printf("tasks:      %d executed, %d dropped, %d draws skipped\n",
		s.TasksExecuted, s.TasksDropped, s.DrawsSkipped)
	fmt.Printf("textures:   %d cached, %d budgeted bytes\n", s.Resources.Textures, s.Resources.BudgetedBytes)
	fmt.Printf("pipelines:  %d states, %d hits, %d misses\n", s.Pipelines.States, s.Pipelines.Hits, s.Pipelines.Misses)
	fmt.Printf("vertices:   %d blocks, %d bytes uploaded\n", s.Vertices.BlocksCreated, s.Vertices.BytesUploaded)
	fmt.Printf("instances:  %d blocks, %d bytes uploaded\n", s.Instances.BlocksCreated, s.Instances.BytesUploaded)
	fmt.Printf("indices:    %d blocks, %d bytes uploaded\n", s.Indices.BlocksCreated, s.Indices.BytesUploaded)
}
