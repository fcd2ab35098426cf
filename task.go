package ge

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/bufpool"
	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/pipeline"
	"github.com/gogpu/ge/surface"
)

// task is one unit of recorded work. A task holds one proxy reference per
// proxy it visits, dropped by release.
//
// At flush a task goes through prepare, which writes its geometry into the
// context pools, and execute, which records and submits its render pass.
// Both run only after every proxy the task visits has been assigned a
// texture.
type task interface {
	visitProxies(fn func(*surface.TextureProxy))
	writes() *surface.TextureProxy
	prepare(dc *DirectContext) error
	execute(dc *DirectContext) error
	release()
}

// touches reports whether t uses any proxy in set.
func touches(t task, set map[*surface.TextureProxy]bool) bool {
	hit := false
	t.visitProxies(func(p *surface.TextureProxy) { hit = hit || set[p] })
	return hit
}

// targetTexture returns the texture behind view, or an error naming the
// proxy if the allocator left it without one.
func targetTexture(view surface.ProxyView) (gpucore.Texture, error) {
	tex := view.Proxy.PeekTexture()
	if tex == nil {
		return nil, fmt.Errorf("%w: target proxy %d not instantiated", ErrFlushDropped, view.Proxy.ID())
	}
	return tex, nil
}

// clearTask fills a whole surface with one color.
type clearTask struct {
	target surface.ProxyView
	color  gputypes.Color
}

func (t *clearTask) visitProxies(fn func(*surface.TextureProxy)) { fn(t.target.Proxy) }

func (t *clearTask) writes() *surface.TextureProxy { return t.target.Proxy }

func (t *clearTask) prepare(*DirectContext) error { return nil }

func (t *clearTask) execute(dc *DirectContext) error {
	tex, err := targetTexture(t.target)
	if err != nil {
		return err
	}
	pass, err := dc.device.BeginRenderPass(&gpucore.RenderPassDesc{
		Label:      "ge.clear",
		Target:     tex,
		Clear:      true,
		ClearColor: t.color,
	})
	if err != nil {
		return fmt.Errorf("ge: begin clear pass: %w", err)
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("ge: end clear pass: %w", err)
	}
	return dc.device.Submit()
}

func (t *clearTask) release() { t.target.Unref() }

// drawTask issues one DrawOp into a surface. It implements
// bufpool.VertexMesh and bufpool.InstanceMesh so the pools hand it the
// buffers its geometry was written to.
type drawTask struct {
	target   surface.ProxyView
	op       DrawOp
	textures []surface.ProxyView

	vertexBuf    gpucore.Buffer
	baseVertex   int
	instanceBuf  gpucore.Buffer
	baseInstance int
	indexBuf     gpucore.Buffer
	indexOffset  int64
}

var (
	_ bufpool.VertexMesh   = (*drawTask)(nil)
	_ bufpool.InstanceMesh = (*drawTask)(nil)
)

func (t *drawTask) VertexSize() int  { return t.op.VertexSize }
func (t *drawTask) VertexCount() int { return t.op.VertexCount }

func (t *drawTask) SetVertexBuffer(buf gpucore.Buffer, baseVertex, _ int) {
	t.vertexBuf, t.baseVertex = buf, baseVertex
}

func (t *drawTask) InstanceSize() int  { return t.op.InstanceSize }
func (t *drawTask) InstanceCount() int { return t.op.InstanceCount }

func (t *drawTask) SetInstanceBuffer(buf gpucore.Buffer, baseInstance, _ int) {
	t.instanceBuf, t.baseInstance = buf, baseInstance
}

func (t *drawTask) visitProxies(fn func(*surface.TextureProxy)) {
	fn(t.target.Proxy)
	for _, v := range t.textures {
		fn(v.Proxy)
	}
}

func (t *drawTask) writes() *surface.TextureProxy { return t.target.Proxy }

func (t *drawTask) prepare(dc *DirectContext) error {
	if t.op.VertexSize > 0 {
		w, err := dc.vertices.MakeWriter(t)
		if err != nil {
			return fmt.Errorf("ge: %s vertices: %w", t.op.Processor.Name(), err)
		}
		t.op.WriteVertices(w)
		if err := checkFilled(w); err != nil {
			return fmt.Errorf("ge: %s vertices: %w", t.op.Processor.Name(), err)
		}
	}
	if t.op.InstanceSize > 0 {
		w, err := dc.instances.MakeWriter(t)
		if err != nil {
			return fmt.Errorf("ge: %s instances: %w", t.op.Processor.Name(), err)
		}
		t.op.WriteInstances(w)
		if err := checkFilled(w); err != nil {
			return fmt.Errorf("ge: %s instances: %w", t.op.Processor.Name(), err)
		}
	}
	if n := len(t.op.Indices); n > 0 {
		// Uploads must be a multiple of 4 bytes.
		span, err := dc.indices.MakeSpace(int64(2*n+3)&^3, 4)
		if err != nil {
			return fmt.Errorf("ge: %s indices: %w", t.op.Processor.Name(), err)
		}
		w := bufpool.NewWriter(span.Data)
		for _, i := range t.op.Indices {
			w.PutUint16(i)
		}
		t.indexBuf, t.indexOffset = span.Buffer, span.Offset
	}
	return nil
}

// checkFilled reports a geometry callback that overflowed its span or left
// part of it unwritten. Unwritten bytes hold stale data from earlier flushes.
func checkFilled(w *bufpool.Writer) error {
	if err := w.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDraw, err)
	}
	if n := w.Remaining(); n != 0 {
		return fmt.Errorf("%w: %d of %d bytes left unwritten", ErrInvalidDraw, n, w.Len()+n)
	}
	return nil
}

func (t *drawTask) execute(dc *DirectContext) error {
	tex, err := targetTexture(t.target)
	if err != nil {
		return err
	}
	gp := t.op.Processor
	state, err := dc.pipelines.FindOrCreate(gp, pipeline.Target{
		Format:      tex.Format(),
		SampleCount: tex.SampleCount(),
	})
	if err != nil {
		return err
	}

	pass, err := dc.device.BeginRenderPass(&gpucore.RenderPassDesc{Label: gp.Name(), Target: tex})
	if err != nil {
		return fmt.Errorf("ge: begin pass for %s: %w", gp.Name(), err)
	}
	drawn, err := t.record(pass, state)
	if endErr := pass.End(); err == nil {
		err = endErr
	}
	if err != nil {
		return fmt.Errorf("ge: draw %s: %w", gp.Name(), err)
	}
	if !drawn {
		dc.stats.DrawsSkipped++
		Logger().Warn("ge: draw skipped, texture unavailable", "processor", gp.Name())
	}
	return dc.device.Submit()
}

// record binds state and issues the draw. It reports false if a texture
// was unavailable and nothing was drawn.
func (t *drawTask) record(pass gpucore.RenderPass, state *pipeline.PipelineState) (bool, error) {
	w, h := t.target.Width(), t.target.Height()
	pass.SetViewport(0, 0, float32(w), float32(h))

	if err := state.BindPipeline(pass); err != nil {
		return false, err
	}
	if err := state.BindUniforms(pass, w, h, t.target.Origin); err != nil {
		return false, err
	}
	sources := make([]pipeline.TextureSource, len(t.textures))
	for i, v := range t.textures {
		sources[i] = v.Proxy
	}
	ok, err := state.BindTextures(pass, sources)
	if err != nil || !ok {
		return false, err
	}
	err = state.BindBuffers(pass, pipeline.Buffers{
		Index:       t.indexBuf,
		IndexFormat: gputypes.IndexFormatUint16,
		IndexOffset: t.indexOffset,
		Vertex:      t.vertexBuf,
		Instance:    t.instanceBuf,
	})
	if err != nil {
		return false, err
	}

	instances := max(t.op.InstanceCount, 1)
	baseInstance := 0
	if t.instanceBuf != nil {
		baseInstance = t.baseInstance
	}
	if t.indexBuf != nil {
		err = pass.DrawIndexed(len(t.op.Indices), instances, 0, t.baseVertex, baseInstance)
	} else {
		err = pass.Draw(t.op.VertexCount, instances, t.baseVertex, baseInstance)
	}
	return err == nil, err
}

func (t *drawTask) release() {
	t.target.Unref()
	for _, v := range t.textures {
		v.Unref()
	}
	t.textures = nil
}
