package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/logging"
)

// ErrDestroyed is returned when a destroyed or discarded state is bound.
var ErrDestroyed = errors.New("pipeline: state destroyed")

// TextureSource yields the texture bound to one sampler unit. Proxies
// return nil until they are instantiated.
type TextureSource interface {
	PeekTexture() gpucore.Texture
}

// Buffers are the geometry buffers of one draw. Nil buffers are not bound.
type Buffers struct {
	Index          gpucore.Buffer
	IndexFormat    gputypes.IndexFormat
	IndexOffset    int64
	Vertex         gpucore.Buffer
	VertexOffset   int64
	Instance       gpucore.Buffer
	InstanceOffset int64
}

// PipelineState is a compiled pipeline plus the uniform buffer and data
// its draws use.
type PipelineState struct {
	gp       GeometryProcessor
	target   Target
	pipeline gpucore.Pipeline
	data     *DataManager
	uniforms gpucore.Buffer
	samplers []gpucore.SamplerState
	gone     bool
}

// NewPipelineState compiles gp for target and allocates its uniform
// buffer.
func NewPipelineState(device gpucore.Device, gp GeometryProcessor, target Target) (*PipelineState, error) {
	data := NewDataManager(gp.Uniforms())
	samplers := gp.TextureSamplers()

	if n := device.Caps().MaxTextureSamplers; n > 0 && len(samplers) > n {
		return nil, fmt.Errorf("pipeline: %s uses %d texture samplers, device allows %d", gp.Name(), len(samplers), n)
	}

	p, err := device.CreatePipeline(&gpucore.PipelineDesc{
		Label:              gp.Name(),
		ShaderSource:       gp.ShaderSource(),
		VertexEntry:        "vs_main",
		FragmentEntry:      "fs_main",
		VertexLayouts:      gp.VertexLayouts(),
		UniformSize:        data.Size(),
		NumTextureSamplers: len(samplers),
		ColorFormat:        target.Format,
		SampleCount:        max(target.SampleCount, 1),
		Topology:           gputypes.PrimitiveTopologyTriangleList,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %s: %w", gp.Name(), err)
	}
	buf, err := device.CreateBuffer(int64(data.Size()), gpucore.BufferUsageUniform|gpucore.BufferUsageTransferDst)
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("pipeline: uniform buffer for %s: %w", gp.Name(), err)
	}

	logging.L().Debug("pipeline: state created", "processor", gp.Name(),
		"format", target.Format, "uniformBytes", data.Size(), "samplers", len(samplers))
	return &PipelineState{
		gp:       gp,
		target:   target,
		pipeline: p,
		data:     data,
		uniforms: buf,
		samplers: samplers,
	}, nil
}

// SetProcessor makes gp the processor whose SetData fills the uniforms of
// the next draw. gp must have the name the state was built for.
func (s *PipelineState) SetProcessor(gp GeometryProcessor) {
	if gp.Name() != s.gp.Name() {
		panic(fmt.Sprintf("pipeline: processor %q used with state for %q", gp.Name(), s.gp.Name()))
	}
	s.gp = gp
}

// Processor returns the processor the state was compiled from.
func (s *PipelineState) Processor() GeometryProcessor { return s.gp }

// Target returns the render target description.
func (s *PipelineState) Target() Target { return s.target }

// DataManager returns the state's uniform block.
func (s *PipelineState) DataManager() *DataManager { return s.data }

// NumTextureSamplers returns the number of texture units.
func (s *PipelineState) NumTextureSamplers() int { return len(s.samplers) }

// BindPipeline makes the pipeline current in pass.
func (s *PipelineState) BindPipeline(pass gpucore.RenderPass) error {
	if s.gone {
		return ErrDestroyed
	}
	return pass.BindPipeline(s.pipeline)
}

// BindUniforms updates the projection for a width x height target, lets
// the processor write its uniforms, uploads whatever changed and binds
// the uniform buffer.
func (s *PipelineState) BindUniforms(pass gpucore.RenderPass, width, height int, origin gpucore.Origin) error {
	if s.gone {
		return ErrDestroyed
	}
	s.data.SetProjection(width, height, origin)
	s.gp.SetData(s.data)
	if err := s.data.Upload(s.uniforms); err != nil {
		return fmt.Errorf("pipeline: %s uniforms: %w", s.gp.Name(), err)
	}
	return pass.BindUniformBuffer(s.uniforms, 0, int64(s.data.Size()))
}

// BindTextures binds one texture per sampler unit. It returns false
// without binding anything if any source has no texture yet; the draw must
// then be skipped. Passing a different number of sources than the
// processor has sampler units panics.
func (s *PipelineState) BindTextures(pass gpucore.RenderPass, textures []TextureSource) (bool, error) {
	if s.gone {
		return false, ErrDestroyed
	}
	resolved := make([]gpucore.Texture, len(textures))
	for i, src := range textures {
		if src == nil {
			return false, nil
		}
		t := src.PeekTexture()
		if t == nil {
			return false, nil
		}
		resolved[i] = t
	}
	if len(resolved) != len(s.samplers) {
		panic(fmt.Sprintf("pipeline: %s has %d texture samplers, got %d textures",
			s.gp.Name(), len(s.samplers), len(resolved)))
	}
	for i, t := range resolved {
		if err := pass.BindTexture(i, t, s.samplers[i]); err != nil {
			return false, fmt.Errorf("pipeline: bind texture %d: %w", i, err)
		}
	}
	return true, nil
}

// BindBuffers binds the non-nil geometry buffers: vertex data to slot 0
// and instance data to slot 1.
func (s *PipelineState) BindBuffers(pass gpucore.RenderPass, b Buffers) error {
	if s.gone {
		return ErrDestroyed
	}
	if b.Index != nil {
		if err := pass.BindIndexBuffer(b.Index, b.IndexFormat, b.IndexOffset); err != nil {
			return err
		}
	}
	if b.Vertex != nil {
		if err := pass.BindVertexBuffer(0, b.Vertex, b.VertexOffset); err != nil {
			return err
		}
	}
	if b.Instance != nil {
		if err := pass.BindVertexBuffer(1, b.Instance, b.InstanceOffset); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases the pipeline and uniform buffer.
func (s *PipelineState) Destroy() {
	if s.gone {
		return
	}
	s.pipeline.Destroy()
	s.uniforms.Destroy()
	s.Discard()
}

// Discard drops the GPU objects without releasing them, for use after
// the device is lost.
func (s *PipelineState) Discard() {
	s.pipeline = nil
	s.uniforms = nil
	s.gone = true
}
