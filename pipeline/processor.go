package pipeline

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/uniform"
)

// GeometryProcessor describes the shader side of a draw.
//
// Processors with equal names must return equal shaders, layouts,
// uniforms and samplers; the name keys the pipeline cache.
type GeometryProcessor interface {
	Name() string

	// ShaderSource returns WGSL with vs_main and fs_main entry points. The
	// uniform block is at group 0 binding 0; texture unit i is at group 1,
	// texture binding 2i and sampler binding 2i+1.
	ShaderSource() string

	// VertexLayouts returns the vertex buffer layouts: slot 0 per-vertex
	// data, slot 1 per-instance data if present.
	VertexLayouts() []gputypes.VertexBufferLayout

	// Uniforms declares the processor uniforms in block order.
	Uniforms() []uniform.Uniform

	// TextureSamplers returns one sampler state per texture unit.
	TextureSamplers() []gpucore.SamplerState

	// SetData writes the processor uniforms for the next draw, starting at
	// index FirstProcessorUniform.
	SetData(dm *DataManager)
}

// Target describes the color attachment a pipeline renders into.
type Target struct {
	Format      gputypes.TextureFormat
	SampleCount int
}
