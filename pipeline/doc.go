// Package pipeline binds geometry processors to compiled GPU pipelines.
//
// A [GeometryProcessor] describes a draw: its shader, vertex layout,
// uniforms and texture samplers. A [PipelineState] compiles it once per
// render target format and owns the uniform buffer its draws read. Before
// each draw the state is bound in a fixed order:
//
//	ps.BindPipeline(pass)
//	ps.BindUniforms(pass, width, height, origin)
//	ok, err := ps.BindTextures(pass, textures) // !ok: skip the draw
//	ps.BindBuffers(pass, buffers)
//
// Uniform block layout always starts with the render target projection,
// followed by the processor's own uniforms from index FirstProcessorUniform.
package pipeline
