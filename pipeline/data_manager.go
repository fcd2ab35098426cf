package pipeline

import (
	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/uniform"
)

const (
	// ProjectionUniform is the index of the reserved projection uniform.
	ProjectionUniform = 0

	// FirstProcessorUniform is the index of the first processor uniform.
	FirstProcessorUniform = 1
)

// projectionName is the name of the reserved uniform in shaders.
const projectionName = "u_Projection"

// DataManager is the uniform block of one pipeline state: the reserved
// projection uniform followed by the processor uniforms.
type DataManager struct {
	*uniform.DataManager

	width, height int
	origin        gpucore.Origin
	hasProjection bool
}

// NewDataManager lays out the projection uniform and uniforms.
func NewDataManager(uniforms []uniform.Uniform) *DataManager {
	all := make([]uniform.Uniform, 0, len(uniforms)+1)
	all = append(all, uniform.Uniform{Name: projectionName, Type: uniform.Float4})
	all = append(all, uniforms...)
	return &DataManager{DataManager: uniform.NewDataManager(all)}
}

// SetProjection writes the transform from pixel coordinates of a
// width x height target to normalized device coordinates. A shader applies
// it as pos * proj.xz + proj.yw.
func (m *DataManager) SetProjection(width, height int, origin gpucore.Origin) {
	if m.hasProjection && m.width == width && m.height == height && m.origin == origin {
		return
	}
	m.width, m.height, m.origin = width, height, origin
	m.hasProjection = true

	sx := 2 / float32(width)
	sy := 2 / float32(height)
	if origin == gpucore.OriginBottomLeft {
		m.Set4f(ProjectionUniform, sx, -1, -sy, 1)
	} else {
		m.Set4f(ProjectionUniform, sx, -1, sy, -1)
	}
}

// Upload writes dirty uniforms to buf.
func (m *DataManager) Upload(buf gpucore.Buffer) error {
	return m.UploadAll(buf)
}
