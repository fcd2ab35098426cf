package uniform

import "fmt"

// SLType is a shading-language type.
type SLType uint8

// Shading-language types.
const (
	Bool SLType = iota
	Bool2
	Bool3
	Bool4
	Int
	Int2
	Int3
	Int4
	UInt
	UInt2
	UInt3
	UInt4
	Float
	Float2
	Float3
	Float4
	Float2x2
	Float3x3
	Float4x4
	Texture2D
	Sampler
	Sampler2D
)

var slTypeNames = [...]string{
	"bool", "bool2", "bool3", "bool4",
	"int", "int2", "int3", "int4",
	"uint", "uint2", "uint3", "uint4",
	"float", "float2", "float3", "float4",
	"float2x2", "float3x3", "float4x4",
	"texture2D", "sampler", "sampler2D",
}

// String returns the type name.
func (t SLType) String() string {
	if int(t) < len(slTypeNames) {
		return slTypeNames[t]
	}
	return fmt.Sprintf("SLType(%d)", uint8(t))
}

// CanBeUniformValue reports whether t may live in a uniform block.
func (t SLType) CanBeUniformValue() bool {
	return t <= Float4x4
}

// IsFloat reports whether t is a float scalar, vector or matrix.
func (t SLType) IsFloat() bool {
	return t >= Float && t <= Float4x4
}

// IsInteger reports whether t is an int, uint or bool scalar or vector.
// Booleans are stored as 32-bit integers.
func (t SLType) IsInteger() bool {
	return t <= UInt4
}

// IsMatrix reports whether t is a square float matrix.
func (t SLType) IsMatrix() bool {
	return t >= Float2x2 && t <= Float4x4
}

// VectorLength returns the component count of a scalar or vector type, the
// column count of a matrix, or 0 for opaque types.
func (t SLType) VectorLength() int {
	switch {
	case t <= UInt4:
		return int(t%4) + 1
	case t <= Float4:
		return int(t-Float) + 1
	case t <= Float4x4:
		return int(t-Float2x2) + 2
	default:
		return 0
	}
}

// std140Align returns the base alignment of a non-array value of t.
func (t SLType) std140Align() int {
	if t.IsMatrix() {
		return 16
	}
	switch t.VectorLength() {
	case 1:
		return 4
	case 2:
		return 8
	default:
		return 16
	}
}

// std140Size returns the bytes a non-array value of t occupies. Matrix
// columns are padded to 16 bytes.
func (t SLType) std140Size() int {
	if t.IsMatrix() {
		return 16 * t.VectorLength()
	}
	return 4 * t.VectorLength()
}

// std140Stride returns the distance between consecutive array elements.
func (t SLType) std140Stride() int {
	return (t.std140Size() + 15) &^ 15
}
