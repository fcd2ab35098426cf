package uniform

import "fmt"

// Uniform declares one member of a uniform block.
type Uniform struct {
	Name string
	Type SLType

	// ArrayCount is the element count of an array uniform, or 0 for a
	// single value.
	ArrayCount int
}

// Count returns the number of values the uniform holds.
func (u Uniform) Count() int {
	return max(u.ArrayCount, 1)
}

// footprint returns the number of bytes u occupies from its offset.
func (u Uniform) footprint() int {
	if u.ArrayCount == 0 {
		return u.Type.std140Size()
	}
	return u.Type.std140Stride()*(u.ArrayCount-1) + u.Type.std140Size()
}

const (
	offsetBits = 24
	offsetMask = 1<<offsetBits - 1
)

// Pack encodes a byte offset and type into one word: the low 24 bits hold
// the offset and the high 8 bits the type.
func Pack(offset int, t SLType) uint32 {
	if offset < 0 || offset > offsetMask {
		panic(fmt.Sprintf("uniform: offset %d out of range", offset))
	}
	return uint32(offset) | uint32(t)<<offsetBits
}

// Unpack decodes a word produced by Pack.
func Unpack(v uint32) (offset int, t SLType) {
	return int(v & offsetMask), SLType(v >> offsetBits)
}

// Layout assigns std140 offsets to uniforms in declaration order and
// returns the packed entries and the block size rounded up to 16 bytes.
// It panics if a uniform's type cannot be a uniform value.
func Layout(uniforms []Uniform) ([]uint32, int) {
	packed := make([]uint32, len(uniforms))
	offset := 0
	for i, u := range uniforms {
		if !u.Type.CanBeUniformValue() {
			panic(fmt.Sprintf("uniform: %q has type %v, which cannot be a uniform value", u.Name, u.Type))
		}
		if u.ArrayCount < 0 {
			panic(fmt.Sprintf("uniform: %q has negative array count", u.Name))
		}
		align := u.Type.std140Align()
		if u.ArrayCount > 0 {
			align = 16
		}
		offset = (offset + align - 1) / align * align
		packed[i] = Pack(offset, u.Type)
		if u.ArrayCount > 0 {
			offset += u.Type.std140Stride() * u.ArrayCount
		} else {
			offset += u.Type.std140Size()
		}
	}
	return packed, (offset + 15) &^ 15
}
