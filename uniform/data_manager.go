// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package uniform

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/ge/gpucore"
)

// DataManager mirrors one std140 uniform block in host memory and tracks
// which uniforms changed since the last upload.
//
// Setters compare the new bytes with the stored ones; writing an unchanged
// value leaves the uniform clean. Calling a setter whose kind does not match
// the declared type panics.
type DataManager struct {
	uniforms []uint32 // Pack(offset, type)
	counts   []int
	data     []byte
	dirty    []bool
	anyDirty bool
}

// NewDataManager lays out uniforms with Layout and returns a zeroed block.
func NewDataManager(uniforms []Uniform) *DataManager {
	packed, size := Layout(uniforms)
	counts := make([]int, len(uniforms))
	for i, u := range uniforms {
		counts[i] = u.ArrayCount
	}
	return &DataManager{
		uniforms: packed,
		counts:   counts,
		data:     make([]byte, size),
		dirty:    make([]bool, len(uniforms)),
	}
}

// NumUniforms returns the number of uniforms in the block.
func (m *DataManager) NumUniforms() int { return len(m.uniforms) }

// Size returns the block size in bytes.
func (m *DataManager) Size() int { return len(m.data) }

// Data returns the block contents. The slice must not be modified.
func (m *DataManager) Data() []byte { return m.data }

// Offset returns the byte offset of uniform i.
func (m *DataManager) Offset(i int) int {
	off, _ := Unpack(m.uniforms[i])
	return off
}

// Type returns the declared type of uniform i.
func (m *DataManager) Type(i int) SLType {
	_, t := Unpack(m.uniforms[i])
	return t
}

// Dirty reports whether uniform i changed since the last upload.
func (m *DataManager) Dirty(i int) bool { return m.dirty[i] }

// IsDirty reports whether any uniform changed since the last upload.
func (m *DataManager) IsDirty() bool { return m.anyDirty }

// MarkDirty flags every uniform for upload, e.g. after the GPU buffer was
// recreated.
func (m *DataManager) MarkDirty() {
	for i := range m.dirty {
		m.dirty[i] = true
	}
	m.anyDirty = len(m.dirty) > 0
}

func (m *DataManager) check(i int, t SLType, wantFloat bool, length int, count int) int {
	off, got := Unpack(m.uniforms[i])
	ok := got.VectorLength() == length && !got.IsMatrix()
	if wantFloat {
		ok = ok && got.IsFloat()
	} else {
		ok = ok && got.IsInteger()
	}
	if t.IsMatrix() {
		ok = got == t
	}
	if !ok {
		panic(fmt.Sprintf("uniform: setting %v value on uniform %d of type %v", t, i, got))
	}
	if count < 1 || count > max(m.counts[i], 1) {
		panic(fmt.Sprintf("uniform: count %d out of range for uniform %d", count, i))
	}
	return off
}

// putWord stores one 32-bit word and reports whether it changed.
func (m *DataManager) putWord(off int, v uint32) bool {
	b := m.data[off : off+4]
	if binary.LittleEndian.Uint32(b) == v {
		return false
	}
	binary.LittleEndian.PutUint32(b, v)
	return true
}

// putFloats writes count groups of n floats from vals. Group j starts at
// off + j*stride; within a group, column c starts at c*colStride and holds
// rows floats.
func (m *DataManager) putFloats(i, off, count, stride, cols, colStride, rows int, vals []float32) {
	if len(vals) < count*cols*rows {
		panic(fmt.Sprintf("uniform: %d values for %d elements of %d", len(vals), count, cols*rows))
	}
	changed := false
	k := 0
	for j := 0; j < count; j++ {
		for c := 0; c < cols; c++ {
			base := off + j*stride + c*colStride
			for r := 0; r < rows; r++ {
				if m.putWord(base+4*r, math.Float32bits(vals[k])) {
					changed = true
				}
				k++
			}
		}
	}
	if changed {
		m.dirty[i] = true
		m.anyDirty = true
	}
}

func (m *DataManager) putInts(i, off, count, n int, vals []int32) {
	if len(vals) < count*n {
		panic(fmt.Sprintf("uniform: %d values for %d elements of %d", len(vals), count, n))
	}
	changed := false
	for j := 0; j < count; j++ {
		for c := 0; c < n; c++ {
			if m.putWord(off+16*j+4*c, uint32(vals[j*n+c])) {
				changed = true
			}
		}
	}
	if changed {
		m.dirty[i] = true
		m.anyDirty = true
	}
}

// Set1f sets a float uniform.
func (m *DataManager) Set1f(i int, v0 float32) {
	m.putFloats(i, m.check(i, Float, true, 1, 1), 1, 16, 1, 0, 1, []float32{v0})
}

// Set2f sets a float2 uniform.
func (m *DataManager) Set2f(i int, v0, v1 float32) {
	m.putFloats(i, m.check(i, Float2, true, 2, 1), 1, 16, 1, 0, 2, []float32{v0, v1})
}

// Set3f sets a float3 uniform.
func (m *DataManager) Set3f(i int, v0, v1, v2 float32) {
	m.putFloats(i, m.check(i, Float3, true, 3, 1), 1, 16, 1, 0, 3, []float32{v0, v1, v2})
}

// Set4f sets a float4 uniform.
func (m *DataManager) Set4f(i int, v0, v1, v2, v3 float32) {
	m.putFloats(i, m.check(i, Float4, true, 4, 1), 1, 16, 1, 0, 4, []float32{v0, v1, v2, v3})
}

// Set1fv sets count elements of a float array uniform. Elements are 16
// bytes apart.
func (m *DataManager) Set1fv(i, count int, vals []float32) {
	m.putFloats(i, m.check(i, Float, true, 1, count), count, 16, 1, 0, 1, vals)
}

// Set2fv sets count elements of a float2 array uniform.
func (m *DataManager) Set2fv(i, count int, vals []float32) {
	m.putFloats(i, m.check(i, Float2, true, 2, count), count, 16, 1, 0, 2, vals)
}

// Set3fv sets count elements of a float3 array uniform.
func (m *DataManager) Set3fv(i, count int, vals []float32) {
	m.putFloats(i, m.check(i, Float3, true, 3, count), count, 16, 1, 0, 3, vals)
}

// Set4fv sets count elements of a float4 array uniform.
func (m *DataManager) Set4fv(i, count int, vals []float32) {
	m.putFloats(i, m.check(i, Float4, true, 4, count), count, 16, 1, 0, 4, vals)
}

// Set1i sets an int, uint or bool uniform.
func (m *DataManager) Set1i(i int, v0 int32) {
	m.putInts(i, m.check(i, Int, false, 1, 1), 1, 1, []int32{v0})
}

// Set2i sets an int2, uint2 or bool2 uniform.
func (m *DataManager) Set2i(i int, v0, v1 int32) {
	m.putInts(i, m.check(i, Int2, false, 2, 1), 1, 2, []int32{v0, v1})
}

// Set3i sets an int3, uint3 or bool3 uniform.
func (m *DataManager) Set3i(i int, v0, v1, v2 int32) {
	m.putInts(i, m.check(i, Int3, false, 3, 1), 1, 3, []int32{v0, v1, v2})
}

// Set4i sets an int4, uint4 or bool4 uniform.
func (m *DataManager) Set4i(i int, v0, v1, v2, v3 int32) {
	m.putInts(i, m.check(i, Int4, false, 4, 1), 1, 4, []int32{v0, v1, v2, v3})
}

// Set1iv sets count elements of an int array uniform.
func (m *DataManager) Set1iv(i, count int, vals []int32) {
	m.putInts(i, m.check(i, Int, false, 1, count), count, 1, vals)
}

// Set4iv sets count elements of an int4 array uniform.
func (m *DataManager) Set4iv(i, count int, vals []int32) {
	m.putInts(i, m.check(i, Int4, false, 4, count), count, 4, vals)
}

// SetMatrix2f sets a float2x2 uniform from 4 column-major floats.
// Columns are stored 16 bytes apart.
func (m *DataManager) SetMatrix2f(i int, vals []float32) {
	m.SetMatrix2fv(i, 1, vals)
}

// SetMatrix2fv sets count elements of a float2x2 array uniform.
func (m *DataManager) SetMatrix2fv(i, count int, vals []float32) {
	m.putFloats(i, m.check(i, Float2x2, true, 2, count), count, 32, 2, 16, 2, vals)
}

// SetMatrix3f sets a float3x3 uniform from 9 column-major floats.
// Columns are stored 16 bytes apart.
func (m *DataManager) SetMatrix3f(i int, vals []float32) {
	m.SetMatrix3fv(i, 1, vals)
}

// SetMatrix3fv sets count elements of a float3x3 array uniform.
func (m *DataManager) SetMatrix3fv(i, count int, vals []float32) {
	m.putFloats(i, m.check(i, Float3x3, true, 3, count), count, 48, 3, 16, 3, vals)
}

// SetMatrix4f sets a float4x4 uniform from 16 column-major floats.
func (m *DataManager) SetMatrix4f(i int, vals []float32) {
	m.SetMatrix4fv(i, 1, vals)
}

// SetMatrix4fv sets count elements of a float4x4 array uniform.
func (m *DataManager) SetMatrix4fv(i, count int, vals []float32) {
	m.putFloats(i, m.check(i, Float4x4, true, 4, count), count, 64, 4, 16, 4, vals)
}

// UploadAll writes every dirty uniform to buf and clears the dirty flags.
// Dirty uniforms adjacent in the block are sent as one range.
func (m *DataManager) UploadAll(buf gpucore.Buffer) error {
	if !m.anyDirty {
		return nil
	}
	start, end := -1, -1
	flush := func() error {
		if start < 0 {
			return nil
		}
		if err := buf.Update(int64(start), m.data[start:end]); err != nil {
			return fmt.Errorf("uniform: upload [%d, %d): %w", start, end, err)
		}
		start, end = -1, -1
		return nil
	}
	for i, dirty := range m.dirty {
		if !dirty {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		off, t := Unpack(m.uniforms[i])
		u := Uniform{Type: t, ArrayCount: m.counts[i]}
		if start < 0 {
			start = off
		}
		end = off + u.footprint()
	}
	if err := flush(); err != nil {
		return err
	}
	clear(m.dirty)
	m.anyDirty = false
	return nil
}
