package uniform

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/gputest"
)

func floatAt(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestSetIdempotentDirty(t *testing.T) {
	m := NewDataManager([]Uniform{{Name: "color", Type: Float4}, {Name: "scale", Type: Float}})
	buf := newUniformBuffer(t, m)

	m.Set4f(0, 1, 0.5, 0.25, 1)
	if !m.Dirty(0) || m.Dirty(1) {
		t.Fatalf("Dirty = (%v, %v), want (true, false)", m.Dirty(0), m.Dirty(1))
	}
	if err := m.UploadAll(buf); err != nil {
		t.Fatal(err)
	}
	if m.IsDirty() {
		t.Fatal("UploadAll did not clear dirty flags")
	}

	m.Set4f(0, 1, 0.5, 0.25, 1)
	if m.Dirty(0) || m.IsDirty() {
		t.Error("setting identical bytes marked the uniform dirty")
	}
	m.Set4f(0, 1, 0.5, 0.25, 0)
	if !m.Dirty(0) {
		t.Error("changed value not marked dirty")
	}
}

func TestUploadAllDirtyRanges(t *testing.T) {
	m := NewDataManager([]Uniform{
		{Name: "a", Type: Float4}, // 0..16
		{Name: "b", Type: Float4}, // 16..32
		{Name: "c", Type: Float4}, // 32..48
		{Name: "d", Type: Float},  // 48..52
	})
	dev := gputest.NewDevice()
	buf, _ := dev.CreateBuffer(int64(m.Size()), gpucore.BufferUsageUniform)

	m.Set4f(0, 1, 2, 3, 4)
	m.Set4f(1, 5, 6, 7, 8)
	m.Set1f(3, 9)
	if err := m.UploadAll(buf); err != nil {
		t.Fatal(err)
	}

	if len(dev.Uploads) != 2 {
		t.Fatalf("uploads = %d, want 2 (a+b merged, d)", len(dev.Uploads))
	}
	if u := dev.Uploads[0]; u.Offset != 0 || u.Size != 32 {
		t.Errorf("first upload = [%d, +%d), want [0, +32)", u.Offset, u.Size)
	}
	if u := dev.Uploads[1]; u.Offset != 48 || u.Size != 4 {
		t.Errorf("second upload = [%d, +%d), want [48, +4)", u.Offset, u.Size)
	}
	data := buf.(*gputest.Buffer).Data
	if floatAt(data, 20) != 6 || floatAt(data, 48) != 9 {
		t.Error("uploaded bytes do not match")
	}

	if err := m.UploadAll(buf); err != nil {
		t.Fatal(err)
	}
	if len(dev.Uploads) != 2 {
		t.Error("clean block uploaded again")
	}
}

func TestMatrixLayout(t *testing.T) {
	m := NewDataManager([]Uniform{
		{Name: "m2", Type: Float2x2},
		{Name: "m3", Type: Float3x3},
		{Name: "m4", Type: Float4x4},
	})

	m.SetMatrix2f(0, []float32{1, 2, 3, 4})
	m.SetMatrix3f(1, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	m4 := make([]float32, 16)
	for i := range m4 {
		m4[i] = float32(i + 1)
	}
	m.SetMatrix4f(2, m4)

	d := m.Data()
	off2, off3, off4 := m.Offset(0), m.Offset(1), m.Offset(2)
	if off3 != 32 || off4 != 80 {
		t.Fatalf("offsets = %d, %d, want 32, 80", off3, off4)
	}
	// float2x2: columns at +0 and +16.
	if floatAt(d, off2+4) != 2 || floatAt(d, off2+16) != 3 || floatAt(d, off2+20) != 4 {
		t.Error("float2x2 columns not 16 bytes apart")
	}
	if floatAt(d, off2+8) != 0 {
		t.Error("float2x2 padding written")
	}
	// float3x3: columns at 0, 16, 32.
	if floatAt(d, off3+16) != 4 || floatAt(d, off3+32) != 7 || floatAt(d, off3+40) != 9 {
		t.Error("float3x3 columns not 16 bytes apart")
	}
	if floatAt(d, off3+12) != 0 {
		t.Error("float3x3 padding written")
	}
	// float4x4: contiguous.
	for i := range 16 {
		if floatAt(d, off4+4*i) != float32(i+1) {
			t.Fatalf("float4x4 element %d = %v", i, floatAt(d, off4+4*i))
		}
	}
}

func TestArrayStride(t *testing.T) {
	m := NewDataManager([]Uniform{
		{Name: "weights", Type: Float, ArrayCount: 3},
		{Name: "mats", Type: Float2x2, ArrayCount: 2},
	})
	m.Set1fv(0, 3, []float32{1, 2, 3})
	m.SetMatrix2fv(1, 2, []float32{1, 2, 3, 4, 5, 6, 7, 8})

	d := m.Data()
	for j, want := range []float32{1, 2, 3} {
		if got := floatAt(d, 16*j); got != want {
			t.Errorf("weights[%d] = %v, want %v", j, got, want)
		}
	}
	base := m.Offset(1)
	if floatAt(d, base+32) != 5 || floatAt(d, base+48) != 7 {
		t.Error("float2x2 array elements not 32 bytes apart")
	}
}

func TestIntUniforms(t *testing.T) {
	m := NewDataManager([]Uniform{{Name: "n", Type: Int}, {Name: "flags", Type: Bool4}, {Name: "u", Type: UInt2}})
	m.Set1i(0, -3)
	m.Set4i(1, 1, 0, 1, 0)
	m.Set2i(2, 7, 8)

	d := m.Data()
	if int32(binary.LittleEndian.Uint32(d[0:])) != -3 {
		t.Error("int value not stored")
	}
	if binary.LittleEndian.Uint32(d[m.Offset(1)+8:]) != 1 {
		t.Error("bool4 value not stored")
	}
	if binary.LittleEndian.Uint32(d[m.Offset(2)+4:]) != 8 {
		t.Error("uint2 value not stored")
	}
}

func TestSetterTypeMismatchPanics(t *testing.T) {
	tests := []struct {
		name string
		set  func(m *DataManager)
	}{
		{"float on int", func(m *DataManager) { m.Set1f(1, 1) }},
		{"int on float", func(m *DataManager) { m.Set1i(0, 1) }},
		{"vec length", func(m *DataManager) { m.Set2f(0, 1, 2) }},
		{"matrix on vector", func(m *DataManager) { m.SetMatrix2f(2, []float32{1, 2, 3, 4}) }},
		{"array overrun", func(m *DataManager) { m.Set1fv(0, 2, []float32{1, 2}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewDataManager([]Uniform{{Name: "f", Type: Float}, {Name: "i", Type: Int}, {Name: "v", Type: Float4}})
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.set(m)
		})
	}
}

func TestMarkDirty(t *testing.T) {
	m := NewDataManager([]Uniform{{Name: "a", Type: Float}, {Name: "b", Type: Float}})
	m.MarkDirty()
	if !m.Dirty(0) || !m.Dirty(1) || !m.IsDirty() {
		t.Error("MarkDirty did not flag every uniform")
	}
}

func newUniformBuffer(t *testing.T, m *DataManager) gpucore.Buffer {
	t.Helper()
	buf, err := gputest.NewDevice().CreateBuffer(int64(m.Size()), gpucore.BufferUsageUniform)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}
