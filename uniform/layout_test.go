package uniform

import "testing"

func TestLayoutStd140(t *testing.T) {
	uniforms := []Uniform{
		{Name: "a", Type: Float},                   // 0
		{Name: "b", Type: Float2},                  // 8
		{Name: "c", Type: Float3},                  // 16
		{Name: "d", Type: Float},                   // 28
		{Name: "e", Type: Float3x3},                // 32
		{Name: "f", Type: Float, ArrayCount: 3},    // 80, stride 16
		{Name: "g", Type: Int4},                    // 128
		{Name: "h", Type: Float2x2, ArrayCount: 2}, // 144, stride 32
	}
	packed, size := Layout(uniforms)

	wantOffsets := []int{0, 8, 16, 28, 32, 80, 128, 144}
	for i, want := range wantOffsets {
		off, typ := Unpack(packed[i])
		if off != want {
			t.Errorf("%s offset = %d, want %d", uniforms[i].Name, off, want)
		}
		if typ != uniforms[i].Type {
			t.Errorf("%s type = %v, want %v", uniforms[i].Name, typ, uniforms[i].Type)
		}
	}
	if size != 208 {
		t.Errorf("block size = %d, want 208", size)
	}
}

func TestPackUnpack(t *testing.T) {
	v := Pack(0x123456, Float4x4)
	if off, typ := Unpack(v); off != 0x123456 || typ != Float4x4 {
		t.Errorf("Unpack = (%#x, %v)", off, typ)
	}
	if v>>24 != uint32(Float4x4) {
		t.Errorf("type not in high byte: %#x", v)
	}
}

func TestLayoutRejectsOpaqueTypes(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Layout should panic on a sampler uniform")
		}
	}()
	Layout([]Uniform{{Name: "s", Type: Sampler2D}})
}

func TestSLTypeVectorLength(t *testing.T) {
	tests := []struct {
		t    SLType
		want int
	}{
		{Bool, 1}, {Bool3, 3}, {Int2, 2}, {UInt4, 4}, {Float, 1}, {Float3, 3},
		{Float2x2, 2}, {Float4x4, 4}, {Texture2D, 0},
	}
	for _, tt := range tests {
		if got := tt.t.VectorLength(); got != tt.want {
			t.Errorf("%v.VectorLength() = %d, want %d", tt.t, got, tt.want)
		}
	}
}
