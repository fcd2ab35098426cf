package surface

import (
	"fmt"
	"strings"
)

// Swizzle maps the four output channels of a view to source channels.
// Each of the four nibbles holds one component index: r, g, b, a, 0 or 1.
type Swizzle uint16

const swizzleChars = "rgba01"

// Common swizzles.
var (
	SwizzleRGBA = MustParseSwizzle("rgba")
	SwizzleBGRA = MustParseSwizzle("bgra")
	SwizzleAAAA = MustParseSwizzle("aaaa")
	SwizzleRRRR = MustParseSwizzle("rrrr")
	SwizzleRGB1 = MustParseSwizzle("rgb1")
)

// ParseSwizzle parses a four-character swizzle such as "bgra" or "rrr1".
func ParseSwizzle(s string) (Swizzle, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("surface: swizzle %q must have 4 components", s)
	}
	var sw Swizzle
	for i := 0; i < 4; i++ {
		c := strings.IndexByte(swizzleChars, s[i])
		if c < 0 {
			return 0, fmt.Errorf("surface: invalid swizzle component %q in %q", s[i], s)
		}
		sw |= Swizzle(c) << (4 * i)
	}
	return sw, nil
}

// MustParseSwizzle is like ParseSwizzle but panics on error.
func MustParseSwizzle(s string) Swizzle {
	sw, err := ParseSwizzle(s)
	if err != nil {
		panic(err)
	}
	return sw
}

// Component returns the source channel character for output channel i.
func (s Swizzle) Component(i int) byte {
	return swizzleChars[(s>>(4*i))&0xF]
}

// Concat returns the swizzle equivalent to applying s and then t.
func (s Swizzle) Concat(t Swizzle) Swizzle {
	var out Swizzle
	for i := 0; i < 4; i++ {
		c := (t >> (4 * i)) & 0xF
		if c < 4 {
			c = (s >> (4 * c)) & 0xF
		}
		out |= c << (4 * i)
	}
	return out
}

func (s Swizzle) String() string {
	var b [4]byte
	for i := range b {
		b[i] = s.Component(i)
	}
	return string(b[:])
}
