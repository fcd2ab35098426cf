package surface

import "math/bits"

// minApproxSize is the smallest dimension an approx-fit texture gets.
const minApproxSize = 16

// ApproxSize rounds a dimension up for approx-fit textures so that
// similarly sized requests share scratch textures. Sizes up to 1024 round
// to the next power of two; larger sizes round to the next power of two or
// to the midpoint between two powers of two.
func ApproxSize(n int) int {
	n = max(n, minApproxSize)
	if n&(n-1) == 0 {
		return n
	}
	ceil := 1 << bits.Len(uint(n))
	if n <= 1024 {
		return ceil
	}
	floor := ceil >> 1
	mid := floor + floor/2
	if n <= mid {
		return mid
	}
	return ceil
}
