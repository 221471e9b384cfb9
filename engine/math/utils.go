package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// DivCeil returns a/b rounded up. b must be non-zero.
func DivCeil[T constraints.Unsigned](a, b T) T {
	return (a + b - 1) / b
}
