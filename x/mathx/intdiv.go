// Package mathx holds divider arithmetic for clock trees and baud rates.
// Operands are unsigned; a zero divisor never panics.
package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b); b == 0 yields 0.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// RoundDiv returns floor((a + b/2)/b); b == 0 yields 0.
func RoundDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}

// ExactDiv returns a/b and whether b divides a with no remainder.
func ExactDiv[T constraints.Unsigned](a, b T) (T, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, a%b == 0
}

// AbsDiff returns |a-b| without wrapping.
func AbsDiff[T constraints.Unsigned](a, b T) T {
	if a > b {
		return a - b
	}
	return b - a
}
