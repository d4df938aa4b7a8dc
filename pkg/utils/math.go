// Package utils provides shared utilities for logging, float comparison, and text.
package utils

import "math"

// Epsilon is the tolerance used for probability and score comparisons.
const Epsilon = 1e-12

// Leq reports whether a <= b within Epsilon.
func Leq(a, b float64) bool {
	return a-Epsilon <= b
}

// Eq reports whether a and b are equal within Epsilon.
func Eq(a, b float64) bool {
	return Leq(a, b) && Leq(b, a)
}

// Less reports whether a < b by more than Epsilon.
func Less(a, b float64) bool {
	return Leq(a, b) && !Eq(a, b)
}

// NaNTo returns fallback when x is NaN, otherwise x.
func NaNTo(x, fallback float64) float64 {
	if math.IsNaN(x) {
		return fallback
	}
	return x
}
