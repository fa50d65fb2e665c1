package foresttune

import (
	"math"

	"golang.org/x/exp/constraints"
)

//////
// Helper functions.
//////

// Helper function used by the expected-improvement criterion to compute the
// cumulative distribution function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by the expected-improvement criterion to compute the
// probability density function of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// clamp restricts v to the inclusive range [lo, hi].
func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// unitDistance computes the Euclidean distance between two points in
// normalized unit space. Used by the infill search to break acquisition ties
// toward the incumbent.
func unitDistance(a, b []float64) float64 {
	var sum float64

	for i := range a {
		diff := a[i] - b[i]

		sum += diff * diff
	}

	return math.Sqrt(sum)
}
