package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// UpperMedian returns sorted[len/2]. For even lengths this picks the upper of
// the two middle values rather than averaging them.
func UpperMedian(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}

// Median returns the interpolation-free 0.5 quantile using gonum
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// Sum adds the values of a slice
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Sum(data)
}

// Correlation returns the Pearson correlation of x and y, or 0 when undefined
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// ArgMax returns the index of the largest value, -1 for an empty slice
func ArgMax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// Finite reports whether every value is neither NaN nor infinite
func Finite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Rotate returns data circularly shifted so out[i] = data[(i-shift) mod n]
func Rotate(data []float64, shift int) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	shift = ((shift % n) + n) % n
	for i := range data {
		out[(i+shift)%n] = data[i]
	}
	return out
}
