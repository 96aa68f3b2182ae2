package spectral

import (
	"math"
	"math/cmplx"
)

// Onset detection functions. Each maps one frame (and its predecessors where
// needed) onto a single novelty value.

// Energy returns the total spectral energy of a magnitude frame
func Energy(magnitude []float64) float64 {
	energy := 0.0
	for _, m := range magnitude {
		energy += m * m
	}
	return energy
}

// HFC returns the high frequency content, weighting each bin's energy by its index
func HFC(magnitude []float64) float64 {
	hfc := 0.0
	for k, m := range magnitude {
		hfc += float64(k) * m * m
	}
	return hfc
}

// Flux returns the half-wave rectified L1 difference between consecutive frames
func Flux(prev, cur []float64) float64 {
	if len(prev) != len(cur) {
		return 0
	}
	flux := 0.0
	for k := range cur {
		if d := cur[k] - prev[k]; d > 0 {
			flux += d
		}
	}
	return flux
}

// LogFlux is Flux over log-compressed band energies
func LogFlux(prev, cur []float64) float64 {
	if len(prev) != len(cur) {
		return 0
	}
	const eps = 1e-10
	flux := 0.0
	for k := range cur {
		if d := math.Log(cur[k]+eps) - math.Log(prev[k]+eps); d > 0 {
			flux += d
		}
	}
	return flux
}

// ComplexDomain measures the deviation of the current frame from the value
// predicted by steady magnitude and linear phase progression
func ComplexDomain(prevPrev, prev, cur []complex128) float64 {
	if len(prevPrev) != len(cur) || len(prev) != len(cur) {
		return 0
	}
	dev := 0.0
	for k := range cur {
		predictedPhase := 2*cmplx.Phase(prev[k]) - cmplx.Phase(prevPrev[k])
		target := cmplx.Rect(cmplx.Abs(prev[k]), predictedPhase)
		dev += cmplx.Abs(cur[k] - target)
	}
	return dev
}
