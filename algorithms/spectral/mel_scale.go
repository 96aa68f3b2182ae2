package spectral

import (
	"math"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelBank is a triangular mel filter bank built once for a given FFT size
type MelBank struct {
	filters [][]float64
}

// NewMelBank creates numFilters triangular filters between lowFreq and highFreq
func NewMelBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) *MelBank {
	if numFilters <= 0 || fftSize <= 0 {
		return &MelBank{}
	}

	lowMel := HzToMel(lowFreq)
	highMel := HzToMel(highFreq)

	melStep := (highMel - lowMel) / float64(numFilters+1)
	binPoints := make([]int, numFilters+2)
	for i := range binPoints {
		hz := MelToHz(lowMel + float64(i)*melStep)
		bin := int(math.Floor((float64(fftSize)+1.0)*hz/float64(sampleRate) + 0.5))
		binPoints[i] = min(bin, fftSize/2)
	}

	filters := make([][]float64, numFilters)
	for m := 1; m <= numFilters; m++ {
		filter := make([]float64, fftSize/2+1)
		left, center, right := binPoints[m-1], binPoints[m], binPoints[m+1]

		for k := left; k < center; k++ {
			filter[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right; k++ {
			filter[k] = float64(right-k) / float64(right-center)
		}
		filters[m-1] = filter
	}

	return &MelBank{filters: filters}
}

// Bands returns the number of filters
func (mb *MelBank) Bands() int {
	return len(mb.filters)
}

// Apply maps a magnitude spectrum onto mel band energies
func (mb *MelBank) Apply(magnitude []float64) []float64 {
	bands := make([]float64, len(mb.filters))
	for i, filter := range mb.filters {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(magnitude); j++ {
			sum += magnitude[j] * magnitude[j] * filter[j]
		}
		bands[i] = sum
	}
	return bands
}
