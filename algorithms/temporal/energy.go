package temporal

import (
	"math"
)

// Energy computes short-time energy envelopes
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// ComputeShortTimeEnergy calculates RMS energy for overlapping frames
func (e *Energy) ComputeShortTimeEnergy(signal []float64) []float64 {
	if len(signal) < e.frameSize || e.hopSize <= 0 || e.frameSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-e.frameSize)/e.hopSize + 1
	energies := make([]float64, numFrames)

	for i := range numFrames {
		startIdx := i * e.hopSize
		sumSquares := 0.0
		for _, s := range signal[startIdx : startIdx+e.frameSize] {
			sumSquares += s * s
		}
		energies[i] = math.Sqrt(sumSquares / float64(e.frameSize))
	}

	return energies
}

// ComputeEnergyDerivative returns the half-wave rectified first difference of
// an envelope. Index i holds the rise from frame i-1 to frame i; index 0 is 0.
func (e *Energy) ComputeEnergyDerivative(energies []float64) []float64 {
	if len(energies) == 0 {
		return []float64{}
	}

	derivative := make([]float64, len(energies))
	for i := 1; i < len(energies); i++ {
		if d := energies[i] - energies[i-1]; d > 0 {
			derivative[i] = d
		}
	}
	return derivative
}
