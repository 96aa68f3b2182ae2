package filters

import (
	"math"
)

// DefaultPole gives a cutoff near 35 Hz at 44.1 kHz
const DefaultPole = 0.995

// DCBlocker is the one-pole high-pass y[n] = x[n] - x[n-1] + R*y[n-1].
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCBlocker struct {
	pole float64
	x1   float64
	y1   float64
}

// NewDCBlocker creates a blocker whose -3 dB point sits near cutoff Hz.
// It falls back to DefaultPole when the cutoff cannot be realized.
func NewDCBlocker(sampleRate int, cutoff float64) *DCBlocker {
	pole := DefaultPole
	if sampleRate > 0 && cutoff > 0 {
		// small angle approximation, valid for cutoff << sampleRate/2
		pole = 1 - 2*math.Pi*cutoff/float64(sampleRate)
	}
	if pole <= 0 || pole >= 1 {
		pole = DefaultPole
	}
	return &DCBlocker{pole: pole}
}

// Process filters one sample
func (dc *DCBlocker) Process(x float64) float64 {
	y := x - dc.x1 + dc.pole*dc.y1
	dc.x1 = x
	dc.y1 = y
	return y
}

// ApplyInPlace filters signal, carrying state across calls
func (dc *DCBlocker) ApplyInPlace(signal []float64) {
	for i, x := range signal {
		signal[i] = dc.Process(x)
	}
}
