package harmonic

import (
	"math"
	"sort"
)

// SpectralPeak represents a detected spectral peak
type SpectralPeak struct {
	Frequency float64 // Peak frequency in Hz (interpolated)
	Magnitude float64 // Peak magnitude (interpolated)
	BinIndex  int     // Original FFT bin index
}

// OrderBy controls the ordering of detected peaks
type OrderBy int

const (
	OrderByFrequency OrderBy = iota
	OrderByMagnitude
)

// SpectralPeaks finds the strongest local maxima of a magnitude spectrum
type SpectralPeaks struct {
	sampleRate      int
	minPeakHeight   float64
	minPeakDistance float64 // Minimum distance between peaks in Hz
	maxPeaks        int
	orderBy         OrderBy
}

// NewSpectralPeaks creates a new spectral peaks analyzer
func NewSpectralPeaks(sampleRate int, minPeakHeight, minPeakDistance float64, maxPeaks int) *SpectralPeaks {
	return &SpectralPeaks{
		sampleRate:      sampleRate,
		minPeakHeight:   minPeakHeight,
		minPeakDistance: minPeakDistance,
		maxPeaks:        maxPeaks,
		orderBy:         OrderByFrequency,
	}
}

// WithOrder returns a copy that orders its output by the given key
func (sp *SpectralPeaks) WithOrder(order OrderBy) *SpectralPeaks {
	clone := *sp
	clone.orderBy = order
	return &clone
}

// DetectPeaks detects peaks in a magnitude spectrum of an FFT of windowSize points.
// The maxPeaks strongest survive; among peaks closer than minPeakDistance only
// the stronger one is kept.
func (sp *SpectralPeaks) DetectPeaks(magnitudeSpectrum []float64, windowSize int) []SpectralPeak {
	if len(magnitudeSpectrum) < 3 || windowSize <= 0 {
		return []SpectralPeak{}
	}

	freqResolution := float64(sp.sampleRate) / float64(windowSize)

	var candidates []SpectralPeak
	for i := 1; i < len(magnitudeSpectrum)-1; i++ {
		m := magnitudeSpectrum[i]
		if m < sp.minPeakHeight || m <= magnitudeSpectrum[i-1] || m < magnitudeSpectrum[i+1] {
			continue
		}
		candidates = append(candidates, sp.interpolate(magnitudeSpectrum, i, freqResolution))
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Magnitude > candidates[j].Magnitude
	})

	peaks := make([]SpectralPeak, 0, min(len(candidates), sp.maxPeaks))
	for _, c := range candidates {
		if len(peaks) >= sp.maxPeaks {
			break
		}
		if sp.tooClose(peaks, c) {
			continue
		}
		peaks = append(peaks, c)
	}

	if sp.orderBy == OrderByFrequency {
		sort.Slice(peaks, func(i, j int) bool {
			return peaks[i].Frequency < peaks[j].Frequency
		})
	}

	return peaks
}

func (sp *SpectralPeaks) tooClose(peaks []SpectralPeak, c SpectralPeak) bool {
	if sp.minPeakDistance <= 0 {
		return false
	}
	for _, p := range peaks {
		if math.Abs(p.Frequency-c.Frequency) < sp.minPeakDistance {
			return true
		}
	}
	return false
}

// interpolate refines a bin maximum with a parabola through its neighbours
func (sp *SpectralPeaks) interpolate(mag []float64, bin int, freqResolution float64) SpectralPeak {
	y1, y2, y3 := mag[bin-1], mag[bin], mag[bin+1]

	peak := SpectralPeak{
		Frequency: float64(bin) * freqResolution,
		Magnitude: y2,
		BinIndex:  bin,
	}

	denom := y1 - 2.0*y2 + y3
	if math.Abs(denom) < 1e-12 {
		return peak
	}

	offset := 0.5 * (y1 - y3) / denom
	peak.Frequency = (float64(bin) + offset) * freqResolution
	peak.Magnitude = y2 - 0.25*(y1-y3)*offset
	return peak
}

// Split returns frequencies and magnitudes as parallel slices
func Split(peaks []SpectralPeak) (frequencies, magnitudes []float64) {
	frequencies = make([]float64, len(peaks))
	magnitudes = make([]float64, len(peaks))
	for i, p := range peaks {
		frequencies[i] = p.Frequency
		magnitudes[i] = p.Magnitude
	}
	return frequencies, magnitudes
}
