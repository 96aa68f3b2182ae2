package chroma

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/harmonic"
)

// HPCPParams holds parameters for HPCP computation
type HPCPParams struct {
	Size              int     `json:"size"`               // Size of output HPCP vector (12, 24, 36)
	ReferenceFreq     float64 `json:"reference_freq"`     // Reference frequency for A4 (440 Hz)
	Normalized        bool    `json:"normalized"`         // Scale so the largest bin is 1
	WeightType        string  `json:"weight_type"`        // "none", "cosine", "squared_cosine"
	WindowSize        float64 `json:"window_size"`        // Window size in semitones
	NonLinear         bool    `json:"non_linear"`         // Apply log compression
	BandPreset        bool    `json:"band_preset"`        // Boost peaks below SplitFreq
	MinFreq           float64 `json:"min_freq"`           // Minimum frequency to consider
	MaxFreq           float64 `json:"max_freq"`           // Maximum frequency to consider
	SplitFreq         float64 `json:"split_freq"`         // Split frequency for band preset
	HarmonicsStrength float64 `json:"harmonics_strength"` // Strength factor for harmonics
	MaxHarmonics      int     `json:"max_harmonics"`      // Harmonics folded in per peak, 0 disables
}

// DefaultHPCPParams returns the 12-bin profile used for chord and key analysis
func DefaultHPCPParams() HPCPParams {
	return HPCPParams{
		Size:              12,
		ReferenceFreq:     440.0,
		Normalized:        true,
		WeightType:        "cosine",
		WindowSize:        1.0,
		BandPreset:        true,
		MinFreq:           40.0,
		MaxFreq:           5000.0,
		SplitFreq:         500.0,
		HarmonicsStrength: 1.0,
	}
}

// HPCPResult contains the result of HPCP computation
type HPCPResult struct {
	HPCP    []float64 `json:"hpcp"`    // Harmonic pitch class profile, bin 0 = C
	Size    int       `json:"size"`    // Size of HPCP vector
	Energy  float64   `json:"energy"`  // Euclidean norm of the profile
	Entropy float64   `json:"entropy"` // Entropy of the distribution in bits
}

// HPCP folds spectral peaks into a harmonic pitch class profile
type HPCP struct {
	params          HPCPParams
	harmonicWeights []float64
	normalizer      *common.Normalizer
}

// NewHPCP creates a new HPCP analyzer with default parameters
func NewHPCP() *HPCP {
	h, _ := NewHPCPWithParams(DefaultHPCPParams())
	return h
}

// NewHPCPWithParams creates a new HPCP analyzer with custom parameters
func NewHPCPWithParams(params HPCPParams) (*HPCP, error) {
	if params.Size <= 0 || params.Size%12 != 0 {
		return nil, fmt.Errorf("hpcp size must be a positive multiple of 12: %d", params.Size)
	}
	if params.ReferenceFreq <= 0 {
		return nil, fmt.Errorf("reference frequency must be positive: %v", params.ReferenceFreq)
	}
	if params.MinFreq >= params.MaxFreq {
		return nil, fmt.Errorf("min frequency %v must be below max frequency %v", params.MinFreq, params.MaxFreq)
	}

	h := &HPCP{
		params:     params,
		normalizer: common.NewNormalizer(common.UnitMax),
	}

	if params.MaxHarmonics > 0 {
		h.harmonicWeights = make([]float64, params.MaxHarmonics+1)
		for i := 1; i <= params.MaxHarmonics; i++ {
			h.harmonicWeights[i] = params.HarmonicsStrength / float64(i)
		}
	}

	return h, nil
}

// Compute builds the profile from parallel frequency/magnitude slices
func (h *HPCP) Compute(frequencies, magnitudes []float64) (HPCPResult, error) {
	if len(frequencies) != len(magnitudes) {
		return HPCPResult{}, fmt.Errorf("frequencies (%d) and magnitudes (%d) differ in length", len(frequencies), len(magnitudes))
	}

	peaks := make([]harmonic.SpectralPeak, len(frequencies))
	for i := range frequencies {
		peaks[i] = harmonic.SpectralPeak{Frequency: frequencies[i], Magnitude: magnitudes[i]}
	}
	return h.ComputeFromSpectralPeaks(peaks), nil
}

// ComputeFromSpectralPeaks computes HPCP from spectral peaks
func (h *HPCP) ComputeFromSpectralPeaks(peaks []harmonic.SpectralPeak) HPCPResult {
	hpcp := make([]float64, h.params.Size)

	for _, peak := range peaks {
		if peak.Frequency < h.params.MinFreq || peak.Frequency > h.params.MaxFreq {
			continue
		}

		pitchClass := h.frequencyToPitchClass(peak.Frequency)
		h.addPeakContribution(hpcp, pitchClass, h.computePeakWeight(peak))

		if h.params.MaxHarmonics > 0 {
			h.addHarmonicContributions(hpcp, peak)
		}
	}

	if h.params.NonLinear {
		for i := range hpcp {
			if hpcp[i] > 0 {
				hpcp[i] = math.Log(1 + hpcp[i])
			}
		}
	}

	if h.params.Normalized {
		h.normalizer.NormalizeInPlace(hpcp)
	}

	return HPCPResult{
		HPCP:    hpcp,
		Size:    h.params.Size,
		Energy:  computeEnergy(hpcp),
		Entropy: computeEntropy(hpcp),
	}
}

// frequencyToPitchClass maps a frequency onto the fractional bin axis, C = 0
func (h *HPCP) frequencyToPitchClass(freq float64) float64 {
	midiNote := 69 + 12*math.Log2(freq/h.params.ReferenceFreq)

	pitchClass := math.Mod(midiNote, 12)
	if pitchClass < 0 {
		pitchClass += 12
	}

	return pitchClass * float64(h.params.Size) / 12.0
}

func (h *HPCP) computePeakWeight(peak harmonic.SpectralPeak) float64 {
	weight := peak.Magnitude * peak.Magnitude
	if h.params.BandPreset && peak.Frequency < h.params.SplitFreq {
		weight *= 2.0
	}
	return weight
}

// addPeakContribution spreads weight over the bins within half a window of pitchClass
func (h *HPCP) addPeakContribution(hpcp []float64, pitchClass, weight float64) {
	size := h.params.Size
	windowSizeBins := h.params.WindowSize * float64(size) / 12.0

	startBin := int(math.Floor(pitchClass - windowSizeBins/2))
	endBin := int(math.Ceil(pitchClass + windowSizeBins/2))

	for bin := startBin; bin <= endBin; bin++ {
		wrappedBin := ((bin % size) + size) % size

		distance := math.Abs(float64(bin) - pitchClass)
		if distance > windowSizeBins/2 {
			continue
		}
		hpcp[wrappedBin] += weight * h.computeWindowWeight(distance, windowSizeBins)
	}
}

func (h *HPCP) computeWindowWeight(distance, windowSize float64) float64 {
	if windowSize == 0 {
		return 1.0
	}

	switch h.params.WeightType {
	case "cosine":
		return math.Max(0, math.Cos(math.Pi*distance/windowSize))
	case "squared_cosine":
		c := math.Max(0, math.Cos(math.Pi*distance/windowSize))
		return c * c
	default:
		return 1.0
	}
}

func (h *HPCP) addHarmonicContributions(hpcp []float64, peak harmonic.SpectralPeak) {
	for n := 2; n <= h.params.MaxHarmonics; n++ {
		harmonicFreq := peak.Frequency * float64(n)
		if harmonicFreq > h.params.MaxFreq {
			break
		}
		h.addPeakContribution(hpcp, h.frequencyToPitchClass(harmonicFreq), h.computePeakWeight(peak)*h.harmonicWeights[n])
	}
}

func computeEnergy(hpcp []float64) float64 {
	energy := 0.0
	for _, val := range hpcp {
		energy += val * val
	}
	return math.Sqrt(energy)
}

func computeEntropy(hpcp []float64) float64 {
	sum := 0.0
	for _, val := range hpcp {
		sum += val
	}
	if sum == 0 {
		return 0
	}

	entropy := 0.0
	for _, val := range hpcp {
		if val > 0 {
			prob := val / sum
			entropy -= prob * math.Log2(prob)
		}
	}
	return entropy
}

// Params returns the current parameters
func (h *HPCP) Params() HPCPParams {
	return h.params
}
