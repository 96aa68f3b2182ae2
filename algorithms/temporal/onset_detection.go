package temporal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/spectral"
	"github.com/RyanBlaney/sonido-chords/algorithms/windowing"
)

// Onset detection methods accepted by DetectOnsets
const (
	MethodComplex = "complex"
	MethodHFC     = "hfc"
	MethodEnergy  = "energy"
	MethodFlux    = "flux"
	MethodMelFlux = "melflux"
)

// OnsetParams configures global onset detection
type OnsetParams struct {
	FrameSize    int     `json:"frame_size"`
	HopSize      int     `json:"hop_size"`
	MinInterval  float64 `json:"min_interval"`  // seconds between accepted onsets
	Delta        float64 `json:"delta"`         // offset above the local mean, on the max-normalized novelty curve
	MeanWindow   int     `json:"mean_window"`   // half width of the local mean, frames
	MelBands     int     `json:"mel_bands"`     // filters used by melflux
	SilenceFloor float64 `json:"silence_floor"` // novelty curves whose peak is below this yield no onsets
}

// DefaultOnsetParams returns parameters for 44.1 kHz material
func DefaultOnsetParams() OnsetParams {
	return OnsetParams{
		FrameSize:    1024,
		HopSize:      512,
		MinInterval:  0.05,
		Delta:        0.1,
		MeanWindow:   8,
		MelBands:     40,
		SilenceFloor: 1e-9,
	}
}

// OnsetDetection detects note/event onsets over a whole signal
type OnsetDetection struct {
	sampleRate int
	params     OnsetParams
	stft       *spectral.STFT
	window     *windowing.Window
	melBank    *spectral.MelBank
	energy     *Energy
}

// NewOnsetDetection creates a new onset detector
func NewOnsetDetection(sampleRate int, params OnsetParams) *OnsetDetection {
	return &OnsetDetection{
		sampleRate: sampleRate,
		params:     params,
		stft:       spectral.NewSTFT(),
		window:     windowing.NewHann(params.FrameSize, false),
		melBank:    spectral.NewMelBank(params.MelBands, params.FrameSize, sampleRate, 0, float64(sampleRate)/2),
		energy:     NewEnergy(params.FrameSize, params.HopSize),
	}
}

// Methods lists the supported detection methods
func Methods() []string {
	return []string{MethodComplex, MethodHFC, MethodEnergy, MethodFlux, MethodMelFlux}
}

// DetectOnsets returns onset times in seconds, ascending. A signal shorter than
// one frame or without any novelty yields no onsets and no error.
func (od *OnsetDetection) DetectOnsets(signal []float64, method string) ([]float64, error) {
	if spectral.FrameCount(len(signal), od.params.FrameSize, od.params.HopSize) < 3 {
		return []float64{}, nil
	}

	novelty, err := od.Novelty(signal, method)
	if err != nil {
		return nil, err
	}

	frames := od.pickPeaks(novelty)

	onsets := make([]float64, len(frames))
	for i, f := range frames {
		onsets[i] = float64(f*od.params.HopSize) / float64(od.sampleRate)
	}
	return onsets, nil
}

// Novelty computes the per-frame detection function for a method
func (od *OnsetDetection) Novelty(signal []float64, method string) ([]float64, error) {
	if method == MethodEnergy {
		envelope := od.energy.ComputeShortTimeEnergy(signal)
		return od.energy.ComputeEnergyDerivative(envelope), nil
	}

	spec, err := od.stft.ComputeWithWindow(signal, od.params.FrameSize, od.params.HopSize, od.sampleRate, od.window)
	if err != nil {
		return nil, fmt.Errorf("onset spectrogram: %w", err)
	}

	novelty := make([]float64, spec.TimeFrames)

	switch method {
	case MethodHFC:
		for t, mag := range spec.Magnitude {
			novelty[t] = spectral.HFC(mag)
		}
	case MethodFlux:
		for t := 1; t < spec.TimeFrames; t++ {
			novelty[t] = spectral.Flux(spec.Magnitude[t-1], spec.Magnitude[t])
		}
	case MethodMelFlux:
		prev := od.melBank.Apply(spec.Magnitude[0])
		for t := 1; t < spec.TimeFrames; t++ {
			cur := od.melBank.Apply(spec.Magnitude[t])
			novelty[t] = spectral.LogFlux(prev, cur)
			prev = cur
		}
	case MethodComplex:
		for t := 2; t < spec.TimeFrames; t++ {
			novelty[t] = spectral.ComplexDomain(spec.Complex[t-2], spec.Complex[t-1], spec.Complex[t])
		}
	default:
		return nil, fmt.Errorf("unknown onset detection method: %q", method)
	}

	return novelty, nil
}

// pickPeaks keeps local maxima of the max-normalized curve that rise Delta
// above their local mean, at least MinInterval apart
func (od *OnsetDetection) pickPeaks(novelty []float64) []int {
	if len(novelty) < 3 {
		return []int{}
	}

	peak := novelty[common.ArgMax(novelty)]
	if peak < od.params.SilenceFloor {
		return []int{}
	}

	curve := common.NewNormalizer(common.UnitMax).Normalize(novelty)

	minIntervalFrames := int(od.params.MinInterval * float64(od.sampleRate) / float64(od.params.HopSize))
	w := od.params.MeanWindow

	var peaks []int
	last := -minIntervalFrames - 1

	for i := 1; i < len(curve)-1; i++ {
		if curve[i] <= curve[i-1] || curve[i] < curve[i+1] {
			continue
		}

		lo, hi := max(0, i-w), min(len(curve), i+w+1)
		threshold := common.Mean(curve[lo:hi]) + od.params.Delta
		if curve[i] < threshold {
			continue
		}

		if i-last < minIntervalFrames {
			continue
		}
		peaks = append(peaks, i)
		last = i
	}

	return peaks
}
