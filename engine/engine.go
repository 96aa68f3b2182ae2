// Package engine is the numeric DSP boundary of the analysis pipeline. The
// pipeline only talks to an Engine, so tests can substitute a spy and the native
// implementation can be swapped without touching the analysis code.
package engine

import (
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-chords/algorithms/spectral"
	"github.com/RyanBlaney/sonido-chords/algorithms/temporal"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/algorithms/windowing"
)

// ChordResult holds parallel label and strength sequences
type ChordResult struct {
	Chords    Indexable[string]
	Strengths Indexable[float64]
}

// KeyResult is the output of the key extractor
type KeyResult struct {
	Key      string  `json:"key"`
	Scale    string  `json:"scale"`
	Strength float64 `json:"strength"`
}

// Engine exposes the DSP primitives the analysis pipeline is built from.
// Any call may fail; sequence results must be read through Collect.
type Engine interface {
	Windowing(name string, frame []float64) (Indexable[float64], error)
	Spectrum(frame []float64) (Indexable[float64], error)
	SpectralPeaks(spectrum []float64) (frequencies, magnitudes Indexable[float64], err error)
	HPCP(frequencies, magnitudes []float64) (Indexable[float64], error)
	OnsetDetectionGlobal(signal []float64, method string) (Indexable[float64], error)
	BeatTrackerDegara(onsets []float64) (Indexable[float64], error)
	ChordsDetection(pcp [][]float64, hopSize, sampleRate int, windowSize float64) (ChordResult, error)
	ChordsDetectionBeats(pcp [][]float64, ticks []float64, chromaPick string, hopSize, sampleRate int, bpm float64) (ChordResult, error)
	KeyExtractor(chroma []float64) (KeyResult, error)
}

// Config holds the parameters of the native engine
type Config struct {
	SampleRate      int                        `json:"sample_rate"`
	MaxPeaks        int                        `json:"max_peaks"`
	MinPeakHeight   float64                    `json:"min_peak_height"`
	MinPeakDistance float64                    `json:"min_peak_distance"` // Hz
	HPCP            chroma.HPCPParams          `json:"hpcp"`
	Onset           temporal.OnsetParams       `json:"onset"`
	Beat            temporal.BeatTrackerParams `json:"beat"`
	KeyProfile      string                     `json:"key_profile"`
}

// DefaultConfig returns the configuration used for 44.1 kHz mono material
func DefaultConfig() Config {
	return Config{
		SampleRate:      44100,
		MaxPeaks:        100,
		MinPeakHeight:   1e-5,
		MinPeakDistance: 0,
		HPCP:            chroma.DefaultHPCPParams(),
		Onset:           temporal.DefaultOnsetParams(),
		Beat:            temporal.DefaultBeatTrackerParams(),
		KeyProfile:      "krumhansl",
	}
}

// Native implements Engine on top of the algorithms packages
type Native struct {
	config Config
	fft    *spectral.FFT
	peaks  *harmonic.SpectralPeaks
	hpcp   *chroma.HPCP
	onsets *temporal.OnsetDetection
	beats  *temporal.BeatTracker
	key    *tonal.KeyEstimator

	mu      sync.Mutex
	windows map[windowKey]*windowing.Window
}

type windowKey struct {
	name string
	size int
}

var _ Engine = (*Native)(nil)

// New creates a native engine
func New(cfg Config) (*Native, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", cfg.SampleRate)
	}

	hpcp, err := chroma.NewHPCPWithParams(cfg.HPCP)
	if err != nil {
		return nil, fmt.Errorf("failed to create hpcp: %w", err)
	}

	profile, err := tonal.ParseKeyProfile(cfg.KeyProfile)
	if err != nil {
		return nil, err
	}

	return &Native{
		config:  cfg,
		fft:     spectral.NewFFT(),
		peaks:   harmonic.NewSpectralPeaks(cfg.SampleRate, cfg.MinPeakHeight, cfg.MinPeakDistance, cfg.MaxPeaks),
		hpcp:    hpcp,
		onsets:  temporal.NewOnsetDetection(cfg.SampleRate, cfg.Onset),
		beats:   temporal.NewBeatTracker(cfg.Beat),
		key:     tonal.NewKeyEstimator(profile),
		windows: make(map[windowKey]*windowing.Window),
	}, nil
}

var (
	defaultOnce   sync.Once
	defaultEngine *Native
	defaultErr    error
)

// Default returns the process-wide native engine, built on first use
func Default() (*Native, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = New(DefaultConfig())
	})
	return defaultEngine, defaultErr
}

// Config returns the engine configuration
func (n *Native) Config() Config {
	return n.config
}

func (n *Native) window(name string, size int) (*windowing.Window, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := windowKey{name, size}
	if w, ok := n.windows[key]; ok {
		return w, nil
	}
	w, err := windowing.New(name, size)
	if err != nil {
		return nil, err
	}
	n.windows[key] = w
	return w, nil
}

func (n *Native) Windowing(name string, frame []float64) (Indexable[float64], error) {
	w, err := n.window(name, len(frame))
	if err != nil {
		return nil, err
	}
	out, err := w.Apply(frame)
	if err != nil {
		return nil, err
	}
	return Floats(out), nil
}

func (n *Native) Spectrum(frame []float64) (Indexable[float64], error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("spectrum needs at least 2 samples, got %d", len(frame))
	}
	return Floats(n.fft.Magnitude(frame)), nil
}

func (n *Native) SpectralPeaks(spectrum []float64) (Indexable[float64], Indexable[float64], error) {
	if len(spectrum) < 2 {
		return nil, nil, fmt.Errorf("spectrum too short for peak detection: %d bins", len(spectrum))
	}
	peaks := n.peaks.DetectPeaks(spectrum, (len(spectrum)-1)*2)
	freqs, mags := harmonic.Split(peaks)
	return Floats(freqs), Floats(mags), nil
}

func (n *Native) HPCP(frequencies, magnitudes []float64) (Indexable[float64], error) {
	res, err := n.hpcp.Compute(frequencies, magnitudes)
	if err != nil {
		return nil, err
	}
	return Floats(res.HPCP), nil
}

func (n *Native) OnsetDetectionGlobal(signal []float64, method string) (Indexable[float64], error) {
	onsets, err := n.onsets.DetectOnsets(signal, method)
	if err != nil {
		return nil, err
	}
	return Floats(onsets), nil
}

func (n *Native) BeatTrackerDegara(onsets []float64) (Indexable[float64], error) {
	beats, err := n.beats.Track(onsets)
	if err != nil {
		return nil, err
	}
	return Floats(beats), nil
}

func (n *Native) ChordsDetection(pcp [][]float64, hopSize, sampleRate int, windowSize float64) (ChordResult, error) {
	cd, err := tonal.NewChordsDetection(sampleRate, hopSize, windowSize)
	if err != nil {
		return ChordResult{}, err
	}
	events, err := cd.Compute(pcp)
	if err != nil {
		return ChordResult{}, err
	}
	return toChordResult(events), nil
}

func (n *Native) ChordsDetectionBeats(pcp [][]float64, ticks []float64, chromaPick string, hopSize, sampleRate int, bpm float64) (ChordResult, error) {
	cdb, err := tonal.NewChordsDetectionBeats(sampleRate, hopSize, chromaPick)
	if err != nil {
		return ChordResult{}, err
	}
	events, err := cdb.Compute(pcp, ticks, bpm)
	if err != nil {
		return ChordResult{}, err
	}
	return toChordResult(events), nil
}

func (n *Native) KeyExtractor(chroma []float64) (KeyResult, error) {
	res, err := n.key.Estimate(chroma)
	if err != nil {
		return KeyResult{}, err
	}
	return KeyResult{Key: res.KeyName, Scale: res.Scale, Strength: res.Strength}, nil
}

func toChordResult(events []tonal.ChordEvent) ChordResult {
	labels := make(Labels, len(events))
	strengths := make(Floats, len(events))
	for i, e := range events {
		labels[i] = e.Label
		strengths[i] = e.Strength
	}
	return ChordResult{Chords: labels, Strengths: strengths}
}
