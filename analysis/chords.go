package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/engine"
	"github.com/RyanBlaney/sonido-chords/logging"
)

const (
	ChordHopSize       = 1024
	ChordChromaPick    = "nnls"
	ChordWindowSeconds = 2.0

	// DefaultThreshold is the minimum strength a chord needs to survive filtering
	DefaultThreshold = 0.75
)

// Strategy names reported in Chords.Strategy
const (
	StrategyBeats  = "beats"
	StrategyFrames = "frames"
)

// Chords is the raw output of the chord detector. Labels and Strengths are parallel.
type Chords struct {
	Labels    []string  `json:"labels"`
	Strengths []float64 `json:"strengths"`
	Strategy  string    `json:"strategy"`
}

// ValidateChroma rejects sequences that detection cannot consume
func ValidateChroma(pcp [][]float64) error {
	if len(pcp) == 0 {
		return &ValidationError{Reason: ReasonEmpty, Frame: -1}
	}
	for i, frame := range pcp {
		if len(frame) == 0 {
			return &ValidationError{Reason: ReasonMalformed, Frame: i}
		}
		if !common.Finite(frame) {
			return &ValidationError{Reason: ReasonNonNumeric, Frame: i}
		}
	}
	return nil
}

// NormalizeFrames returns an L1-normalized copy of the sequence. Frames summing
// to zero are copied unchanged.
func NormalizeFrames(pcp [][]float64) [][]float64 {
	normalizer := common.NewNormalizer(common.UnitSum)
	out := make([][]float64, len(pcp))
	for i, frame := range pcp {
		out[i] = normalizer.Normalize(frame)
	}
	return out
}

// QualityReport summarizes the harmonic content of a chroma sequence
type QualityReport struct {
	AvgEnergy      float64 `json:"avg_energy"`
	MaxEnergy      float64 `json:"max_energy"`
	MinEnergy      float64 `json:"min_energy"`
	StrongFrames   int     `json:"strong_frames"` // frames above DefaultThreshold times the average
	TotalFrames    int     `json:"total_frames"`
	LeadingPeakBin [][]int `json:"leading_peak_bins"` // up to 3 strongest bins of the first 3 frames
}

// ChromaQuality computes a QualityReport. Frame energy is the sum of its bins.
func ChromaQuality(pcp [][]float64) QualityReport {
	report := QualityReport{TotalFrames: len(pcp)}
	if len(pcp) == 0 {
		return report
	}

	energies := make([]float64, len(pcp))
	for i, frame := range pcp {
		energies[i] = common.Sum(frame)
	}
	report.AvgEnergy = common.Mean(energies)
	report.MaxEnergy = slices.Max(energies)
	report.MinEnergy = slices.Min(energies)

	for _, e := range energies {
		if e > report.AvgEnergy*DefaultThreshold {
			report.StrongFrames++
		}
	}

	for _, frame := range pcp[:min(3, len(pcp))] {
		report.LeadingPeakBin = append(report.LeadingPeakBin, leadingBins(frame, 3))
	}
	return report
}

// leadingBins returns up to n bins above 30% of the frame maximum, strongest first
func leadingBins(frame []float64, n int) []int {
	if len(frame) == 0 {
		return nil
	}
	peak := slices.Max(frame)

	bins := make([]int, 0, len(frame))
	for i, v := range frame {
		if v > peak*0.3 {
			bins = append(bins, i)
		}
	}
	slices.SortStableFunc(bins, func(a, b int) int {
		switch {
		case frame[a] > frame[b]:
			return -1
		case frame[a] < frame[b]:
			return 1
		}
		return 0
	})
	return bins[:min(n, len(bins))]
}

type chordStrategy struct {
	name    string
	enabled func() bool
	detect  func() (engine.ChordResult, error)
}

// ChordDetector labels a chroma sequence with chords, beat-synchronously when
// beats are known and frame-synchronously otherwise
type ChordDetector struct {
	engine engine.Engine
	logger logging.Logger
}

// NewChordDetector creates a chord detector. A nil logger uses the global one.
func NewChordDetector(eng engine.Engine, logger logging.Logger) *ChordDetector {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &ChordDetector{
		engine: eng,
		logger: logger.WithFields(logging.Fields{"component": "chord_detector"}),
	}
}

// Detect validates and normalizes pcp, then tries each detection strategy in
// turn. The engine is not called when validation fails.
func (cd *ChordDetector) Detect(ctx context.Context, pcp [][]float64, beats []float64, bpm float64) (Chords, error) {
	if err := ValidateChroma(pcp); err != nil {
		cd.logger.Error(err, "Chroma validation failed")
		return Chords{}, err
	}

	report := ChromaQuality(pcp)
	cd.logger.Debug("Chroma quality", logging.Fields{
		"avg_energy":    fmt.Sprintf("%.4f", report.AvgEnergy),
		"max_energy":    fmt.Sprintf("%.4f", report.MaxEnergy),
		"min_energy":    fmt.Sprintf("%.4f", report.MinEnergy),
		"strong_frames": fmt.Sprintf("%d/%d", report.StrongFrames, report.TotalFrames),
		"leading_bins":  fmt.Sprint(report.LeadingPeakBin),
	})

	normalized := NormalizeFrames(pcp)

	strategies := []chordStrategy{
		{
			name:    StrategyBeats,
			enabled: func() bool { return len(beats) > 0 },
			detect: func() (engine.ChordResult, error) {
				return cd.engine.ChordsDetectionBeats(normalized, beats, ChordChromaPick, ChordHopSize, SampleRate, bpm)
			},
		},
		{
			name:    StrategyFrames,
			enabled: func() bool { return true },
			detect: func() (engine.ChordResult, error) {
				return cd.engine.ChordsDetection(normalized, ChordHopSize, SampleRate, ChordWindowSeconds)
			},
		},
	}

	var lastErr error
	for _, s := range strategies {
		if !s.enabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Chords{}, err
		}

		chords, err := cd.run(s)
		if err != nil {
			cd.logger.Warn("Chord strategy failed", logging.Fields{
				"strategy": s.name,
				"error":    err.Error(),
			})
			lastErr = err
			continue
		}

		cd.logger.Debug("Chords detected", logging.Fields{
			"strategy": s.name,
			"chords":   len(chords.Labels),
		})
		return chords, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no detection strategy applied")
	}
	return Chords{}, &DetectionError{Err: lastErr}
}

func (cd *ChordDetector) run(s chordStrategy) (chords Chords, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s detection panicked: %v", s.name, r)
		}
	}()

	res, err := s.detect()
	if err != nil {
		return Chords{}, err
	}

	labels, err := engine.Collect(res.Chords)
	if err != nil {
		return Chords{}, fmt.Errorf("chord labels: %w", err)
	}

	// strengths are optional, FilterChords treats missing ones as zero
	var strengths []float64
	if res.Strengths != nil {
		strengths, err = engine.Collect(res.Strengths)
		if err != nil {
			return Chords{}, fmt.Errorf("chord strengths: %w", err)
		}
	}

	for i, s := range strengths {
		if math.IsNaN(s) {
			strengths[i] = 0
		}
	}

	return Chords{Labels: labels, Strengths: strengths, Strategy: s.name}, nil
}
