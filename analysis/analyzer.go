// Package analysis turns a decoded sample buffer into chords, beats, tempo and key.
package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-chords/engine"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// Result is everything the analyzer learns from one buffer
type Result struct {
	Chords      []string      `json:"chords"`
	Strengths   []float64     `json:"strengths"`
	BPM         float64       `json:"bpm"`
	Beats       []float64     `json:"beats"`
	BeatSource  string        `json:"beatSource"`
	Key         string        `json:"key"`
	Scale       string        `json:"scale"`
	KeyStrength float64       `json:"keyStrength"`
	Frames      int           `json:"frames"`
	Duration    float64       `json:"duration"` // seconds of audio
	Elapsed     time.Duration `json:"-"`
}

// Options tunes an Analyzer
type Options struct {
	Threshold float64 `json:"threshold"`
	Workers   int     `json:"workers"` // frame extraction workers, 0 for automatic
}

// DefaultOptions returns the standard analyzer options
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold}
}

// Analyzer runs the full analysis chain
type Analyzer struct {
	frames  *FrameExtractor
	beats   *BeatEstimator
	chords  *ChordDetector
	key     *KeyDetector
	options Options
	logger  logging.Logger
}

// NewAnalyzer wires all stages to one engine
func NewAnalyzer(eng engine.Engine, options Options, logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Analyzer{
		frames:  NewFrameExtractor(eng, logger).WithWorkers(options.Workers),
		beats:   NewBeatEstimator(eng, logger),
		chords:  NewChordDetector(eng, logger),
		key:     NewKeyDetector(eng, logger),
		options: options,
		logger:  logger.WithFields(logging.Fields{"component": "analyzer"}),
	}
}

// Analyze extracts chroma and beats concurrently, then detects and filters
// chords and estimates the key. Chord detection failure fails the analysis.
func (a *Analyzer) Analyze(ctx context.Context, samples []float32) (*Result, error) {
	start := time.Now()
	logger := a.logger.WithContext(ctx)

	var (
		pcp   [][]float64
		beats BeatResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pcp, err = a.frames.Extract(gctx, samples)
		return err
	})
	g.Go(func() error {
		beats = a.beats.Estimate(gctx, samples)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("Features extracted", logging.Fields{
		"frames":      len(pcp),
		"beats":       len(beats.Beats),
		"beat_source": beats.Source,
		"bpm":         beats.BPM,
	})

	raw, err := a.chords.Detect(ctx, pcp, beats.Beats, beats.BPM)
	if err != nil {
		return nil, err
	}

	filtered := FilterChords(raw.Labels, raw.Strengths, a.options.Threshold, beats.BPM)
	key := a.key.Detect(pcp)

	result := &Result{
		Chords:      filtered.Chords,
		Strengths:   filtered.Strengths,
		BPM:         filtered.BPM,
		Beats:       beats.Beats,
		BeatSource:  beats.Source,
		Key:         key.Key,
		Scale:       key.Scale,
		KeyStrength: key.Strength,
		Frames:      len(pcp),
		Duration:    float64(len(samples)) / SampleRate,
		Elapsed:     time.Since(start),
	}

	logger.Info("Analysis complete", logging.Fields{
		"chords":   len(result.Chords),
		"raw":      len(raw.Labels),
		"strategy": raw.Strategy,
		"bpm":      result.BPM,
		"key":      result.Key + " " + result.Scale,
		"elapsed":  result.Elapsed.String(),
	})
	return result, nil
}
