package analysis

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-chords/algorithms/filters"
	"github.com/RyanBlaney/sonido-chords/algorithms/temporal"
	"github.com/RyanBlaney/sonido-chords/engine"
	"github.com/RyanBlaney/sonido-chords/logging"
)

const (
	scanFrameSize = 2048
	scanHopSize   = 512
	// scanThreshold is the spectral energy above which a scan frame counts as an onset
	scanThreshold = 0.1
	// syntheticBeatInterval is one beat at the default tempo
	syntheticBeatInterval = 0.5
	// dcCutoff is the high-pass corner applied before onset detection, in Hz
	dcCutoff = 10.0
)

// Sources reported in BeatResult.Source
const (
	SourceEnergyScan = "energy_scan"
	SourceSynthetic  = "synthetic"
)

// BeatResult is the output of the beat estimator. Source names the onset
// strategy that produced the beats.
type BeatResult struct {
	Beats   []float64 `json:"beats"`
	BPM     float64   `json:"bpm"`
	Source  string    `json:"source"`
	Refined bool      `json:"refined"`
}

type onsetStrategy struct {
	name string
	// dcBlocked strategies see the signal after the DC blocker, the others
	// see the decoded samples as they are
	dcBlocked bool
	detect    func(ctx context.Context, signal []float64) ([]float64, error)
}

// BeatEstimator finds beats and tempo with a cascade of onset strategies
type BeatEstimator struct {
	engine     engine.Engine
	strategies []onsetStrategy
	logger     logging.Logger
}

// NewBeatEstimator creates a beat estimator. Onset methods are tried in the
// order complex, hfc, energy, flux, melflux, followed by a plain energy scan.
func NewBeatEstimator(eng engine.Engine, logger logging.Logger) *BeatEstimator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	be := &BeatEstimator{
		engine: eng,
		logger: logger.WithFields(logging.Fields{"component": "beat_estimator"}),
	}

	for _, method := range temporal.Methods() {
		be.strategies = append(be.strategies, onsetStrategy{
			name:      method,
			dcBlocked: true,
			detect: func(_ context.Context, signal []float64) ([]float64, error) {
				res, err := be.engine.OnsetDetectionGlobal(signal, method)
				if err != nil {
					return nil, err
				}
				return engine.Collect(res)
			},
		})
	}
	be.strategies = append(be.strategies, onsetStrategy{
		name: SourceEnergyScan,
		detect: func(ctx context.Context, signal []float64) ([]float64, error) {
			return EnergyScan(ctx, be.engine, signal)
		},
	})

	return be
}

// Estimate never fails. If the cascade itself breaks, it returns evenly spaced
// beats at the default tempo across the buffer.
func (be *BeatEstimator) Estimate(ctx context.Context, samples []float32) (result BeatResult) {
	duration := float64(len(samples)) / SampleRate

	defer func() {
		if r := recover(); r != nil {
			be.logger.Error(fmt.Errorf("%v", r), "Beat estimation panicked, using synthetic beats")
			result = syntheticBeats(duration)
		}
	}()

	res, err := be.estimate(ctx, samples)
	if err != nil {
		be.logger.Warn("Beat estimation failed, using synthetic beats", logging.Fields{"error": err.Error()})
		return syntheticBeats(duration)
	}
	return res
}

func (be *BeatEstimator) estimate(ctx context.Context, samples []float32) (BeatResult, error) {
	raw := make([]float64, len(samples))
	for i, s := range samples {
		raw[i] = float64(s)
	}
	// an offset in the decoded audio would read as constant energy to the
	// onset detection functions
	blocked := slices.Clone(raw)
	filters.NewDCBlocker(SampleRate, dcCutoff).ApplyInPlace(blocked)

	onsets, source, err := be.detectOnsets(ctx, raw, blocked)
	if err != nil {
		return BeatResult{}, err
	}

	result := BeatResult{Beats: onsets, Source: source}
	if len(onsets) > 0 {
		if beats, err := be.refine(onsets); err != nil {
			be.logger.Warn("Beat refinement failed, using raw onsets", logging.Fields{
				"onsets": len(onsets),
				"error":  err.Error(),
			})
		} else if len(beats) > 0 {
			result.Beats = beats
			result.Refined = true
		}
	}

	result.BPM = temporal.TempoFromBeats(result.Beats)

	be.logger.Debug("Beat estimation complete", logging.Fields{
		"source":  result.Source,
		"beats":   len(result.Beats),
		"refined": result.Refined,
		"bpm":     result.BPM,
	})
	return result, nil
}

// detectOnsets runs the strategies in order and stops at the first one that
// yields an onset. A failing strategy is skipped.
func (be *BeatEstimator) detectOnsets(ctx context.Context, raw, blocked []float64) ([]float64, string, error) {
	last := ""
	for _, s := range be.strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		signal := raw
		if s.dcBlocked {
			signal = blocked
		}
		onsets, err := s.detect(ctx, signal)
		if err != nil {
			be.logger.Warn("Onset strategy failed", logging.Fields{
				"strategy": s.name,
				"error":    err.Error(),
			})
			continue
		}
		last = s.name
		if len(onsets) > 0 {
			be.logger.Debug("Onsets detected", logging.Fields{
				"strategy": s.name,
				"onsets":   len(onsets),
			})
			return onsets, s.name, nil
		}
	}
	return []float64{}, last, nil
}

func (be *BeatEstimator) refine(onsets []float64) ([]float64, error) {
	res, err := be.engine.BeatTrackerDegara(onsets)
	if err != nil {
		return nil, err
	}
	return engine.Collect(res)
}

// EnergyScan marks an onset at every 2048-sample frame, hop 512, whose
// windowed spectral energy exceeds 0.1. It runs on the decoded signal
// without DC blocking. Times are in seconds.
func EnergyScan(ctx context.Context, eng engine.Engine, signal []float64) ([]float64, error) {
	onsets := []float64{}

	for i := 0; i < len(signal)-scanFrameSize; i += scanHopSize {
		if i%(scanHopSize*256) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		res, err := eng.Windowing("hann", signal[i:i+scanFrameSize])
		if err != nil {
			return nil, fmt.Errorf("energy scan at %d: %w", i, err)
		}
		windowed, err := engine.Collect(res)
		if err != nil {
			return nil, fmt.Errorf("energy scan at %d: %w", i, err)
		}

		res, err = eng.Spectrum(windowed)
		if err != nil {
			return nil, fmt.Errorf("energy scan at %d: %w", i, err)
		}
		spectrum, err := engine.Collect(res)
		if err != nil {
			return nil, fmt.Errorf("energy scan at %d: %w", i, err)
		}

		energy := 0.0
		for _, v := range spectrum {
			energy += v * v
		}
		if energy > scanThreshold {
			onsets = append(onsets, float64(i)/SampleRate)
		}
	}

	return onsets, nil
}

func syntheticBeats(duration float64) BeatResult {
	n := int(math.Ceil(duration / syntheticBeatInterval))
	beats := make([]float64, 0, max(n, 0))
	for i := range n {
		beats = append(beats, float64(i)*syntheticBeatInterval)
	}
	return BeatResult{
		Beats:  beats,
		BPM:    temporal.DefaultBPM,
		Source: SourceSynthetic,
	}
}
