package temporal

import (
	"errors"
	"math"
)

// ErrInsufficientOnsets is returned when there are too few onsets to infer a beat period
var ErrInsufficientOnsets = errors.New("at least two onsets are required for beat tracking")

// ErrNoPeriodicity is returned when no beat period in range explains the onsets
var ErrNoPeriodicity = errors.New("no periodicity found in onsets")

// BeatTrackerParams configures BeatTracker
type BeatTrackerParams struct {
	MinTempo   float64 `json:"min_tempo"`  // BPM
	MaxTempo   float64 `json:"max_tempo"`  // BPM
	Resolution float64 `json:"resolution"` // seconds per histogram bin
	Tolerance  float64 `json:"tolerance"`  // snap distance as a fraction of the period
	Multiples  int     `json:"multiples"`  // period multiples that vote in the histogram
}

// DefaultBeatTrackerParams returns the 60-200 BPM configuration
func DefaultBeatTrackerParams() BeatTrackerParams {
	return BeatTrackerParams{
		MinTempo:   60,
		MaxTempo:   200,
		Resolution: 0.01,
		Tolerance:  0.15,
		Multiples:  4,
	}
}

// BeatTracker refines a set of onsets into a regular beat grid. The period comes
// from the inter-onset interval histogram, the phase from the grid offset that
// best aligns with the onsets, and each tick snaps to a nearby onset if any.
type BeatTracker struct {
	params BeatTrackerParams
}

// NewBeatTracker creates a beat tracker
func NewBeatTracker(params BeatTrackerParams) *BeatTracker {
	return &BeatTracker{params: params}
}

// Track returns ascending beat times in seconds
func (bt *BeatTracker) Track(onsets []float64) ([]float64, error) {
	if len(onsets) < 2 {
		return nil, ErrInsufficientOnsets
	}

	period, err := bt.estimatePeriod(onsets)
	if err != nil {
		return nil, err
	}

	phase := bt.estimatePhase(onsets, period)

	first, last := onsets[0], onsets[len(onsets)-1]
	start := phase + math.Ceil((first-phase)/period-1e-9)*period
	tolerance := bt.params.Tolerance * period

	var ticks []float64
	cursor := 0
	for t := start; t <= last+tolerance; t += period {
		tick := t
		for cursor < len(onsets) && onsets[cursor] < t-tolerance {
			cursor++
		}
		best := math.Inf(1)
		for j := cursor; j < len(onsets) && onsets[j] <= t+tolerance; j++ {
			if d := math.Abs(onsets[j] - t); d < best {
				best = d
				tick = onsets[j]
			}
		}
		if len(ticks) > 0 && tick <= ticks[len(ticks)-1] {
			continue
		}
		ticks = append(ticks, tick)
	}

	if len(ticks) == 0 {
		return nil, ErrNoPeriodicity
	}
	return ticks, nil
}

// estimatePeriod scores candidate periods against a histogram of all onset
// pair distances up to Multiples periods apart
func (bt *BeatTracker) estimatePeriod(onsets []float64) (float64, error) {
	res := bt.params.Resolution
	minPeriod := 60.0 / bt.params.MaxTempo
	maxPeriod := 60.0 / bt.params.MinTempo
	horizon := maxPeriod * float64(bt.params.Multiples)

	hist := make([]float64, int(horizon/res)+2)
	for i := range onsets {
		for j := i + 1; j < len(onsets); j++ {
			d := onsets[j] - onsets[i]
			if d > horizon {
				break
			}
			if d <= 0 {
				continue
			}
			hist[int(math.Round(d/res))]++
		}
	}

	bestPeriod, bestScore := 0.0, 0.0
	for p := minPeriod; p <= maxPeriod+1e-9; p += res {
		score := 0.0
		for k := 1; k <= bt.params.Multiples; k++ {
			center := int(math.Round(float64(k) * p / res))
			for off := -1; off <= 1; off++ {
				idx := center + off
				if idx <= 0 || idx >= len(hist) {
					continue
				}
				weight := 1.0
				if off != 0 {
					weight = 0.5
				}
				score += weight * hist[idx] / float64(k)
			}
		}
		if score > bestScore {
			bestScore = score
			bestPeriod = p
		}
	}

	if bestScore == 0 {
		return 0, ErrNoPeriodicity
	}
	return bestPeriod, nil
}

// estimatePhase picks the grid offset in [0, period) closest to most onsets
func (bt *BeatTracker) estimatePhase(onsets []float64, period float64) float64 {
	sigma := bt.params.Tolerance * period
	bestPhase, bestScore := 0.0, -1.0

	for phase := 0.0; phase < period; phase += bt.params.Resolution {
		score := 0.0
		for _, o := range onsets {
			r := math.Mod(o-phase, period)
			if r < 0 {
				r += period
			}
			d := math.Min(r, period-r)
			score += math.Exp(-0.5 * (d / sigma) * (d / sigma))
		}
		if score > bestScore {
			bestScore = score
			bestPhase = phase
		}
	}
	return bestPhase
}
