package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

const (
	// DefaultBPM is reported whenever tempo cannot be inferred
	DefaultBPM = 120.0
	// MinBPM and MaxBPM bound every reported tempo
	MinBPM = 60.0
	MaxBPM = 200.0
)

// TempoFromBeats estimates BPM as 60 divided by the upper median of the
// inter-beat intervals. The result is always within [MinBPM, MaxBPM] or DefaultBPM.
func TempoFromBeats(beats []float64) float64 {
	if len(beats) < 2 {
		return DefaultBPM
	}

	intervals := make([]float64, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals[i-1] = beats[i] - beats[i-1]
	}

	median := common.UpperMedian(intervals)
	if !(median > 0) || math.IsInf(median, 0) {
		return DefaultBPM
	}

	return FoldTempo(60.0 / median)
}

// FoldTempo doubles a tempo below MinBPM or halves one above MaxBPM, once.
// Anything still out of range, or not finite, becomes DefaultBPM.
func FoldTempo(bpm float64) float64 {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return DefaultBPM
	}

	if bpm < MinBPM || bpm > MaxBPM {
		if bpm < MinBPM {
			bpm *= 2
		}
		if bpm > MaxBPM {
			bpm /= 2
		}
		if bpm < MinBPM || bpm > MaxBPM {
			bpm = DefaultBPM
		}
	}

	return bpm
}
