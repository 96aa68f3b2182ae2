package common

import (
	"fmt"
)

// FoldChroma sums a profile of 12*k bins onto its 12 pitch classes. Bin
// i*k is centered on pitch class i, as the HPCP lays them out, so each bin
// goes to the nearest class and a bin halfway between two classes is split
// evenly. A 12-bin profile is returned as is.
func FoldChroma(chroma []float64) ([]float64, error) {
	if len(chroma) == 0 || len(chroma)%12 != 0 {
		return nil, fmt.Errorf("chroma size must be a positive multiple of 12, got %d", len(chroma))
	}
	if len(chroma) == 12 {
		return chroma, nil
	}

	per := len(chroma) / 12
	out := make([]float64, 12)
	for i, v := range chroma {
		class, offset := i/per, i%per
		switch {
		case 2*offset < per:
			out[class] += v
		case 2*offset > per:
			out[(class+1)%12] += v
		default:
			out[class] += v / 2
			out[(class+1)%12] += v / 2
		}
	}
	return out, nil
}

// MeanFrame averages a sequence of equally sized frames bin by bin
func MeanFrame(frames [][]float64) ([]float64, error) {
	if len(frames) == 0 || len(frames[0]) == 0 {
		return nil, fmt.Errorf("empty frame sequence")
	}
	mean := make([]float64, len(frames[0]))
	for i, frame := range frames {
		if len(frame) != len(mean) {
			return nil, fmt.Errorf("frame %d has %d bins, want %d", i, len(frame), len(mean))
		}
		for b, v := range frame {
			mean[b] += v
		}
	}
	for b := range mean {
		mean[b] /= float64(len(frames))
	}
	return mean, nil
}
