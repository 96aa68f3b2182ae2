package analysis

// FilteredChords holds unique chord labels in order of first appearance, each
// with the strongest strength seen for it
type FilteredChords struct {
	Chords    []string  `json:"chords"`
	Strengths []float64 `json:"strengths"`
	BPM       float64   `json:"bpm"`
}

// FilterChords drops chords weaker than threshold and collapses repeats to
// their maximum strength. A label without a strength counts as zero.
func FilterChords(labels []string, strengths []float64, threshold, bpm float64) FilteredChords {
	out := FilteredChords{
		Chords:    []string{},
		Strengths: []float64{},
		BPM:       bpm,
	}

	index := make(map[string]int)
	for i, label := range labels {
		strength := 0.0
		if i < len(strengths) {
			strength = strengths[i]
		}
		if !(strength >= threshold) {
			continue
		}

		if j, ok := index[label]; ok {
			out.Strengths[j] = max(out.Strengths[j], strength)
			continue
		}
		index[label] = len(out.Chords)
		out.Chords = append(out.Chords, label)
		out.Strengths = append(out.Strengths, strength)
	}

	return out
}
