package tonal

import (
	"fmt"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

// ChordQuality represents the quality/type of a chord
type ChordQuality int

const (
	ChordMajor ChordQuality = iota
	ChordMinor
)

// ChordTemplate is a binary pitch-class pattern rooted at C
type ChordTemplate struct {
	Quality ChordQuality
	Pattern []float64
	Suffix  string // appended to the root name, "" for major
}

// ChordEvent is one labelled chord with its template correlation
type ChordEvent struct {
	Label    string       `json:"label"`
	Root     int          `json:"root"` // 0=C, 1=C#, ..., 11=B
	Quality  ChordQuality `json:"quality"`
	Strength float64      `json:"strength"`
	Start    float64      `json:"start"` // seconds
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var defaultTemplates = []ChordTemplate{
	{
		Quality: ChordMajor,
		Pattern: []float64{1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0},
		Suffix:  "",
	},
	{
		Quality: ChordMinor,
		Pattern: []float64{1, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0},
		Suffix:  "m",
	},
}

// NoteName returns the sharp spelling of a pitch class
func NoteName(pitchClass int) string {
	return noteNames[((pitchClass%12)+12)%12]
}

// ChordLabel renders a root and quality as "C", "C#m", ...
func ChordLabel(root int, quality ChordQuality) string {
	for _, t := range defaultTemplates {
		if t.Quality == quality {
			return NoteName(root) + t.Suffix
		}
	}
	return NoteName(root) + "?"
}

// chordMatcher correlates a 12-bin profile against all rotations of the templates
type chordMatcher struct {
	rotated [][]float64
	roots   []int
	quals   []ChordQuality
}

func newChordMatcher(templates []ChordTemplate) *chordMatcher {
	m := &chordMatcher{}
	for _, t := range templates {
		for root := range 12 {
			m.rotated = append(m.rotated, common.Rotate(t.Pattern, root))
			m.roots = append(m.roots, root)
			m.quals = append(m.quals, t.Quality)
		}
	}
	return m
}

func (m *chordMatcher) match(chroma []float64, start float64) ChordEvent {
	best := 0
	bestScore := math.Inf(-1)
	for i, tmpl := range m.rotated {
		if score := common.Correlation(chroma, tmpl); score > bestScore {
			bestScore = score
			best = i
		}
	}
	return ChordEvent{
		Label:    ChordLabel(m.roots[best], m.quals[best]),
		Root:     m.roots[best],
		Quality:  m.quals[best],
		Strength: bestScore,
		Start:    start,
	}
}

// foldProfiles maps every frame onto 12 pitch classes. Frames of 24 or 36
// bins are folded, 12-bin frames are shared with the input.
func foldProfiles(pcp [][]float64) ([][]float64, error) {
	if len(pcp) == 0 {
		return nil, fmt.Errorf("empty chroma sequence")
	}
	out := make([][]float64, len(pcp))
	for i, frame := range pcp {
		folded, err := common.FoldChroma(frame)
		if err != nil {
			return nil, fmt.Errorf("chroma frame %d: %w", i, err)
		}
		out[i] = folded
	}
	return out, nil
}

// ChordsDetection labels every frame from the chroma averaged over a sliding window
type ChordsDetection struct {
	sampleRate int
	hopSize    int
	windowSize float64 // seconds
	matcher    *chordMatcher
}

// NewChordsDetection creates a frame-synchronous detector
func NewChordsDetection(sampleRate, hopSize int, windowSize float64) (*ChordsDetection, error) {
	if sampleRate <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("sample rate and hop size must be positive: %d, %d", sampleRate, hopSize)
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive: %v", windowSize)
	}
	return &ChordsDetection{
		sampleRate: sampleRate,
		hopSize:    hopSize,
		windowSize: windowSize,
		matcher:    newChordMatcher(defaultTemplates),
	}, nil
}

// Compute returns one chord per input frame
func (cd *ChordsDetection) Compute(pcp [][]float64) ([]ChordEvent, error) {
	pcp, err := foldProfiles(pcp)
	if err != nil {
		return nil, err
	}

	frameDuration := float64(cd.hopSize) / float64(cd.sampleRate)
	half := max(0, int(cd.windowSize/frameDuration/2))

	// prefix sums make each window average O(12)
	prefix := make([][12]float64, len(pcp)+1)
	for i, frame := range pcp {
		for b := range 12 {
			prefix[i+1][b] = prefix[i][b] + frame[b]
		}
	}

	events := make([]ChordEvent, len(pcp))
	avg := make([]float64, 12)
	for i := range pcp {
		lo, hi := max(0, i-half), min(len(pcp), i+half+1)
		n := float64(hi - lo)
		for b := range 12 {
			avg[b] = (prefix[hi][b] - prefix[lo][b]) / n
		}
		events[i] = cd.matcher.match(avg, float64(i)*frameDuration)
	}

	return events, nil
}

// Chroma pick methods for beat-synchronous detection
const (
	// PickNNLS subtracts the segment's broadband floor from the mean profile and
	// clips at zero, keeping only pitch classes that stand out of the mix
	PickNNLS = "nnls"
	// PickInterbeatMedian takes the per-bin median across the segment
	PickInterbeatMedian = "interbeat_median"
	// PickStartingBeat takes the frame at the beat
	PickStartingBeat = "starting_beat"
)

// ChordsDetectionBeats labels each inter-beat segment of a chroma sequence
type ChordsDetectionBeats struct {
	sampleRate int
	hopSize    int
	chromaPick string
	matcher    *chordMatcher
}

// NewChordsDetectionBeats creates a beat-synchronous detector
func NewChordsDetectionBeats(sampleRate, hopSize int, chromaPick string) (*ChordsDetectionBeats, error) {
	if sampleRate <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("sample rate and hop size must be positive: %d, %d", sampleRate, hopSize)
	}
	switch chromaPick {
	case PickNNLS, PickInterbeatMedian, PickStartingBeat:
	default:
		return nil, fmt.Errorf("unknown chroma pick method: %q", chromaPick)
	}
	return &ChordsDetectionBeats{
		sampleRate: sampleRate,
		hopSize:    hopSize,
		chromaPick: chromaPick,
		matcher:    newChordMatcher(defaultTemplates),
	}, nil
}

// Compute returns one chord per beat interval. The last beat's segment spans
// one beat period at bpm. Beats past the end of the sequence are ignored.
func (cdb *ChordsDetectionBeats) Compute(pcp [][]float64, ticks []float64, bpm float64) ([]ChordEvent, error) {
	pcp, err := foldProfiles(pcp)
	if err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("no beat ticks")
	}
	if !(bpm > 0) {
		return nil, fmt.Errorf("bpm must be positive: %v", bpm)
	}

	framesPerSecond := float64(cdb.sampleRate) / float64(cdb.hopSize)
	toFrame := func(t float64) int {
		return int(math.Round(t * framesPerSecond))
	}

	var events []ChordEvent
	for i, tick := range ticks {
		end := tick + 60.0/bpm
		if i+1 < len(ticks) {
			end = ticks[i+1]
		}

		lo := max(0, toFrame(tick))
		hi := min(len(pcp), toFrame(end))
		if lo >= len(pcp) {
			break
		}
		if hi <= lo {
			hi = lo + 1
		}

		events = append(events, cdb.matcher.match(cdb.pick(pcp[lo:hi]), tick))
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("no beat segment overlaps the chroma sequence")
	}
	return events, nil
}

func (cdb *ChordsDetectionBeats) pick(segment [][]float64) []float64 {
	out := make([]float64, 12)

	switch cdb.chromaPick {
	case PickStartingBeat:
		copy(out, segment[0])

	case PickInterbeatMedian:
		column := make([]float64, len(segment))
		for b := range 12 {
			for i, frame := range segment {
				column[i] = frame[b]
			}
			out[b] = common.Median(column)
		}

	default: // PickNNLS
		for _, frame := range segment {
			for b := range 12 {
				out[b] += frame[b]
			}
		}
		floor := slices.Min(out) / float64(len(segment))
		for b := range 12 {
			out[b] = math.Max(0, out[b]/float64(len(segment))-floor)
		}
	}

	return out
}
