package analysis

import (
	"sync"
	"testing"

	"github.com/RyanBlaney/sonido-chords/engine"
)

// spyEngine delegates to the native engine unless a hook is set, and counts calls
type spyEngine struct {
	*engine.Native

	onsets       func(signal []float64, method string) (engine.Indexable[float64], error)
	beats        func(onsets []float64) (engine.Indexable[float64], error)
	chords       func() (engine.ChordResult, error)
	chordsBeats  func() (engine.ChordResult, error)
	hpcp         func() (engine.Indexable[float64], error)
	keyExtractor func() (engine.KeyResult, error)

	mu    sync.Mutex
	calls map[string]int
}

func newSpy(t *testing.T) *spyEngine {
	t.Helper()
	native, err := engine.New(engine.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return &spyEngine{Native: native, calls: make(map[string]int)}
}

func (s *spyEngine) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *spyEngine) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *spyEngine) HPCP(freqs, mags []float64) (engine.Indexable[float64], error) {
	s.record("HPCP")
	if s.hpcp != nil {
		return s.hpcp()
	}
	return s.Native.HPCP(freqs, mags)
}

func (s *spyEngine) OnsetDetectionGlobal(signal []float64, method string) (engine.Indexable[float64], error) {
	s.record("OnsetDetectionGlobal:" + method)
	if s.onsets != nil {
		return s.onsets(signal, method)
	}
	return s.Native.OnsetDetectionGlobal(signal, method)
}

func (s *spyEngine) BeatTrackerDegara(onsets []float64) (engine.Indexable[float64], error) {
	s.record("BeatTrackerDegara")
	if s.beats != nil {
		return s.beats(onsets)
	}
	return s.Native.BeatTrackerDegara(onsets)
}

func (s *spyEngine) ChordsDetection(pcp [][]float64, hopSize, sampleRate int, windowSize float64) (engine.ChordResult, error) {
	s.record("ChordsDetection")
	if s.chords != nil {
		return s.chords()
	}
	return s.Native.ChordsDetection(pcp, hopSize, sampleRate, windowSize)
}

func (s *spyEngine) ChordsDetectionBeats(pcp [][]float64, ticks []float64, chromaPick string, hopSize, sampleRate int, bpm float64) (engine.ChordResult, error) {
	s.record("ChordsDetectionBeats")
	if s.chordsBeats != nil {
		return s.chordsBeats()
	}
	return s.Native.ChordsDetectionBeats(pcp, ticks, chromaPick, hopSize, sampleRate, bpm)
}

func (s *spyEngine) KeyExtractor(chroma []float64) (engine.KeyResult, error) {
	s.record("KeyExtractor")
	if s.keyExtractor != nil {
		return s.keyExtractor()
	}
	return s.Native.KeyExtractor(chroma)
}
