package engine

import (
	"errors"
	"math"
	"testing"
)

type panicky struct{}

func (panicky) Len() int         { return 3 }
func (panicky) At(i int) float64 { panic("index out of range") }

type negative struct{}

func (negative) Len() int        { return -1 }
func (negative) At(i int) string { return "" }

func TestCollect(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		got, err := Collect[float64](Floats{1, 2, 3})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[2] != 3 {
			t.Errorf("got %v", got)
		}
	})

	t.Run("nil", func(t *testing.T) {
		if _, err := Collect[string](nil); !errors.Is(err, ErrNilResult) {
			t.Errorf("err = %v, want ErrNilResult", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		got, err := Collect[string](Labels(nil))
		if err != nil || len(got) != 0 {
			t.Errorf("got %v, %v", got, err)
		}
	})

	t.Run("panic", func(t *testing.T) {
		if _, err := Collect[float64](panicky{}); err == nil {
			t.Error("expected error from panicking collection")
		}
	})

	t.Run("negative length", func(t *testing.T) {
		if _, err := Collect[string](negative{}); err == nil {
			t.Error("expected error for negative length")
		}
	})
}

func TestDefaultIsMemoized(t *testing.T) {
	a, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Default()
	if a != b {
		t.Error("Default should return the same instance")
	}
}

func TestNativeFramePath(t *testing.T) {
	eng, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// A4 should land in bin 9
	frame := make([]float64, 2048)
	for i := range frame {
		frame[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 44100)
	}

	windowed, err := eng.Windowing("hann", frame)
	if err != nil {
		t.Fatal(err)
	}
	w, _ := Collect(windowed)

	spec, err := eng.Spectrum(w)
	if err != nil {
		t.Fatal(err)
	}
	mag, _ := Collect(spec)
	if len(mag) != 1025 {
		t.Fatalf("spectrum bins = %d, want 1025", len(mag))
	}

	freqIdx, magIdx, err := eng.SpectralPeaks(mag)
	if err != nil {
		t.Fatal(err)
	}
	freqs, _ := Collect(freqIdx)
	mags, _ := Collect(magIdx)

	hpcpIdx, err := eng.HPCP(freqs, mags)
	if err != nil {
		t.Fatal(err)
	}
	hpcp, _ := Collect(hpcpIdx)
	if len(hpcp) != 12 {
		t.Fatalf("hpcp bins = %d", len(hpcp))
	}
	best := 0
	for i := range hpcp {
		if hpcp[i] > hpcp[best] {
			best = i
		}
	}
	if best != 9 {
		t.Errorf("strongest pitch class = %d, want 9 (A)", best)
	}

	if _, err := eng.Windowing("triangle", frame); err == nil {
		t.Error("expected error for unknown window")
	}
	if _, err := eng.OnsetDetectionGlobal(make([]float64, 44100), "nope"); err == nil {
		t.Error("expected error for unknown onset method")
	}
}

func TestNativeChordsAndKey(t *testing.T) {
	eng, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	gMajor := []float64{0, 0, 0.8, 0, 0, 0, 0, 1, 0, 0, 0, 0.9}
	pcp := make([][]float64, 50)
	for i := range pcp {
		pcp[i] = gMajor
	}

	res, err := eng.ChordsDetection(pcp, 1024, 44100, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	labels, err := Collect(res.Chords)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 50 || labels[0] != "G" {
		t.Errorf("labels = %v", labels[:min(3, len(labels))])
	}

	res, err = eng.ChordsDetectionBeats(pcp, []float64{0, 0.5}, "nnls", 1024, 44100, 120)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chords.Len() != 2 || res.Strengths.Len() != 2 {
		t.Errorf("beat chords = %d/%d, want 2", res.Chords.Len(), res.Strengths.Len())
	}

	// G major scale weighted towards the tonic triad
	scale := []float64{0.5, 0, 0.9, 0, 0.5, 0, 0.4, 1, 0, 0.5, 0, 0.8}
	key, err := eng.KeyExtractor(scale)
	if err != nil {
		t.Fatal(err)
	}
	if key.Key != "G" || key.Scale != "major" {
		t.Errorf("key = %s %s, want G major", key.Key, key.Scale)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyProfile = "unknown"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown key profile")
	}

	cfg = DefaultConfig()
	cfg.SampleRate = 0
	if _, err := New(cfg); err == nil {
		t.Error("expected error for zero sample rate")
	}
}
