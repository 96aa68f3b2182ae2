package windowing

import (
	"math"
	"testing"
)

func TestHannShape(t *testing.T) {
	w := NewHann(8, true)
	c := w.Coefficients()
	if len(c) != 8 {
		t.Fatalf("size = %d, want 8", len(c))
	}
	if math.Abs(c[0]) > 1e-12 || math.Abs(c[7]) > 1e-12 {
		t.Errorf("symmetric hann should be zero at both ends, got %v and %v", c[0], c[7])
	}
	for i := range 4 {
		if math.Abs(c[i]-c[7-i]) > 1e-12 {
			t.Errorf("coefficient %d not symmetric: %v vs %v", i, c[i], c[7-i])
		}
	}

	p := NewHann(8, false).Coefficients()
	if math.Abs(p[0]) > 1e-12 {
		t.Errorf("periodic hann should start at zero, got %v", p[0])
	}
	if math.Abs(p[4]-1.0) > 1e-12 {
		t.Errorf("periodic hann should peak at N/2, got %v", p[4])
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"hann", "hamming", "blackman", "rectangular"} {
		t.Run(name, func(t *testing.T) {
			w, err := New(name, 2048)
			if err != nil {
				t.Fatalf("New(%q): %v", name, err)
			}
			if w.Size() != 2048 || w.Type() != name {
				t.Errorf("got size %d type %q", w.Size(), w.Type())
			}
		})
	}

	if _, err := New("kaiser-bessel", 16); err == nil {
		t.Error("expected error for unsupported window")
	}
	if _, err := New("hann", 0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestApplyInPlaceLengthMismatch(t *testing.T) {
	w := NewHann(4, false)
	if err := w.ApplyInPlace(make([]float64, 3)); err == nil {
		t.Error("expected length mismatch error")
	}

	frame := []float64{1, 1, 1, 1}
	if err := w.ApplyInPlace(frame); err != nil {
		t.Fatal(err)
	}
	want := w.Coefficients()
	for i := range frame {
		if frame[i] != want[i] {
			t.Errorf("frame[%d] = %v, want %v", i, frame[i], want[i])
		}
	}
}
