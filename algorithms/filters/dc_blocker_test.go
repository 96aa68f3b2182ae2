package filters

import (
	"math"
	"testing"
)

func TestDCBlockerRemovesOffset(t *testing.T) {
	const sr = 44100
	dc := NewDCBlocker(sr, 10)

	signal := make([]float64, sr)
	for i := range signal {
		signal[i] = 0.5 + 0.25*math.Sin(2*math.Pi*440*float64(i)/sr)
	}
	dc.ApplyInPlace(signal)

	// mean over the settled second half
	tail := signal[sr/2:]
	mean := 0.0
	peak := 0.0
	for _, v := range tail {
		mean += v
		peak = math.Max(peak, math.Abs(v))
	}
	mean /= float64(len(tail))

	if math.Abs(mean) > 1e-3 {
		t.Errorf("residual DC %v", mean)
	}
	if peak < 0.2 || peak > 0.3 {
		t.Errorf("440 Hz amplitude %v should pass nearly unchanged", peak)
	}
}

// For a unit step the second output is x[1] - x[0] + R*y[0] = R
func secondStepOutput(dc *DCBlocker) float64 {
	dc.Process(1)
	return dc.Process(1)
}

func TestDCBlockerPole(t *testing.T) {
	tests := []struct {
		name   string
		sr     int
		cutoff float64
		want   float64
	}{
		{"no cutoff", 44100, 0, DefaultPole},
		{"no sample rate", 0, 10, DefaultPole},
		{"unrealizable cutoff", 100, 1000, DefaultPole},
		{"20 Hz", 44100, 20, 1 - 2*math.Pi*20/44100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := secondStepOutput(NewDCBlocker(tt.sr, tt.cutoff)); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("pole = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDCBlockerCarriesState(t *testing.T) {
	whole := NewDCBlocker(44100, 10)
	signal := []float64{1, 0.5, -0.25, 0.75, 0.1, 0.3}
	want := append([]float64(nil), signal...)
	whole.ApplyInPlace(want)

	split := NewDCBlocker(44100, 10)
	got := append([]float64(nil), signal...)
	split.ApplyInPlace(got[:3])
	split.ApplyInPlace(got[3:])

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}
