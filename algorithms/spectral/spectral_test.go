package spectral

import (
	"math"
	"testing"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestMagnitudePeakBin(t *testing.T) {
	const (
		sr = 44100
		n  = 2048
	)
	// exact bin frequency: bin 100
	freq := 100.0 * sr / n
	mag := NewFFT().Magnitude(sine(freq, sr, n))

	if len(mag) != n/2+1 {
		t.Fatalf("len = %d, want %d", len(mag), n/2+1)
	}

	peak := 0
	for i := range mag {
		if mag[i] > mag[peak] {
			peak = i
		}
	}
	if peak != 100 {
		t.Errorf("peak bin = %d, want 100", peak)
	}
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		n, size, hop, want int
	}{
		{0, 2048, 1024, 0},
		{2047, 2048, 1024, 0},
		{2048, 2048, 1024, 1},
		{3072, 2048, 1024, 2},
		{10000, 2048, 1024, 8},
		{10000, 2048, 0, 0},
	}
	for _, tt := range tests {
		if got := FrameCount(tt.n, tt.size, tt.hop); got != tt.want {
			t.Errorf("FrameCount(%d, %d, %d) = %d, want %d", tt.n, tt.size, tt.hop, got, tt.want)
		}
	}
}

func TestSTFTOrdering(t *testing.T) {
	signal := make([]float64, 44100)
	// silence then a burst, the burst frames must land at the end
	for i := 30000; i < len(signal); i++ {
		signal[i] = math.Sin(float64(i) * 0.1)
	}

	res, err := NewSTFT().ComputeWithWindow(signal, 1024, 512, 44100, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.TimeFrames != FrameCount(len(signal), 1024, 512) {
		t.Fatalf("frames = %d", res.TimeFrames)
	}
	if Energy(res.Magnitude[0]) != 0 {
		t.Errorf("first frame should be silent")
	}
	if Energy(res.Magnitude[res.TimeFrames-1]) == 0 {
		t.Errorf("last frame should carry the burst")
	}

	if _, err := NewSTFT().ComputeWithWindow(signal[:100], 1024, 512, 44100, nil); err == nil {
		t.Error("expected error for short signal")
	}
}

func TestOnsetFunctions(t *testing.T) {
	quiet := []float64{0, 0, 0, 0}
	loud := []float64{0, 1, 2, 3}

	if Flux(quiet, loud) != 6 {
		t.Errorf("Flux = %v, want 6", Flux(quiet, loud))
	}
	if Flux(loud, quiet) != 0 {
		t.Errorf("Flux should ignore decreases")
	}
	if HFC(loud) != 0*0+1*1+2*4+3*9 {
		t.Errorf("HFC = %v", HFC(loud))
	}
	if Energy(loud) != 14 {
		t.Errorf("Energy = %v", Energy(loud))
	}

	steady := []complex128{1, 1, 1}
	if d := ComplexDomain(steady, steady, steady); d > 1e-12 {
		t.Errorf("steady frames should have no deviation, got %v", d)
	}
}

func TestMelBank(t *testing.T) {
	bank := NewMelBank(40, 2048, 44100, 0, 22050)
	if bank.Bands() != 40 {
		t.Fatalf("bands = %d", bank.Bands())
	}
	mag := NewFFT().Magnitude(sine(1000, 44100, 2048))
	bands := bank.Apply(mag)
	total := 0.0
	for _, b := range bands {
		total += b
	}
	if total <= 0 {
		t.Error("expected energy in mel bands")
	}
}
