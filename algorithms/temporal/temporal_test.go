package temporal

import (
	"errors"
	"math"
	"testing"
)

// clicks builds a signal of short decaying bursts at the given times
func clicks(times []float64, sampleRate int, duration float64) []float64 {
	signal := make([]float64, int(duration*float64(sampleRate)))
	for _, t := range times {
		start := int(t * float64(sampleRate))
		for i := 0; i < 2000 && start+i < len(signal); i++ {
			decay := math.Exp(-float64(i) / 300)
			signal[start+i] += decay * math.Sin(2*math.Pi*1000*float64(i)/float64(sampleRate))
		}
	}
	return signal
}

func TestTempoFromBeats(t *testing.T) {
	tests := []struct {
		name  string
		beats []float64
		want  float64
	}{
		{"median interval 0.5", []float64{0.5, 1.0, 1.5, 2.5}, 120},
		{"too few beats", []float64{1.0}, DefaultBPM},
		{"empty", nil, DefaultBPM},
		{"slow doubles", []float64{0, 1.5, 3.0}, 80},
		{"fast halves", []float64{0, 0.25, 0.5}, 120},
		{"too fast even halved", []float64{0, 0.1, 0.2}, DefaultBPM},
		{"non positive median", []float64{1, 1, 1}, DefaultBPM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TempoFromBeats(tt.beats)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TempoFromBeats(%v) = %v, want %v", tt.beats, got, tt.want)
			}
		})
	}
}

func TestFoldTempoAlwaysInRange(t *testing.T) {
	for bpm := -50.0; bpm < 1000; bpm += 0.7 {
		got := FoldTempo(bpm)
		if got != DefaultBPM && (got < MinBPM || got > MaxBPM) {
			t.Fatalf("FoldTempo(%v) = %v out of range", bpm, got)
		}
	}
	if FoldTempo(math.NaN()) != DefaultBPM {
		t.Error("NaN should fold to default")
	}
}

func TestBeatTrackerRegularOnsets(t *testing.T) {
	var onsets []float64
	for i := range 20 {
		onsets = append(onsets, float64(i)*0.5)
	}

	ticks, err := NewBeatTracker(DefaultBeatTrackerParams()).Track(onsets)
	if err != nil {
		t.Fatal(err)
	}
	if len(ticks) != len(onsets) {
		t.Fatalf("got %d ticks, want %d", len(ticks), len(onsets))
	}
	for i := range ticks {
		if math.Abs(ticks[i]-onsets[i]) > 1e-9 {
			t.Errorf("tick %d = %v, want %v", i, ticks[i], onsets[i])
		}
	}
	if bpm := TempoFromBeats(ticks); math.Abs(bpm-120) > 1e-6 {
		t.Errorf("bpm = %v, want 120", bpm)
	}
}

func TestBeatTrackerFillsGaps(t *testing.T) {
	// a missing onset at 2.0 still gets a tick, an off-beat onset at 1.25 does not
	onsets := []float64{0, 0.5, 1.0, 1.25, 1.5, 2.5, 3.0, 3.5, 4.0}
	ticks, err := NewBeatTracker(DefaultBeatTrackerParams()).Track(onsets)
	if err != nil {
		t.Fatal(err)
	}

	has := func(x float64) bool {
		for _, tk := range ticks {
			if math.Abs(tk-x) < 0.02 {
				return true
			}
		}
		return false
	}
	if !has(2.0) {
		t.Errorf("expected a tick near 2.0, got %v", ticks)
	}
	if has(1.25) {
		t.Errorf("off-beat onset should not become a tick: %v", ticks)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] <= ticks[i-1] {
			t.Fatalf("ticks not ascending: %v", ticks)
		}
	}
}

func TestBeatTrackerErrors(t *testing.T) {
	bt := NewBeatTracker(DefaultBeatTrackerParams())
	if _, err := bt.Track([]float64{1}); !errors.Is(err, ErrInsufficientOnsets) {
		t.Errorf("err = %v, want ErrInsufficientOnsets", err)
	}
	if _, err := bt.Track([]float64{1, 1, 1}); !errors.Is(err, ErrNoPeriodicity) {
		t.Errorf("err = %v, want ErrNoPeriodicity", err)
	}
}

func TestDetectOnsetsFindsClicks(t *testing.T) {
	const sr = 44100
	times := []float64{0.5, 1.0, 1.5, 2.0, 2.5}
	signal := clicks(times, sr, 3.0)
	od := NewOnsetDetection(sr, DefaultOnsetParams())

	for _, method := range Methods() {
		t.Run(method, func(t *testing.T) {
			onsets, err := od.DetectOnsets(signal, method)
			if err != nil {
				t.Fatal(err)
			}
			if len(onsets) < len(times)-1 {
				t.Fatalf("found %d onsets, want about %d: %v", len(onsets), len(times), onsets)
			}
			for i := 1; i < len(onsets); i++ {
				if onsets[i] <= onsets[i-1] {
					t.Errorf("onsets not ascending: %v", onsets)
				}
			}
			for _, want := range times[1:] {
				found := false
				for _, o := range onsets {
					if math.Abs(o-want) < 0.05 {
						found = true
					}
				}
				if !found {
					t.Errorf("no onset near %v in %v", want, onsets)
				}
			}
		})
	}
}

func TestDetectOnsetsSilence(t *testing.T) {
	od := NewOnsetDetection(44100, DefaultOnsetParams())
	onsets, err := od.DetectOnsets(make([]float64, 44100), MethodComplex)
	if err != nil {
		t.Fatal(err)
	}
	if len(onsets) != 0 {
		t.Errorf("silence produced onsets: %v", onsets)
	}

	if _, err := od.DetectOnsets(make([]float64, 44100), "wavelet"); err == nil {
		t.Error("expected error for unknown method")
	}

	short, err := od.DetectOnsets(make([]float64, 100), MethodHFC)
	if err != nil || len(short) != 0 {
		t.Errorf("short signal: %v %v", short, err)
	}
}

func TestEnergyDerivative(t *testing.T) {
	e := NewEnergy(2, 2)
	env := e.ComputeShortTimeEnergy([]float64{0, 0, 1, 1, 0, 0})
	if len(env) != 3 || env[1] != 1 {
		t.Fatalf("envelope = %v", env)
	}
	d := e.ComputeEnergyDerivative(env)
	if d[0] != 0 || d[1] != 1 || d[2] != 0 {
		t.Errorf("derivative = %v", d)
	}
}
