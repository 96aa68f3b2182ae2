package tonal

import (
	"fmt"
	"testing"
)

func triad(root int, minor bool) []float64 {
	third := 4
	if minor {
		third = 3
	}
	pcp := make([]float64, 12)
	pcp[root%12] = 1
	pcp[(root+third)%12] = 0.8
	pcp[(root+7)%12] = 0.9
	return pcp
}

func repeat(frame []float64, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = frame
	}
	return out
}

func TestChordLabel(t *testing.T) {
	tests := []struct {
		root    int
		quality ChordQuality
		want    string
	}{
		{0, ChordMajor, "C"},
		{9, ChordMinor, "Am"},
		{1, ChordMajor, "C#"},
		{11, ChordMinor, "Bm"},
		{14, ChordMajor, "D"},
	}
	for _, tt := range tests {
		if got := ChordLabel(tt.root, tt.quality); got != tt.want {
			t.Errorf("ChordLabel(%d, %d) = %q, want %q", tt.root, tt.quality, got, tt.want)
		}
	}
}

func TestChordsDetectionFrames(t *testing.T) {
	cd, err := NewChordsDetection(44100, 1024, 2.0)
	if err != nil {
		t.Fatal(err)
	}

	pcp := append(repeat(triad(7, false), 200), repeat(triad(9, true), 200)...)
	events, err := cd.Compute(pcp)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != len(pcp) {
		t.Fatalf("events = %d, want %d", len(events), len(pcp))
	}
	if events[0].Label != "G" {
		t.Errorf("first label = %q, want G", events[0].Label)
	}
	if last := events[len(events)-1]; last.Label != "Am" {
		t.Errorf("last label = %q, want Am", last.Label)
	}
	if events[0].Strength < 0.9 {
		t.Errorf("strength = %v, expected a clean triad match", events[0].Strength)
	}

	if _, err := cd.Compute([][]float64{{1, 2, 3}}); err == nil {
		t.Error("expected error for malformed frame")
	}
	if _, err := NewChordsDetection(44100, 1024, 0); err == nil {
		t.Error("expected error for zero window")
	}
}

func TestChordsDetectionBeats(t *testing.T) {
	// 44100/441 = 100 frames per second
	cdb, err := NewChordsDetectionBeats(44100, 441, PickNNLS)
	if err != nil {
		t.Fatal(err)
	}

	pcp := append(repeat(triad(0, false), 100), repeat(triad(2, true), 100)...)
	events, err := cdb.Compute(pcp, []float64{0, 1.0, 5.0}, 60)
	if err != nil {
		t.Fatal(err)
	}
	// the beat at 5s lies past the last frame
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Label != "C" || events[1].Label != "Dm" {
		t.Errorf("labels = %q, %q, want C, Dm", events[0].Label, events[1].Label)
	}
	if events[1].Start != 1.0 {
		t.Errorf("start = %v, want 1", events[1].Start)
	}

	for _, pick := range []string{PickInterbeatMedian, PickStartingBeat} {
		cdb, err := NewChordsDetectionBeats(44100, 441, pick)
		if err != nil {
			t.Fatal(err)
		}
		events, err := cdb.Compute(pcp, []float64{0, 1.0}, 60)
		if err != nil {
			t.Fatalf("%s: %v", pick, err)
		}
		if events[0].Label != "C" || events[1].Label != "Dm" {
			t.Errorf("%s: labels = %q, %q", pick, events[0].Label, events[1].Label)
		}
	}

	if _, err := NewChordsDetectionBeats(44100, 441, "bogus"); err == nil {
		t.Error("expected error for unknown pick")
	}
	if _, err := cdb.Compute(pcp, nil, 60); err == nil {
		t.Error("expected error without ticks")
	}
	if _, err := cdb.Compute(pcp, []float64{10}, 60); err == nil {
		t.Error("expected error when no beat overlaps the sequence")
	}
}

// widen spreads a 12-bin frame over 12*per bins the way the HPCP centers
// pitch classes, with a little leakage into the neighbouring sub-bins
func widen(frame []float64, per int) []float64 {
	out := make([]float64, 12*per)
	size := len(out)
	for c, v := range frame {
		center := c * per
		out[center] += v
		out[(center+1)%size] += 0.2 * v
		out[(center-1+size)%size] += 0.2 * v
	}
	return out
}

func TestChordsDetectionWideProfiles(t *testing.T) {
	for _, per := range []int{2, 3} {
		t.Run(fmt.Sprintf("%d bins", 12*per), func(t *testing.T) {
			pcp := append(
				repeat(widen(triad(0, false), per), 100),
				repeat(widen(triad(2, true), per), 100)...,
			)

			cd, err := NewChordsDetection(44100, 441, 0.5)
			if err != nil {
				t.Fatal(err)
			}
			events, err := cd.Compute(pcp)
			if err != nil {
				t.Fatalf("frames: %v", err)
			}
			if events[0].Label != "C" || events[len(events)-1].Label != "Dm" {
				t.Errorf("frames: labels %q .. %q, want C .. Dm", events[0].Label, events[len(events)-1].Label)
			}

			cdb, err := NewChordsDetectionBeats(44100, 441, PickNNLS)
			if err != nil {
				t.Fatal(err)
			}
			events, err = cdb.Compute(pcp, []float64{0, 1.0}, 60)
			if err != nil {
				t.Fatalf("beats: %v", err)
			}
			if len(events) != 2 || events[0].Label != "C" || events[1].Label != "Dm" {
				t.Errorf("beats: events = %+v, want C, Dm", events)
			}
		})
	}

	cd, _ := NewChordsDetection(44100, 441, 0.5)
	if _, err := cd.Compute([][]float64{make([]float64, 18)}); err == nil {
		t.Error("expected error for a size that is not a multiple of 12")
	}
}

func TestKeyEstimation(t *testing.T) {
	// C major scale weighted towards the tonic triad
	cMajor := []float64{1, 0, 0.5, 0, 0.8, 0.5, 0, 0.9, 0, 0.5, 0, 0.4}

	for _, profile := range []KeyProfile{KeyProfileKrumhansl, KeyProfileTemperley, KeyProfileEDMA} {
		res, err := NewKeyEstimator(profile).Estimate(cMajor)
		if err != nil {
			t.Fatal(err)
		}
		if res.KeyName != "C" || res.Scale != "major" {
			t.Errorf("%s: key = %s %s, want C major", profile, res.KeyName, res.Scale)
		}
	}

	// rotating the input by 7 must move the key to G
	res, err := NewKeyEstimator(KeyProfileKrumhansl).Estimate(rotate(cMajor, 7))
	if err != nil {
		t.Fatal(err)
	}
	if res.KeyName != "G" {
		t.Errorf("key = %s, want G", res.KeyName)
	}

	if _, err := NewKeyEstimator(KeyProfileKrumhansl).Estimate(make([]float64, 7)); err == nil {
		t.Error("expected error for bad size")
	}
}

func TestParseKeyProfile(t *testing.T) {
	if p, err := ParseKeyProfile("EDMA"); err != nil || p != KeyProfileEDMA {
		t.Errorf("ParseKeyProfile(EDMA) = %v, %v", p, err)
	}
	if _, err := ParseKeyProfile("shaath"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func rotate(v []float64, shift int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[(i+shift)%len(v)] = v[i]
	}
	return out
}
