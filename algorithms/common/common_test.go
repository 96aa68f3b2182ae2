package common

import (
	"math"
	"testing"
)

func TestUpperMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"odd", []float64{3, 1, 2}, 2},
		{"even picks upper", []float64{0.5, 0.5, 1.0}, 0.5},
		{"even four", []float64{4, 1, 3, 2}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UpperMedian(tt.in); got != tt.want {
				t.Errorf("UpperMedian(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestUpperMedianDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	UpperMedian(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestRotate(t *testing.T) {
	got := Rotate([]float64{1, 0, 0, 0}, 1)
	want := []float64{0, 1, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rotate = %v, want %v", got, want)
		}
	}
	back := Rotate(got, -1)
	if back[0] != 1 {
		t.Errorf("negative rotation failed: %v", back)
	}
}

func TestCorrelationDegenerate(t *testing.T) {
	if r := Correlation([]float64{1, 1, 1}, []float64{1, 2, 3}); r != 0 {
		t.Errorf("constant input should give 0, got %v", r)
	}
	if r := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}); math.Abs(r-1) > 1e-12 {
		t.Errorf("perfect correlation = %v", r)
	}
}

func TestNormalizer(t *testing.T) {
	v := NewNormalizer(UnitSum).Normalize([]float64{1, 3})
	if v[0] != 0.25 || v[1] != 0.75 {
		t.Errorf("UnitSum = %v", v)
	}

	m := NewNormalizer(UnitMax).Normalize([]float64{2, 4})
	if m[1] != 1 || m[0] != 0.5 {
		t.Errorf("UnitMax = %v", m)
	}

	zero := []float64{0, 0}
	NewNormalizer(Energy).NormalizeInPlace(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}

	if !Finite([]float64{1, 2}) || Finite([]float64{math.NaN()}) {
		t.Error("Finite misreports")
	}
}

func TestFoldChroma(t *testing.T) {
	twelve := []float64{1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0}
	got, err := FoldChroma(twelve)
	if err != nil || &got[0] != &twelve[0] {
		t.Fatalf("12 bins should pass through, got %v %v", got, err)
	}

	tests := []struct {
		name string
		bins map[int]float64
		size int
		want map[int]float64
	}{
		{
			name: "36 bins around E",
			size: 36,
			bins: map[int]float64{11: 1, 12: 1, 13: 1},
			want: map[int]float64{4: 3},
		},
		{
			name: "36 bins wrap to C",
			size: 36,
			bins: map[int]float64{35: 1, 0: 2},
			want: map[int]float64{0: 3},
		},
		{
			name: "24 bins split quarter tones",
			size: 24,
			bins: map[int]float64{7: 1, 8: 1, 9: 1},
			want: map[int]float64{3: 0.5, 4: 2, 5: 0.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wide := make([]float64, tt.size)
			for i, v := range tt.bins {
				wide[i] = v
			}
			got, err := FoldChroma(wide)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 12 {
				t.Fatalf("len = %d", len(got))
			}
			for b, v := range got {
				if v != tt.want[b] {
					t.Errorf("bin %d = %v, want %v", b, v, tt.want[b])
				}
			}
		})
	}

	for _, n := range []int{0, 7, 13} {
		if _, err := FoldChroma(make([]float64, n)); err == nil {
			t.Errorf("FoldChroma(%d bins) should fail", n)
		}
	}
}

func TestMeanFrame(t *testing.T) {
	mean, err := MeanFrame([][]float64{{1, 2}, {3, 6}})
	if err != nil {
		t.Fatal(err)
	}
	if mean[0] != 2 || mean[1] != 4 {
		t.Errorf("mean = %v, want [2 4]", mean)
	}

	if _, err := MeanFrame(nil); err == nil {
		t.Error("expected error for empty sequence")
	}
	if _, err := MeanFrame([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged frames")
	}
}
