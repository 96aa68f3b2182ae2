package common

import (
	"slices"

	"gonum.org/v1/gonum/floats"
)

// NormalizationType defines normalization method
type NormalizationType int

const (
	// UnitMax scales so the largest value becomes 1
	UnitMax NormalizationType = iota
	// UnitSum scales so the values sum to 1 (L1)
	UnitSum
	// Energy scales to unit Euclidean norm (L2)
	Energy
)

// Normalizer rescales vectors in place or by copy. Vectors whose norm is zero
// are returned unchanged.
type Normalizer struct {
	method NormalizationType
}

// NewNormalizer creates a new normalizer
func NewNormalizer(method NormalizationType) *Normalizer {
	return &Normalizer{
		method: method,
	}
}

// Normalize returns a normalized copy of signal
func (n *Normalizer) Normalize(signal []float64) []float64 {
	out := slices.Clone(signal)
	n.NormalizeInPlace(out)
	return out
}

// NormalizeInPlace normalizes signal in place
func (n *Normalizer) NormalizeInPlace(signal []float64) {
	if len(signal) == 0 {
		return
	}

	var norm float64
	switch n.method {
	case UnitMax:
		norm = floats.Max(signal)
	case UnitSum:
		norm = floats.Sum(signal)
	case Energy:
		norm = floats.Norm(signal, 2)
	}

	if norm == 0 {
		return
	}
	floats.Scale(1/norm, signal)
}
