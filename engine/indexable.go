package engine

import (
	"errors"
	"fmt"
)

// ErrNilResult is returned by Collect when a capability hands back no collection at all
var ErrNilResult = errors.New("engine returned a nil collection")

// Indexable is the minimal view of a sequence returned by an Engine. Callers must
// not assume a concrete representation and should go through Collect.
type Indexable[T any] interface {
	Len() int
	At(i int) T
}

// Floats is a plain float64 slice satisfying Indexable
type Floats []float64

func (f Floats) Len() int         { return len(f) }
func (f Floats) At(i int) float64 { return f[i] }

// Labels is a plain string slice satisfying Indexable
type Labels []string

func (l Labels) Len() int        { return len(l) }
func (l Labels) At(i int) string { return l[i] }

// Collect copies an Indexable into a slice. A nil collection, a negative length
// or an element access that panics is reported as an error.
func Collect[T any](src Indexable[T]) (out []T, err error) {
	if src == nil {
		return nil, ErrNilResult
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("collect: element access failed: %v", r)
		}
	}()

	n := src.Len()
	if n < 0 {
		return nil, fmt.Errorf("collect: negative length %d", n)
	}

	out = make([]T, n)
	for i := range n {
		out[i] = src.At(i)
	}
	return out, nil
}
