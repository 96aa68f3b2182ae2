package windowing

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

// Window is a precomputed tapering function for fixed-size frames
type Window struct {
	name         string
	coefficients []float64
}

// NewHann creates a Hann window. Periodic windows (symmetric=false) are the
// first size points of a size+1 symmetric window, which is what frame-based
// spectral analysis expects.
func NewHann(size int, symmetric bool) *Window {
	return newWindow("hann", size, symmetric, window.Hann)
}

// NewHamming creates a Hamming window
func NewHamming(size int, symmetric bool) *Window {
	return newWindow("hamming", size, symmetric, window.Hamming)
}

// NewBlackman creates a Blackman window
func NewBlackman(size int, symmetric bool) *Window {
	return newWindow("blackman", size, symmetric, window.Blackman)
}

// NewRectangular creates a window that leaves the frame untouched
func NewRectangular(size int) *Window {
	return &Window{name: "rectangular", coefficients: window.Rectangular(size)}
}

// New returns a periodic window by name ("hann", "hamming", "blackman", "rectangular")
func New(name string, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}

	switch strings.ToLower(name) {
	case "", "hann", "hanning":
		return NewHann(size, false), nil
	case "hamming":
		return NewHamming(size, false), nil
	case "blackman":
		return NewBlackman(size, false), nil
	case "rectangular", "square":
		return NewRectangular(size), nil
	default:
		return nil, fmt.Errorf("unsupported window type: %s", name)
	}
}

func newWindow(name string, size int, symmetric bool, gen func(int) []float64) *Window {
	if size <= 0 {
		return &Window{name: name}
	}
	if symmetric || size == 1 {
		return &Window{name: name, coefficients: gen(size)}
	}
	return &Window{name: name, coefficients: gen(size + 1)[:size]}
}

// Apply applies the window to a signal (creates new array)
func (w *Window) Apply(signal []float64) ([]float64, error) {
	if len(signal) != len(w.coefficients) {
		return nil, fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}

	windowed := make([]float64, len(signal))
	for i, c := range w.coefficients {
		windowed[i] = signal[i] * c
	}
	return windowed, nil
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}

	for i, c := range w.coefficients {
		signal[i] *= c
	}
	return nil
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window size
func (w *Window) Size() int {
	return len(w.coefficients)
}

// Type returns the window name
func (w *Window) Type() string {
	return w.name
}
