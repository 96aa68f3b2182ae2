package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps the real-input transform from mjibson/go-dsp
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the full complex spectrum of a real frame.
// go-dsp handles non power-of-two sizes.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// Positive returns the N/2+1 non-negative frequency bins of a real frame
func (f *FFT) Positive(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	full := fft.FFTReal(x)
	return full[:len(x)/2+1]
}

// Magnitude returns |X[k]| for the N/2+1 non-negative frequency bins
func (f *FFT) Magnitude(x []float64) []float64 {
	bins := f.Positive(x)
	mag := make([]float64, len(bins))
	for i, c := range bins {
		mag[i] = cmplx.Abs(c)
	}
	return mag
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}
	return realResult
}
