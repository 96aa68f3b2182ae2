package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"
)

// STFT computes framed spectra of a signal
type STFT struct {
	fft *FFT
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Magnitude      [][]float64    `json:"magnitude"`       // Time x Frequency magnitude matrix
	Complex        [][]complex128 `json:"-"`               // Raw complex spectrogram
	TimeFrames     int            `json:"time_frames"`     // Number of time frames
	FreqBins       int            `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int            `json:"sample_rate"`     // Sample rate
	WindowSize     int            `json:"window_size"`     // FFT window size
	HopSize        int            `json:"hop_size"`        // Hop size between frames
	FreqResolution float64        `json:"freq_resolution"` // Hz per bin
	TimeResolution float64        `json:"time_resolution"` // Seconds per frame
}

// Window applies a taper to a frame in place
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// FrameCount returns how many full frames of windowSize fit in n samples
func FrameCount(n, windowSize, hopSize int) int {
	if n < windowSize || windowSize <= 0 || hopSize <= 0 {
		return 0
	}
	return (n-windowSize)/hopSize + 1
}

// ComputeWithWindow computes the STFT with a pool of workers. Frames are written
// by index so the output order matches the signal regardless of scheduling.
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := FrameCount(len(signal), windowSize, hopSize)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	complexSpectrum := make([][]complex128, numFrames)

	numWorkers := WorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frameBuffer := make([]float64, windowSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frameBuffer, signal[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errOnce.Do(func() { firstErr = fmt.Errorf("frame %d: %w", frameIdx, err) })
						continue
					}
				}

				bins := s.fft.Positive(frameBuffer)
				mag := make([]float64, freqBins)
				cpx := make([]complex128, freqBins)
				for i := range freqBins {
					cpx[i] = bins[i]
					mag[i] = cmplx.Abs(bins[i])
				}
				magnitude[frameIdx] = mag
				complexSpectrum[frameIdx] = cpx
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	return &STFTResult{
		Magnitude:      magnitude,
		Complex:        complexSpectrum,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// WorkerCount picks a worker pool size for a number of independent frames
func WorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
