package analysis

import (
	"context"
	"sync"

	"github.com/RyanBlaney/sonido-chords/algorithms/spectral"
	"github.com/RyanBlaney/sonido-chords/engine"
	"github.com/RyanBlaney/sonido-chords/logging"
)

const (
	SampleRate = 44100
	FrameSize  = 2048
	FrameHop   = 1024
)

// ChromaFrameCount returns the number of frames the extractor produces for n
// samples. A buffer no longer than one frame yields none.
func ChromaFrameCount(n int) int {
	if n <= FrameSize {
		return 0
	}
	return (n-FrameSize)/FrameHop + 1
}

// FrameExtractor turns a sample buffer into a chroma sequence
type FrameExtractor struct {
	engine  engine.Engine
	window  string
	workers int
	logger  logging.Logger
}

// NewFrameExtractor creates a frame extractor. A nil logger uses the global one.
func NewFrameExtractor(eng engine.Engine, logger logging.Logger) *FrameExtractor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &FrameExtractor{
		engine: eng,
		window: "hann",
		logger: logger.WithFields(logging.Fields{"component": "frame_extractor"}),
	}
}

// WithWorkers fixes the worker pool size; zero picks one from the frame count
func (fe *FrameExtractor) WithWorkers(n int) *FrameExtractor {
	clone := *fe
	clone.workers = n
	return &clone
}

// Extract returns one HPCP vector per frame, in signal order. Frames are not
// screened: a silent frame yields whatever the engine returns for it.
func (fe *FrameExtractor) Extract(ctx context.Context, samples []float32) ([][]float64, error) {
	numFrames := ChromaFrameCount(len(samples))
	if numFrames == 0 {
		fe.logger.Debug("Buffer shorter than one frame", logging.Fields{"samples": len(samples)})
		return [][]float64{}, nil
	}

	numWorkers := fe.workers
	if numWorkers <= 0 {
		numWorkers = spectral.WorkerCount(numFrames)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chroma := make([][]float64, numFrames)
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frame := make([]float64, FrameSize)
			for idx := range jobs {
				start := idx * FrameHop
				for i, s := range samples[start : start+FrameSize] {
					frame[i] = float64(s)
				}

				hpcp, err := fe.processFrame(idx, frame)
				if err != nil {
					fail(err)
					continue
				}
				chroma[idx] = hpcp
			}
		}()
	}

feed:
	for idx := range numFrames {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		fe.logger.Error(firstErr, "Frame extraction failed")
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fe.logger.Debug("Extracted chroma sequence", logging.Fields{
		"frames":  numFrames,
		"workers": numWorkers,
	})
	return chroma, nil
}

func (fe *FrameExtractor) processFrame(idx int, frame []float64) ([]float64, error) {
	wrap := func(stage string, err error) error {
		return &ExtractionError{Frame: idx, Stage: stage, Err: err}
	}

	res, err := fe.engine.Windowing(fe.window, frame)
	if err != nil {
		return nil, wrap("windowing", err)
	}
	windowed, err := engine.Collect(res)
	if err != nil {
		return nil, wrap("windowing", err)
	}

	res, err = fe.engine.Spectrum(windowed)
	if err != nil {
		return nil, wrap("spectrum", err)
	}
	spectrum, err := engine.Collect(res)
	if err != nil {
		return nil, wrap("spectrum", err)
	}

	freqRes, magRes, err := fe.engine.SpectralPeaks(spectrum)
	if err != nil {
		return nil, wrap("peaks", err)
	}
	freqs, err := engine.Collect(freqRes)
	if err != nil {
		return nil, wrap("peaks", err)
	}
	mags, err := engine.Collect(magRes)
	if err != nil {
		return nil, wrap("peaks", err)
	}

	res, err = fe.engine.HPCP(freqs, mags)
	if err != nil {
		return nil, wrap("hpcp", err)
	}
	hpcp, err := engine.Collect(res)
	if err != nil {
		return nil, wrap("hpcp", err)
	}
	return hpcp, nil
}
