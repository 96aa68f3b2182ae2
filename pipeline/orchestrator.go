// Package pipeline runs acquisition, decoding and analysis for one request
// under a wall-clock budget.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-chords/acquire"
	"github.com/RyanBlaney/sonido-chords/analysis"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

// Acquirer fetches the source audio container into dir
type Acquirer interface {
	Download(ctx context.Context, url, dir, id string) (string, error)
}

// Decoder writes mono 44.1 kHz float32 PCM from a container file
type Decoder interface {
	DecodeToFile(ctx context.Context, input, output string) error
}

// MemoryDecoder is implemented by decoders that can decode without an
// intermediate PCM file
type MemoryDecoder interface {
	DecodeFile(ctx context.Context, input string) (*transcode.AudioData, error)
}

var (
	_ Decoder       = (*transcode.Decoder)(nil)
	_ MemoryDecoder = (*transcode.Decoder)(nil)
)

// Analyzer turns samples into a result
type Analyzer interface {
	Analyze(ctx context.Context, samples []float32) (*analysis.Result, error)
}

// Cache stores serialized results by video id
type Cache interface {
	Get(ctx context.Context, id string) ([]byte, bool, error)
	Put(ctx context.Context, id string, payload []byte) error
}

// Options configures an Orchestrator
type Options struct {
	Budget  time.Duration `json:"budget"`
	TempDir string        `json:"temp_dir"`
	// InMemory decodes through a pipe when the decoder is a MemoryDecoder
	InMemory bool `json:"in_memory"`
}

// Orchestrator sequences the pipeline stages
type Orchestrator struct {
	acquirer Acquirer
	decoder  Decoder
	analyzer Analyzer
	cache    Cache
	options  Options
	logger   logging.Logger
}

// New creates an orchestrator. A nil logger uses the global one.
func New(acquirer Acquirer, decoder Decoder, analyzer Analyzer, options Options, logger logging.Logger) *Orchestrator {
	if options.TempDir == "" {
		options.TempDir = "temp"
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Orchestrator{
		acquirer: acquirer,
		decoder:  decoder,
		analyzer: analyzer,
		options:  options,
		logger:   logger.WithFields(logging.Fields{"component": "pipeline"}),
	}
}

// WithCache returns a copy of the orchestrator that consults cache
func (o *Orchestrator) WithCache(cache Cache) *Orchestrator {
	clone := *o
	clone.cache = cache
	return &clone
}

// Process analyzes the audio behind a YouTube locator
func (o *Orchestrator) Process(ctx context.Context, locator string) (*analysis.Result, error) {
	id, err := acquire.VideoID(locator)
	if err != nil {
		return nil, err
	}

	logger := o.logger.WithContext(ctx).WithFields(logging.Fields{"video_id": id})
	logger.Info("Processing video")

	if res, ok := o.cached(ctx, id, logger); ok {
		return res, nil
	}

	res, err := o.run(ctx, logger, func(ctx context.Context, ws *workspace, t *tracker) (*analysis.Result, error) {
		t.set(StageAcquire)
		container, err := o.acquirer.Download(ctx, locator, ws.dir, id)
		if err != nil {
			return nil, newProcessError(StageAcquire, err)
		}
		ws.track(container)

		return o.decodeAndAnalyze(ctx, ws, t, container, id)
	})
	if err != nil {
		return nil, err
	}

	o.store(ctx, id, res, logger)
	return res, nil
}

// ProcessFile analyzes a local audio file under the same budget
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) (*analysis.Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, newProcessError(StageDecode, err)
	}

	logger := o.logger.WithContext(ctx).WithFields(logging.Fields{"file": path})
	logger.Info("Processing file")

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return o.run(ctx, logger, func(ctx context.Context, ws *workspace, t *tracker) (*analysis.Result, error) {
		return o.decodeAndAnalyze(ctx, ws, t, path, name)
	})
}

func (o *Orchestrator) decodeAndAnalyze(ctx context.Context, ws *workspace, t *tracker, container, name string) (*analysis.Result, error) {
	samples, err := o.decode(ctx, ws, t, container, name)
	if err != nil {
		return nil, err
	}

	t.set(StageAnalyze)
	res, err := o.analyzer.Analyze(ctx, samples)
	if err != nil {
		return nil, newProcessError(StageAnalyze, err)
	}
	return res, nil
}

// decode returns the samples of container, either through a PCM file in the
// workspace or straight from the decoder's output
func (o *Orchestrator) decode(ctx context.Context, ws *workspace, t *tracker, container, name string) ([]float32, error) {
	t.set(StageDecode)

	if md, ok := o.decoder.(MemoryDecoder); ok && o.options.InMemory {
		audio, err := md.DecodeFile(ctx, container)
		if err != nil {
			return nil, newProcessError(StageDecode, err)
		}
		return audio.PCM, nil
	}

	pcm := ws.path(name + ".pcm")
	if err := o.decoder.DecodeToFile(ctx, container, pcm); err != nil {
		return nil, newProcessError(StageDecode, err)
	}

	t.set(StageLoad)
	samples, err := transcode.LoadPCM(pcm)
	if err != nil {
		return nil, newProcessError(StageLoad, err)
	}
	return samples, nil
}

type job func(ctx context.Context, ws *workspace, t *tracker) (*analysis.Result, error)

type outcome struct {
	res *analysis.Result
	err error
}

// run races the job against the budget. The workspace is removed when the
// job returns, even if the caller already gave up on it.
func (o *Orchestrator) run(ctx context.Context, logger logging.Logger, fn job) (*analysis.Result, error) {
	budget := o.options.Budget
	if budget <= 0 {
		budget = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ws, err := newWorkspace(o.options.TempDir)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	t := &tracker{}
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		defer func() { done <- out }()
		defer func() {
			if err := ws.cleanup(); err != nil {
				logger.Warn("Failed to remove workspace", logging.Fields{"dir": ws.dir, "error": err.Error()})
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: newProcessError(t.get(), fmt.Errorf("panic: %v", r))}
			}
		}()

		out.res, out.err = fn(ctx, ws, t)
	}()

	timeout := func() error {
		err := &TimeoutError{Budget: budget, Stage: t.get()}
		logger.Error(err, "Processing timed out", logging.Fields{"elapsed": time.Since(start).String()})
		return err
	}

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, timeout()
			}
			var perr *ProcessError
			if errors.As(out.err, &perr) {
				logger.Error(perr, "Processing failed", logging.Fields{"stage": string(perr.Stage), "trace": perr.Trace()})
			}
			return nil, out.err
		}
		logger.Info("Processing complete", logging.Fields{
			"elapsed": time.Since(start).String(),
			"chords":  len(out.res.Chords),
			"bpm":     out.res.BPM,
		})
		return out.res, nil

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeout()
		}
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) cached(ctx context.Context, id string, logger logging.Logger) (*analysis.Result, bool) {
	if o.cache == nil {
		return nil, false
	}

	payload, ok, err := o.cache.Get(ctx, id)
	if err != nil {
		logger.Warn("Cache lookup failed", logging.Fields{"error": err.Error()})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var res analysis.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		logger.Warn("Discarding unreadable cache entry", logging.Fields{"error": err.Error()})
		return nil, false
	}

	logger.Info("Serving cached analysis")
	return &res, true
}

func (o *Orchestrator) store(ctx context.Context, id string, res *analysis.Result, logger logging.Logger) {
	if o.cache == nil {
		return
	}

	payload, err := json.Marshal(res)
	if err != nil {
		logger.Warn("Failed to encode analysis for cache", logging.Fields{"error": err.Error()})
		return
	}
	if err := o.cache.Put(ctx, id, payload); err != nil {
		logger.Warn("Failed to cache analysis", logging.Fields{"error": err.Error()})
	}
}

// tracker records the stage in flight so a timeout can name it
type tracker struct {
	mu    sync.Mutex
	stage Stage
}

func (t *tracker) set(stage Stage) {
	t.mu.Lock()
	t.stage = stage
	t.mu.Unlock()
}

func (t *tracker) get() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stage == "" {
		return StageAcquire
	}
	return t.stage
}
