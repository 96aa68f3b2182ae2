package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mdobak/go-xerrors"

	"github.com/RyanBlaney/sonido-chords/acquire"
)

var (
	// ErrTimeout matches every *TimeoutError
	ErrTimeout = errors.New("processing timeout")
	// ErrInvalidLocator is returned when no video id can be read from a locator
	ErrInvalidLocator = acquire.ErrInvalidLocator
)

// Stage names a step of the pipeline
type Stage string

const (
	StageAcquire Stage = "acquire"
	StageDecode  Stage = "decode"
	StageLoad    Stage = "load"
	StageAnalyze Stage = "analyze"
)

// TimeoutError reports that the budget ran out before the pipeline finished
type TimeoutError struct {
	Budget time.Duration
	Stage  Stage // stage in flight when the budget expired
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Processing timeout - song may be too long (budget %s exceeded during %s)", e.Budget, e.Stage)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// ProcessError reports a failed stage. Err is the cause as returned by the stage.
type ProcessError struct {
	Stage Stage
	Err   error
	trace error
}

func newProcessError(stage Stage, err error) *ProcessError {
	return &ProcessError{
		Stage: stage,
		Err:   err,
		trace: xerrors.New(fmt.Sprintf("%s failed", stage), err),
	}
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Trace returns the error annotated with the stack where the stage failed
func (e *ProcessError) Trace() string {
	if e.trace == nil {
		return e.Error()
	}
	return fmt.Sprintf("%+v", e.trace)
}
