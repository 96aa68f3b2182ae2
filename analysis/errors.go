package analysis

import "fmt"

// ValidationReason names the defect found in a chroma sequence
type ValidationReason string

const (
	ReasonEmpty      ValidationReason = "empty"
	ReasonMalformed  ValidationReason = "malformed"
	ReasonNonNumeric ValidationReason = "non-numeric"
)

// ValidationError reports a chroma sequence rejected before detection
type ValidationError struct {
	Reason ValidationReason
	Frame  int // -1 when the whole sequence is at fault
}

func (e *ValidationError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("invalid chroma sequence: %s", e.Reason)
	}
	return fmt.Sprintf("invalid chroma sequence: %s frame %d", e.Reason, e.Frame)
}

// DetectionError reports that every chord detection strategy failed
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("chord detection failed: %v", e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// ExtractionError reports a DSP failure while building the chroma sequence
type ExtractionError struct {
	Frame int
	Stage string // windowing, spectrum, peaks, hpcp
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("frame %d: %s failed: %v", e.Frame, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
