package compliance

import (
	"errors"
	"fmt"
)

// ErrMeasurementUnavailable matches every MeasurementUnavailableError.
var ErrMeasurementUnavailable = errors.New("measurement unavailable")

// MeasurementUnavailableError means the channel reporter produced no usable
// output for a document, e.g. a malformed or encrypted file.
type MeasurementUnavailableError struct {
	Document string
	Reason   string
	Err      error
}

func (e *MeasurementUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("measurement unavailable for %s: %s: %v", e.Document, e.Reason, e.Err)
	}
	return fmt.Sprintf("measurement unavailable for %s: %s", e.Document, e.Reason)
}

func (e *MeasurementUnavailableError) Unwrap() error { return e.Err }

func (e *MeasurementUnavailableError) Is(target error) bool {
	return target == ErrMeasurementUnavailable
}
