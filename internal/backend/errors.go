package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
)

var (
	ErrBuild   = errors.New("build failed")
	ErrConvert = errors.New("print-intent conversion failed")
)

// BuildFailure means the backend produced no readable document.
type BuildFailure struct {
	Backend string
	Err     error
}

func (e *BuildFailure) Error() string {
	return fmt.Sprintf("backend %s: build failed (%s): %v", e.Backend, ClassifyStageError(e.Err), e.Err)
}
func (e *BuildFailure) Unwrap() error        { return e.Err }
func (e *BuildFailure) Is(target error) bool { return target == ErrBuild }

// ConvertFailure means the candidate could not be turned into a print-intent document.
type ConvertFailure struct {
	Backend string
	Err     error
}

func (e *ConvertFailure) Error() string {
	return fmt.Sprintf("backend %s: print-intent conversion failed (%s): %v", e.Backend, ClassifyStageError(e.Err), e.Err)
}
func (e *ConvertFailure) Unwrap() error        { return e.Err }
func (e *ConvertFailure) Is(target error) bool { return target == ErrConvert }

// ClassifyStageError labels a stage error for logs and reports:
// "timeout", "canceled", "missing-tool", "tool-exit" or "error".
// Stage failures are reported, never retried.
func ClassifyStageError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isTimeoutError(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, exec.ErrNotFound):
		return "missing-tool"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "tool-exit"
	}
	return "error"
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
