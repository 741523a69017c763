package remediation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPipelineUnavailable matches UnavailableError.
	ErrPipelineUnavailable = errors.New("remediation pipeline unavailable")
	// ErrPageTransform matches PageTransformFailure.
	ErrPageTransform = errors.New("page transform failed")
	// ErrToleranceNotMet matches ToleranceNotMet.
	ErrToleranceNotMet = errors.New("ink ceiling tolerance not met")
)

// UnavailableError names every collaborator the pipeline is missing.
// It is returned before any page is touched.
type UnavailableError struct {
	Missing []string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remediation pipeline unavailable: missing %s", strings.Join(e.Missing, ", "))
}

func (e *UnavailableError) Is(target error) bool { return target == ErrPipelineUnavailable }

// PageTransformFailure records a failed stage for a single page.
type PageTransformFailure struct {
	Page  int
	Stage string
	Err   error
}

func (e *PageTransformFailure) Error() string {
	return fmt.Sprintf("page %d: %s failed: %v", e.Page, e.Stage, e.Err)
}

func (e *PageTransformFailure) Unwrap() error { return e.Err }

func (e *PageTransformFailure) Is(target error) bool { return target == ErrPageTransform }

// ToleranceNotMet is a warning: the remediated document still exceeds the
// ceiling by more than the tolerance.
type ToleranceNotMet struct {
	Ceiling   float64
	Tolerance float64
	AfterTAC  float64
	Pages     []int
}

func (e *ToleranceNotMet) Error() string {
	return fmt.Sprintf("remediated max TAC %.1f%% exceeds ceiling %.1f%% (+%.1f%% tolerance) on pages %v",
		e.AfterTAC, e.Ceiling, e.Tolerance, e.Pages)
}

func (e *ToleranceNotMet) Is(target error) bool { return target == ErrToleranceNotMet }
