package backend

import (
	"fmt"
	"time"

	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/remediation"
)

// Result is everything known about one backend run, however far it got.
type Result struct {
	Backend    string  `json:"backend"`
	State      State   `json:"state"`
	Trace      []State `json:"trace"`
	Skipped    bool    `json:"skipped,omitempty"`
	SkipReason string  `json:"skip_reason,omitempty"`

	BuildError       string `json:"build_error,omitempty"`
	ConvertError     string `json:"convert_error,omitempty"`
	MeasureError     string `json:"measure_error,omitempty"`
	RemediationError string `json:"remediation_error,omitempty"`

	Candidate   string `json:"candidate,omitempty"`
	PrintIntent string `json:"print_intent,omitempty"`
	Final       string `json:"final,omitempty"`

	Pre         *compliance.InkCoverageReport `json:"pre,omitempty"`
	Post        *compliance.InkCoverageReport `json:"post,omitempty"`
	Remediation *remediation.Outcome          `json:"remediation,omitempty"`
	Remediated  bool                          `json:"remediated"`
	Warnings    []string                      `json:"warnings,omitempty"`

	Compliant        bool   `json:"compliant"`
	FontPreservation bool   `json:"font_preservation"`
	Digest           string `json:"digest,omitempty"`
	Size             int64  `json:"size,omitempty"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// FinalReport is the post-remediation report when remediation ran, else the
// pre-remediation one. It is nil when measurement was unavailable.
func (r *Result) FinalReport() *compliance.InkCoverageReport {
	if r.Post != nil {
		return r.Post
	}
	return r.Pre
}

// Artifact is the best document this run produced: the final print
// document, or the raw candidate when conversion failed. Empty if none.
func (r *Result) Artifact() string {
	if r.Final != "" {
		return r.Final
	}
	return r.Candidate
}

// HasArtifact reports whether the run produced any document.
func (r *Result) HasArtifact() bool { return r.Artifact() != "" }

// Converted reports whether a print-intent document exists.
func (r *Result) Converted() bool { return r.PrintIntent != "" }

// Settled reports whether the run ended with a compliance verdict.
func (r *Result) Settled() bool {
	return r.State == StateCompliant || r.State == StateNonCompliant
}

// Reason explains, in one line, where the run stopped and why.
func (r *Result) Reason() string {
	switch r.State {
	case StateSkipped:
		if r.SkipReason != "" {
			return "skipped: " + r.SkipReason
		}
		return "skipped"
	case StateBuildFailed:
		return r.BuildError
	case StateConvertFailed:
		return r.ConvertError
	case StateRemediationFailed:
		return r.RemediationError
	case StateCompliant:
		if rep := r.FinalReport(); rep != nil {
			return fmt.Sprintf("compliant, max TAC %.1f%%", rep.MaxTAC)
		}
		return "compliant"
	case StateNonCompliant:
		if r.MeasureError != "" {
			return "ink coverage unknown: " + r.MeasureError
		}
		if rep := r.FinalReport(); rep != nil {
			return fmt.Sprintf("non-compliant, max TAC %.1f%%", rep.MaxTAC)
		}
		return "non-compliant"
	}
	return string(r.State)
}
