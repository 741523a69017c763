package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/logger"
	"github.com/local/inkbench/internal/metrics"
	"github.com/local/inkbench/internal/remediation"
)

// BuildRequest asks a renderer to produce a candidate document.
type BuildRequest struct {
	Source string
	Output string
	Width  compliance.Length
	Height compliance.Length
}

// Renderer is one HTML/CSS to PDF backend. It returns the path it wrote.
type Renderer interface {
	Build(ctx context.Context, req BuildRequest) (string, error)
}

// ColorConverter turns a document into a four-channel print-intent document.
type ColorConverter interface {
	Convert(ctx context.Context, in, out string) error
}

// Measurer produces ink coverage reports.
type Measurer interface {
	Measure(ctx context.Context, document string) (*compliance.InkCoverageReport, error)
}

// Remediator runs the remediation pipeline.
type Remediator interface {
	Remediate(ctx context.Context, req remediation.Request) (*remediation.Outcome, error)
}

// ArtifactValidator confirms a build produced a PDF.
type ArtifactValidator interface {
	ValidatePDF(path string) error
}

// Slots hands out shared-resource slots, e.g. a browser pool.
type Slots interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Observer is told about every state transition.
type Observer func(ctx context.Context, res *Result)

// Backend is one configured rendering backend.
type Backend struct {
	ID       string
	Renderer Renderer
	// Resource names a shared resource the build holds, e.g. "browser".
	Resource   string
	Skip       bool
	SkipReason string
}

// Job is the source document and the project output directory.
type Job struct {
	Source string
	OutDir string
}

// Timeouts bound each stage. Zero means unbounded.
type Timeouts struct {
	Build     time.Duration
	Convert   time.Duration
	Measure   time.Duration
	Remediate time.Duration
}

// Runner executes one backend's vertical slice: build, convert, measure,
// optional remediation.
type Runner struct {
	Converter  ColorConverter
	Measurer   Measurer
	Remediator Remediator
	Validator  ArtifactValidator
	Slots      Slots
	Observer   Observer

	Profile        compliance.Profile
	// Ceiling is the remediation target; zero means Profile.TACFail.
	Ceiling        float64
	// RemediationDPI is the raster resolution; zero means Profile.DPI.
	RemediationDPI int
	Timeouts       Timeouts
}

// Run never returns an error: the Result records where and why it stopped.
func (r *Runner) Run(ctx context.Context, b Backend, job Job) *Result {
	ctx = logger.WithBackend(ctx, b.ID)
	res := &Result{Backend: b.ID, Started: time.Now()}
	defer func() {
		res.Duration = time.Since(res.Started)
		metrics.IncBackendRun(b.ID, string(res.State))
		logger.From(ctx).Info().
			Str("state", string(res.State)).
			Bool("compliant", res.Compliant).
			Bool("font_preservation", res.FontPreservation).
			Dur("duration", res.Duration).
			Msg("backend run finished")
	}()

	r.enter(ctx, res, StatePending)
	if b.Skip {
		res.Skipped = true
		res.SkipReason = b.SkipReason
		r.enter(ctx, res, StateSkipped)
		return res
	}

	if !r.build(ctx, b, job, res) {
		return res
	}
	res.FontPreservation = true
	if !r.convert(ctx, b, job, res) {
		return res
	}

	r.enter(ctx, res, StateMeasuring)
	pre, err := r.measure(ctx, b.ID, res.PrintIntent)
	if err != nil {
		res.MeasureError = err.Error()
		logger.From(ctx).Warn().Err(err).Msg("measurement unavailable, not remediating")
		r.enter(ctx, res, StateMeasurementUnknown)
		r.finish(ctx, res, false)
		return res
	}
	res.Pre = pre
	r.enter(ctx, res, StateMeasured)

	if !compliance.ShouldRemediate(pre, r.Profile) {
		r.enter(ctx, res, StateSkippedRemediation)
		r.finish(ctx, res, pre.Compliant(r.Profile))
		return res
	}

	if !r.remediate(ctx, b, job, res) {
		return res
	}
	r.finish(ctx, res, res.Post.Compliant(r.Profile))
	return res
}

func (r *Runner) build(ctx context.Context, b Backend, job Job, res *Result) bool {
	r.enter(ctx, res, StateBuilding)
	fail := func(err error) bool {
		bf := &BuildFailure{Backend: b.ID, Err: err}
		res.BuildError = bf.Error()
		logger.From(ctx).Error().Err(err).Msg("build failed")
		r.enter(ctx, res, StateBuildFailed)
		return false
	}
	if b.Renderer == nil {
		return fail(fmt.Errorf("no renderer configured"))
	}

	out := filepath.Join(job.OutDir, "candidates", b.ID+".pdf")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fail(err)
	}

	if r.Slots != nil && b.Resource != "" {
		release, err := r.Slots.Acquire(ctx, b.Resource)
		if err != nil {
			return fail(fmt.Errorf("acquire %s slot: %w", b.Resource, err))
		}
		defer release()
	}

	start := time.Now()
	sctx, cancel := withTimeout(ctx, r.Timeouts.Build)
	path, err := b.Renderer.Build(sctx, BuildRequest{
		Source: job.Source,
		Output: out,
		Width:  r.Profile.FinalWidth(),
		Height: r.Profile.FinalHeight(),
	})
	cancel()
	metrics.ObserveStage(b.ID, "build", time.Since(start))
	if err != nil {
		return fail(err)
	}
	if path == "" {
		path = out
	}
	if err := r.validate(path); err != nil {
		return fail(err)
	}
	res.Candidate = path
	r.enter(ctx, res, StateBuilt)
	return true
}

func (r *Runner) validate(path string) error {
	if r.Validator != nil {
		return r.Validator.ValidatePDF(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("candidate not readable: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("candidate %s is empty", path)
	}
	return nil
}

func (r *Runner) convert(ctx context.Context, b Backend, job Job, res *Result) bool {
	r.enter(ctx, res, StateConverting)
	fail := func(err error) bool {
		cf := &ConvertFailure{Backend: b.ID, Err: err}
		res.ConvertError = cf.Error()
		logger.From(ctx).Error().Err(err).Msg("print-intent conversion failed")
		r.enter(ctx, res, StateConvertFailed)
		return false
	}
	if r.Converter == nil {
		return fail(fmt.Errorf("no color converter configured"))
	}
	out := filepath.Join(job.OutDir, "print", b.ID+".cmyk.pdf")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fail(err)
	}

	start := time.Now()
	sctx, cancel := withTimeout(ctx, r.Timeouts.Convert)
	err := r.Converter.Convert(sctx, res.Candidate, out)
	cancel()
	metrics.ObserveStage(b.ID, "convert", time.Since(start))
	if err != nil {
		return fail(err)
	}
	res.PrintIntent = out
	res.Final = out
	r.enter(ctx, res, StateConverted)
	return true
}

func (r *Runner) measure(ctx context.Context, backendID, doc string) (*compliance.InkCoverageReport, error) {
	if r.Measurer == nil {
		return nil, &compliance.MeasurementUnavailableError{Document: doc, Reason: "no measurer configured"}
	}
	start := time.Now()
	sctx, cancel := withTimeout(ctx, r.Timeouts.Measure)
	defer cancel()
	report, err := r.Measurer.Measure(sctx, doc)
	metrics.ObserveStage(backendID, "measure", time.Since(start))
	return report, err
}

func (r *Runner) remediate(ctx context.Context, b Backend, job Job, res *Result) bool {
	r.enter(ctx, res, StateRemediating)
	fail := func(err error) bool {
		res.RemediationError = err.Error()
		logger.From(ctx).Error().Err(err).Msg("remediation failed, keeping print-intent document")
		r.enter(ctx, res, StateRemediationFailed)
		return false
	}
	if r.Remediator == nil {
		return fail(&remediation.UnavailableError{Missing: []string{"remediation pipeline"}})
	}

	ceiling := r.Ceiling
	if ceiling <= 0 {
		ceiling = r.Profile.TACFail
	}
	dpi := r.RemediationDPI
	if dpi <= 0 {
		dpi = r.Profile.DPI
	}
	start := time.Now()
	sctx, cancel := withTimeout(ctx, r.Timeouts.Remediate)
	out, err := r.Remediator.Remediate(sctx, remediation.Request{
		Document: res.PrintIntent,
		Output:   filepath.Join(job.OutDir, "remediated", b.ID+".pdf"),
		Ceiling:  ceiling,
		DPI:      dpi,
		Before:   res.Pre,
	})
	cancel()
	metrics.ObserveStage(b.ID, "remediate", time.Since(start))
	res.Remediation = out
	if err != nil {
		return fail(err)
	}

	res.Remediated = true
	res.FontPreservation = false
	res.Post = out.After
	res.Final = out.Document
	if out.Warning != nil {
		res.Warnings = append(res.Warnings, out.Warning.Error())
	}
	if out.Fallbacks > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d page(s) fell back to unremapped content", out.Fallbacks))
	}
	r.enter(ctx, res, StateRemediated)
	return true
}

func (r *Runner) finish(ctx context.Context, res *Result, compliant bool) {
	res.Compliant = compliant
	if d, size, err := Digest(res.Final); err == nil {
		res.Digest, res.Size = d, size
	} else {
		logger.From(ctx).Warn().Err(err).Msg("artifact digest failed")
	}
	if compliant {
		r.enter(ctx, res, StateCompliant)
	} else {
		r.enter(ctx, res, StateNonCompliant)
	}
}

func (r *Runner) enter(ctx context.Context, res *Result, s State) {
	if res.State != "" && !CanTransition(res.State, s) {
		logger.From(ctx).Error().Str("from", string(res.State)).Str("to", string(s)).Msg("invalid state transition")
	}
	res.State = s
	res.Trace = append(res.Trace, s)
	logger.From(ctx).Debug().Str("state", string(s)).Msg("backend state")
	if r.Observer != nil {
		r.Observer(ctx, res)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
