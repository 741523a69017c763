package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/remediation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	err   error
	block bool
	got   BuildRequest
}

func (f *fakeRenderer) Build(ctx context.Context, req BuildRequest) (string, error) {
	f.got = req
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return req.Output, os.WriteFile(req.Output, []byte("%PDF-1.7 rgb"), 0o644)
}

type copyConverter struct{ err error }

func (c copyConverter) Convert(ctx context.Context, in, out string) error {
	if c.err != nil {
		return c.err
	}
	b, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append(b, []byte(" cmyk")...), 0o644)
}

// suffixReporter scripts channel data by path suffix.
type suffixReporter map[string][]compliance.Channels

func (s suffixReporter) Report(ctx context.Context, doc string) ([]compliance.Channels, error) {
	for suffix, pages := range s {
		if strings.HasSuffix(doc, suffix) {
			return pages, nil
		}
	}
	return nil, errors.New("gs: unrecoverable error")
}

type fakeRemediator struct {
	afterTAC float64
	err      error
	calls    int
}

func (f *fakeRemediator) Remediate(ctx context.Context, req remediation.Request) (*remediation.Outcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(req.Output, []byte("%PDF-1.4 raster"), 0o644); err != nil {
		return nil, err
	}
	after := compliance.BuildReport(req.Output, []compliance.Channels{tac(f.afterTAC)}, compliance.DefaultProfile())
	return &remediation.Outcome{Document: req.Output, Ceiling: req.Ceiling, BeforeTAC: req.Before.MaxTAC, AfterTAC: after.MaxTAC, After: after}, nil
}

type recordingSlots struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingSlots) Acquire(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return func() {}, nil
}

func tac(v float64) compliance.Channels {
	f := v / 400
	return compliance.Channels{Cyan: f, Magenta: f, Yellow: f, Key: f}
}

func newRunner(rep suffixReporter, rem Remediator) *Runner {
	return &Runner{
		Converter:  copyConverter{},
		Measurer:   compliance.NewMeasurer(rep, compliance.DefaultProfile()),
		Remediator: rem,
		Profile:    compliance.DefaultProfile(),
	}
}

func assertValidTrace(t *testing.T, res *Result) {
	t.Helper()
	require.NotEmpty(t, res.Trace)
	assert.Equal(t, StatePending, res.Trace[0])
	for i := 1; i < len(res.Trace); i++ {
		assert.True(t, CanTransition(res.Trace[i-1], res.Trace[i]), "%s -> %s", res.Trace[i-1], res.Trace[i])
	}
	assert.True(t, res.State.Terminal(), "final state %s", res.State)
}

func TestRun_CompliantWithoutRemediation(t *testing.T) {
	t.Parallel()

	rem := &fakeRemediator{}
	r := newRunner(suffixReporter{"x.cmyk.pdf": {tac(150), tac(180)}}, rem)
	render := &fakeRenderer{}
	res := r.Run(context.Background(), Backend{ID: "x", Renderer: render}, Job{Source: "index.html", OutDir: t.TempDir()})

	assertValidTrace(t, res)
	assert.Equal(t, StateCompliant, res.State)
	assert.Contains(t, res.Trace, StateSkippedRemediation)
	assert.True(t, res.Compliant)
	assert.True(t, res.FontPreservation)
	assert.Nil(t, res.Post)
	assert.Equal(t, res.PrintIntent, res.Final)
	assert.NotEmpty(t, res.Digest)
	assert.Zero(t, rem.calls)
	assert.InDelta(t, 6.25, render.got.Width.Inches(), 1e-9)
	assert.InDelta(t, 9.25, render.got.Height.Inches(), 1e-9)
}

func TestRun_BoundaryDoesNotRemediate(t *testing.T) {
	t.Parallel()

	rem := &fakeRemediator{}
	r := newRunner(suffixReporter{"x.cmyk.pdf": {tac(240)}}, rem)
	res := r.Run(context.Background(), Backend{ID: "x", Renderer: &fakeRenderer{}}, Job{OutDir: t.TempDir()})

	assert.Equal(t, StateCompliant, res.State)
	assert.Zero(t, rem.calls)
	assert.Nil(t, res.Post)
}

func TestRun_ScenarioB_RemediationDropsFontPreservation(t *testing.T) {
	t.Parallel()

	rem := &fakeRemediator{afterTAC: 235}
	r := newRunner(suffixReporter{"y.cmyk.pdf": {tac(300), tac(220)}}, rem)
	res := r.Run(context.Background(), Backend{ID: "y", Renderer: &fakeRenderer{}}, Job{OutDir: t.TempDir()})

	assertValidTrace(t, res)
	assert.Equal(t, 1, rem.calls)
	assert.Equal(t, StateCompliant, res.State)
	assert.Contains(t, res.Trace, StateRemediated)
	assert.False(t, res.FontPreservation)
	assert.True(t, res.Remediated)
	require.NotNil(t, res.Post)
	assert.Equal(t, 300.0, res.Pre.MaxTAC)
	assert.Equal(t, 235.0, res.Post.MaxTAC)
	assert.Equal(t, filepath.Join("remediated", "y.pdf"), filepath.Join(filepath.Base(filepath.Dir(res.Final)), filepath.Base(res.Final)))
}

func TestRun_RemediationNotReachingCeilingIsNonCompliant(t *testing.T) {
	t.Parallel()

	r := newRunner(suffixReporter{"y.cmyk.pdf": {tac(300)}}, &fakeRemediator{afterTAC: 260})
	res := r.Run(context.Background(), Backend{ID: "y", Renderer: &fakeRenderer{}}, Job{OutDir: t.TempDir()})

	assert.Equal(t, StateNonCompliant, res.State)
	assert.False(t, res.FontPreservation)
	assert.NotNil(t, res.Post)
}

func TestRun_ScenarioC_MissingRemapperLeavesOriginal(t *testing.T) {
	t.Parallel()

	rep := suffixReporter{"y.cmyk.pdf": {tac(300)}}
	pipeline := &remediation.Pipeline{
		Measurer: compliance.NewMeasurer(rep, compliance.DefaultProfile()),
		// rasterizer, wrapper and merge present but no remapper
		Rasterizer: noopTool{},
		Wrapper:    noopTool{},
		Merger:     noopTool{},
	}
	r := newRunner(rep, pipeline)
	res := r.Run(context.Background(), Backend{ID: "y", Renderer: &fakeRenderer{}}, Job{OutDir: t.TempDir()})

	assertValidTrace(t, res)
	assert.Equal(t, StateRemediationFailed, res.State)
	assert.Contains(t, res.RemediationError, "channel remapper")
	assert.False(t, res.Compliant)
	assert.True(t, res.FontPreservation)
	assert.Nil(t, res.Post)
	assert.Equal(t, res.PrintIntent, res.Final)

	b, err := os.ReadFile(res.PrintIntent)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 rgb cmyk", string(b))
}

type noopTool struct{}

func (noopTool) ToRaster(ctx context.Context, doc string, page, dpi int, out string) (remediation.Raster, error) {
	return remediation.Raster{Page: page, Path: out}, nil
}
func (noopTool) Wrap(ctx context.Context, r remediation.Raster, out string) error { return nil }
func (noopTool) Concat(ctx context.Context, fragments []string, out string) error { return nil }

func TestRun_MeasurementUnknownNeverRemediates(t *testing.T) {
	t.Parallel()

	rem := &fakeRemediator{afterTAC: 200}
	r := newRunner(suffixReporter{}, rem)
	res := r.Run(context.Background(), Backend{ID: "z", Renderer: &fakeRenderer{}}, Job{OutDir: t.TempDir()})

	assertValidTrace(t, res)
	assert.Equal(t, []State{StatePending, StateBuilding, StateBuilt, StateConverting, StateConverted,
		StateMeasuring, StateMeasurementUnknown, StateNonCompliant}, res.Trace)
	assert.Zero(t, rem.calls)
	assert.Nil(t, res.Pre)
	assert.Contains(t, res.Reason(), "ink coverage unknown")
}

func TestRun_StageFailures(t *testing.T) {
	t.Parallel()

	t.Run("build", func(t *testing.T) {
		t.Parallel()
		r := newRunner(suffixReporter{}, nil)
		res := r.Run(context.Background(), Backend{ID: "w", Renderer: &fakeRenderer{err: errors.New("weasyprint: exit 1")}}, Job{OutDir: t.TempDir()})
		assertValidTrace(t, res)
		assert.Equal(t, StateBuildFailed, res.State)
		assert.Contains(t, res.BuildError, "weasyprint")
		assert.False(t, res.HasArtifact())
	})

	t.Run("build timeout", func(t *testing.T) {
		t.Parallel()
		r := newRunner(suffixReporter{}, nil)
		r.Timeouts.Build = 10 * time.Millisecond
		res := r.Run(context.Background(), Backend{ID: "w", Renderer: &fakeRenderer{block: true}}, Job{OutDir: t.TempDir()})
		assert.Equal(t, StateBuildFailed, res.State)
		assert.Contains(t, res.BuildError, "timeout")
	})

	t.Run("no renderer", func(t *testing.T) {
		t.Parallel()
		res := newRunner(suffixReporter{}, nil).Run(context.Background(), Backend{ID: "w"}, Job{OutDir: t.TempDir()})
		assert.Equal(t, StateBuildFailed, res.State)
	})

	t.Run("convert", func(t *testing.T) {
		t.Parallel()
		r := newRunner(suffixReporter{}, nil)
		r.Converter = copyConverter{err: errors.New("gs: /undefined in --run--")}
		res := r.Run(context.Background(), Backend{ID: "w", Renderer: &fakeRenderer{}}, Job{OutDir: t.TempDir()})
		assertValidTrace(t, res)
		assert.Equal(t, StateConvertFailed, res.State)
		assert.Contains(t, res.ConvertError, "conversion failed")
		assert.True(t, res.HasArtifact())
		assert.Equal(t, res.Candidate, res.Artifact())
	})
}

func TestRun_SkippedAndSlots(t *testing.T) {
	t.Parallel()

	r := newRunner(suffixReporter{"p.cmyk.pdf": {tac(100)}}, nil)
	slots := &recordingSlots{}
	r.Slots = slots

	skipped := r.Run(context.Background(), Backend{ID: "s", Skip: true, SkipReason: "disabled"}, Job{OutDir: t.TempDir()})
	assert.Equal(t, []State{StatePending, StateSkipped}, skipped.Trace)
	assert.Equal(t, "skipped: disabled", skipped.Reason())

	res := r.Run(context.Background(), Backend{ID: "p", Renderer: &fakeRenderer{}, Resource: "browser"}, Job{OutDir: t.TempDir()})
	assert.Equal(t, StateCompliant, res.State)
	assert.Equal(t, []string{"browser"}, slots.keys)
}

func TestRun_ObserverSeesEveryTransition(t *testing.T) {
	t.Parallel()

	r := newRunner(suffixReporter{"o.cmyk.pdf": {tac(100)}}, nil)
	var seen []State
	r.Observer = func(ctx context.Context, res *Result) { seen = append(seen, res.State) }
	res := r.Run(context.Background(), Backend{ID: "o", Renderer: &fakeRenderer{}}, Job{OutDir: t.TempDir()})
	assert.Equal(t, res.Trace, seen)
}

func TestClassifyStageError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", ClassifyStageError(nil))
	assert.Equal(t, "timeout", ClassifyStageError(context.DeadlineExceeded))
	assert.Equal(t, "canceled", ClassifyStageError(context.Canceled))
	assert.Equal(t, "error", ClassifyStageError(errors.New("x")))
}
