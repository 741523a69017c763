package remediation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sync"
	"time"

	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Tolerance is how far above the ceiling a remediated document may land
// before a ToleranceNotMet warning is raised, in TAC percentage points.
const Tolerance = 1.0

// Raster is a channel-separated raster of one page on disk.
type Raster struct {
	Page int
	Path string
}

// Rasterizer renders one page of a document into a CMYK raster.
type Rasterizer interface {
	ToRaster(ctx context.Context, document string, page, dpi int, out string) (Raster, error)
}

// ChannelRemapper builds ceiling-keyed device links and applies them to rasters.
type ChannelRemapper interface {
	Build(ctx context.Context, ceiling float64, dir string) (Artifact, error)
	Apply(ctx context.Context, artifact Artifact, in Raster, out string) (Raster, error)
}

// RasterToDocument wraps a raster into a single-page document.
type RasterToDocument interface {
	Wrap(ctx context.Context, r Raster, out string) error
}

// DocumentMerge concatenates documents in the given order.
type DocumentMerge interface {
	Concat(ctx context.Context, fragments []string, out string) error
}

// PageExtractor copies one original page into its own document. It is the
// fallback when a page cannot be rasterized or wrapped.
type PageExtractor interface {
	Extract(ctx context.Context, document string, page int, out string) error
}

// Measurer re-measures documents for verification.
type Measurer interface {
	Measure(ctx context.Context, document string) (*compliance.InkCoverageReport, error)
}

// Prober is implemented by collaborators that can tell whether their
// underlying tool is installed.
type Prober interface {
	Available(ctx context.Context) error
}

// Page outcomes.
const (
	PageRemapped   = "remapped"
	PageUnmodified = "unmodified-raster"
	PageOriginal   = "original-page"
	PageFailed     = "failed"
)

// PageOutcome records what happened to one page.
type PageOutcome struct {
	Page     int    `json:"page"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
	fragment string
}

// Request describes one remediation.
type Request struct {
	Document string
	Output   string
	Ceiling  float64
	DPI      int
	// Before is the measurement of Document; it is taken if nil.
	Before *compliance.InkCoverageReport
}

// Outcome is the result of a completed remediation.
type Outcome struct {
	Document  string                        `json:"document"`
	Ceiling   float64                       `json:"ceiling"`
	BeforeTAC float64                       `json:"before_tac"`
	AfterTAC  float64                       `json:"after_tac"`
	Before    *compliance.InkCoverageReport `json:"-"`
	After     *compliance.InkCoverageReport `json:"-"`
	Pages     []PageOutcome                 `json:"pages"`
	Fallbacks int                           `json:"fallbacks"`
	// Warning is a *ToleranceNotMet when the ceiling was not reached.
	Warning error `json:"-"`
	// FontPreservation is always false: remediated pages are raster images.
	FontPreservation bool          `json:"font_preservation"`
	Duration         time.Duration `json:"duration"`
}

// Pipeline rasterizes, remaps and reassembles a document under an ink ceiling.
type Pipeline struct {
	Rasterizer Rasterizer
	Remapper   ChannelRemapper
	Wrapper    RasterToDocument
	Merger     DocumentMerge
	Extractor  PageExtractor
	Measurer   Measurer

	Cache        *ProfileCache
	ProfileDir   string
	WorkDir      string
	Workers      int
	StageTimeout time.Duration
	// StrictPages turns any page fallback into a remediation failure.
	StrictPages bool
}

// Check verifies every required collaborator is present and installed.
// All problems are reported together.
func (p *Pipeline) Check(ctx context.Context) error {
	var missing []string
	probe := func(name string, c any) {
		if c == nil {
			missing = append(missing, name)
			return
		}
		if pr, ok := c.(Prober); ok {
			if err := pr.Available(ctx); err != nil {
				missing = append(missing, fmt.Sprintf("%s (%v)", name, err))
			}
		}
	}
	probe("rasterizer", nilIfNil(p.Rasterizer))
	probe("channel remapper", nilIfNil(p.Remapper))
	probe("raster-to-document", nilIfNil(p.Wrapper))
	probe("document merge", nilIfNil(p.Merger))
	probe("measurer", nilIfNil(p.Measurer))
	if len(missing) > 0 {
		return &UnavailableError{Missing: missing}
	}
	return nil
}

// nilIfNil converts typed-nil pointers inside interfaces into untyped nil.
func nilIfNil(v any) any {
	if v == nil {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}
	return v
}

// Remediate runs the full pipeline. The input document is never modified;
// the remediated document is written to req.Output.
func (p *Pipeline) Remediate(ctx context.Context, req Request) (*Outcome, error) {
	if err := p.Check(ctx); err != nil {
		return nil, err
	}
	if req.DPI <= 0 {
		req.DPI = compliance.DefaultDPI
	}
	if req.Output == "" {
		return nil, fmt.Errorf("remediation output path is empty")
	}
	start := time.Now()

	before := req.Before
	if before == nil {
		var err error
		if before, err = p.measure(ctx, req.Document); err != nil {
			return nil, fmt.Errorf("measure before remediation: %w", err)
		}
	}
	pages := len(before.Pages)
	if pages == 0 {
		return nil, fmt.Errorf("document %s has no measured pages", req.Document)
	}

	cache := p.Cache
	if cache == nil {
		cache = SharedCache()
	}
	profileDir := p.ProfileDir
	if profileDir == "" {
		profileDir = filepath.Join(os.TempDir(), "inkbench-profiles")
	}
	art, err := cache.Get(ctx, req.Ceiling, func(ctx context.Context) (Artifact, error) {
		if err := os.MkdirAll(profileDir, 0o755); err != nil {
			return Artifact{}, err
		}
		sctx, cancel := p.stageContext(ctx)
		defer cancel()
		return p.Remapper.Build(sctx, req.Ceiling, profileDir)
	})
	if err != nil {
		return nil, fmt.Errorf("build remediation profile for %.0f%%: %w", req.Ceiling, err)
	}

	work, err := os.MkdirTemp(p.WorkDir, "remediate-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	log.Info().
		Str("document", req.Document).
		Int("pages", pages).
		Float64("ceiling", req.Ceiling).
		Int("dpi", req.DPI).
		Float64("before_tac", before.MaxTAC).
		Msg("remediation started")

	outcomes := p.processPages(ctx, art, req, pages, work)

	out := &Outcome{
		Document:  req.Output,
		Ceiling:   req.Ceiling,
		BeforeTAC: before.MaxTAC,
		Before:    before,
		Pages:     outcomes,
	}
	fragments := make([]string, 0, pages)
	var pageErrs []error
	for _, o := range outcomes {
		metrics.IncRemediationPage(o.Outcome)
		switch o.Outcome {
		case PageFailed:
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %s", o.Page, o.Error))
			continue
		case PageUnmodified, PageOriginal:
			out.Fallbacks++
		}
		fragments = append(fragments, o.fragment)
	}
	if len(pageErrs) > 0 {
		return out, fmt.Errorf("%w: %w", ErrPageTransform, errors.Join(pageErrs...))
	}
	if p.StrictPages && out.Fallbacks > 0 {
		return out, fmt.Errorf("%w: %d of %d pages fell back to unremapped content", ErrPageTransform, out.Fallbacks, pages)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return out, fmt.Errorf("create output dir: %w", err)
	}
	mctx, cancel := p.stageContext(ctx)
	err = p.Merger.Concat(mctx, fragments, req.Output)
	cancel()
	if err != nil {
		return out, fmt.Errorf("merge %d fragments: %w", len(fragments), err)
	}

	after, err := p.measure(ctx, req.Output)
	if err != nil {
		return out, fmt.Errorf("verify remediated document: %w", err)
	}
	out.After = after
	out.AfterTAC = after.MaxTAC
	out.Duration = time.Since(start)

	if after.MaxTAC > req.Ceiling+Tolerance {
		var over []int
		for _, s := range after.Pages {
			if s.TAC > req.Ceiling+Tolerance {
				over = append(over, s.Page)
			}
		}
		out.Warning = &ToleranceNotMet{Ceiling: req.Ceiling, Tolerance: Tolerance, AfterTAC: after.MaxTAC, Pages: over}
		log.Warn().Err(out.Warning).Str("document", req.Output).Msg("remediation did not reach ceiling")
	}

	log.Info().
		Str("document", req.Output).
		Float64("before_tac", out.BeforeTAC).
		Float64("after_tac", out.AfterTAC).
		Int("fallbacks", out.Fallbacks).
		Dur("duration", out.Duration).
		Msg("remediation finished")
	return out, nil
}

// processPages runs the per-page stages on a bounded worker pool. The
// returned slice is indexed by page, whatever order workers finish in.
func (p *Pipeline) processPages(ctx context.Context, art Artifact, req Request, pages int, work string) []PageOutcome {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > pages {
		workers = pages
	}

	outcomes := make([]PageOutcome, pages)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				outcomes[page-1] = p.processPage(ctx, art, req, page, work)
			}
		}()
	}
	for page := 1; page <= pages; page++ {
		jobs <- page
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func (p *Pipeline) processPage(ctx context.Context, art Artifact, req Request, page int, work string) PageOutcome {
	base := filepath.Join(work, fmt.Sprintf("page-%04d", page))
	o := PageOutcome{Page: page}

	if err := ctx.Err(); err != nil {
		o.Outcome = PageFailed
		o.Error = err.Error()
		return o
	}

	sctx, cancel := p.stageContext(ctx)
	raster, err := p.Rasterizer.ToRaster(sctx, req.Document, page, req.DPI, base+".tif")
	cancel()
	if err != nil {
		return p.originalPage(ctx, req.Document, page, base, &PageTransformFailure{Page: page, Stage: "rasterize", Err: err})
	}

	o.Outcome = PageRemapped
	sctx, cancel = p.stageContext(ctx)
	remapped, err := p.Remapper.Apply(sctx, art, raster, base+".remapped.tif")
	cancel()
	if err != nil {
		ptf := &PageTransformFailure{Page: page, Stage: "remap", Err: err}
		log.Warn().Err(ptf).Str("document", req.Document).Msg("page remap failed, keeping unmodified raster")
		remapped = raster
		o.Outcome = PageUnmodified
		o.Error = ptf.Error()
	}

	sctx, cancel = p.stageContext(ctx)
	err = p.Wrapper.Wrap(sctx, remapped, base+".pdf")
	cancel()
	if err != nil {
		return p.originalPage(ctx, req.Document, page, base, &PageTransformFailure{Page: page, Stage: "wrap", Err: err})
	}
	o.fragment = base + ".pdf"
	return o
}

// originalPage falls back to the untouched source page.
func (p *Pipeline) originalPage(ctx context.Context, document string, page int, base string, cause *PageTransformFailure) PageOutcome {
	o := PageOutcome{Page: page, Outcome: PageFailed, Error: cause.Error()}
	if p.Extractor == nil {
		log.Error().Err(cause).Str("document", document).Msg("page transform failed and no page extractor is configured")
		return o
	}
	sctx, cancel := p.stageContext(ctx)
	defer cancel()
	out := base + ".original.pdf"
	if err := p.Extractor.Extract(sctx, document, page, out); err != nil {
		o.Error = fmt.Sprintf("%s; extract original page: %v", cause.Error(), err)
		log.Error().Err(cause).Str("document", document).Msg("page fallback extraction failed")
		return o
	}
	log.Warn().Err(cause).Str("document", document).Msg("page kept as original vector page")
	o.Outcome = PageOriginal
	o.fragment = out
	return o
}

func (p *Pipeline) measure(ctx context.Context, document string) (*compliance.InkCoverageReport, error) {
	sctx, cancel := p.stageContext(ctx)
	defer cancel()
	return p.Measurer.Measure(sctx, document)
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.StageTimeout > 0 {
		return context.WithTimeout(ctx, p.StageTimeout)
	}
	return context.WithCancel(ctx)
}
