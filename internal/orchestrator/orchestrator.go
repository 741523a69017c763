package orchestrator

import (
    "context"
    "errors"
    "fmt"
    "runtime/debug"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/local/inkbench/internal/backend"
    "github.com/local/inkbench/internal/compare"
    "github.com/local/inkbench/internal/logger"
    "github.com/local/inkbench/internal/metrics"
)

// ErrNoUsableArtifact means no backend produced any document for the project.
var ErrNoUsableArtifact = errors.New("no backend produced a usable artifact")

type BackendRunner interface {
    Run(ctx context.Context, b backend.Backend, job backend.Job) *backend.Result
}

type Comparer interface {
    Compare(ctx context.Context, cands []compare.Candidate) *compare.Result
}

type Dependencies struct {
    Runner  BackendRunner
    Compare Comparer
    // Pages receives per-page remediation outcomes; optional.
    Pages PageStore
    // Parallel > 1 runs that many backends at once. Default is sequential.
    Parallel int
}

type Orchestrator struct {
    deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
    return &Orchestrator{deps: deps}
}

// Source is one project's entry document and its output directory.
type Source struct {
    Project string
    Path    string
    OutDir  string
}

// Result is one project's outcome across all backends.
type Result struct {
    RunID      string                     `json:"run_id"`
    Project    string                     `json:"project"`
    Source     string                     `json:"source"`
    OutDir     string                     `json:"out_dir"`
    Order      []string                   `json:"order"`
    Backends   map[string]*backend.Result `json:"backends"`
    Comparison *compare.Result            `json:"comparison,omitempty"`
    // Success is true iff every non-skipped backend reached a compliance verdict.
    Success  bool          `json:"success"`
    Started  time.Time     `json:"started"`
    Duration time.Duration `json:"duration"`
}

// Ordered returns backend results in configured order.
func (r *Result) Ordered() []*backend.Result {
    out := make([]*backend.Result, 0, len(r.Order))
    for _, id := range r.Order {
        if br, ok := r.Backends[id]; ok {
            out = append(out, br)
        }
    }
    return out
}

// Run executes every backend against src and compares the artifacts. One
// backend's failure never stops its siblings. The only error is
// ErrNoUsableArtifact, returned together with the populated Result.
func (o *Orchestrator) Run(ctx context.Context, src Source, backends []backend.Backend) (*Result, error) {
    runID := uuid.NewString()
    res := &Result{
        RunID:    runID,
        Project:  src.Project,
        Source:   src.Path,
        OutDir:   src.OutDir,
        Backends: make(map[string]*backend.Result, len(backends)),
        Started:  time.Now(),
    }
    for _, b := range backends {
        res.Order = append(res.Order, b.ID)
    }
    ctx = WithRun(ctx, runID, src.Project)
    ctx, rl := logger.WithRun(ctx, runID, src.Project)
    rl.Info().Int("backends", len(backends)).Str("source", src.Path).Msg("project run started")

    job := backend.Job{Source: src.Path, OutDir: src.OutDir}
    results := o.runBackends(ctx, backends, job)
    for i, b := range backends {
        res.Backends[b.ID] = results[i]
        o.publishPages(ctx, runID, results[i])
        if rep := results[i].FinalReport(); rep != nil {
            metrics.SetMaxTAC(src.Project, b.ID, rep.MaxTAC)
        }
    }

    res.Success = true
    var cands []compare.Candidate
    for _, br := range res.Ordered() {
        if !br.Skipped && !br.Settled() {
            res.Success = false
        }
        if br.HasArtifact() {
            cands = append(cands, candidate(br))
        }
    }
    defer func() { res.Duration = time.Since(res.Started) }()

    if len(cands) == 0 {
        res.Success = false
        rl.Error().Msg("no backend produced an artifact")
        return res, ErrNoUsableArtifact
    }
    if o.deps.Compare != nil {
        res.Comparison = o.deps.Compare.Compare(ctx, cands)
    }

    ev := rl.Info().Bool("success", res.Success).Int("artifacts", len(cands))
    if res.Comparison != nil && res.Comparison.Ranking != nil {
        ev = ev.Str("winner", res.Comparison.Ranking.Winner).Bool("tie", res.Comparison.Ranking.Tie)
    }
    ev.Msg("project run finished")
    return res, nil
}

func (o *Orchestrator) runBackends(ctx context.Context, backends []backend.Backend, job backend.Job) []*backend.Result {
    results := make([]*backend.Result, len(backends))
    if o.deps.Parallel <= 1 {
        for i, b := range backends {
            results[i] = o.safeRun(ctx, b, job)
        }
        return results
    }

    sem := make(chan struct{}, o.deps.Parallel)
    var wg sync.WaitGroup
    for i, b := range backends {
        wg.Add(1)
        go func(i int, b backend.Backend) {
            defer wg.Done()
            sem <- struct{}{}
            defer func() { <-sem }()
            results[i] = o.safeRun(ctx, b, job)
        }(i, b)
    }
    wg.Wait()
    return results
}

// safeRun turns a panicking backend into a failed result.
func (o *Orchestrator) safeRun(ctx context.Context, b backend.Backend, job backend.Job) (res *backend.Result) {
    defer func() {
        if r := recover(); r != nil {
            logger.From(ctx).Error().Str(logger.FieldBackend, b.ID).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("backend run panicked")
            res = &backend.Result{
                Backend:    b.ID,
                State:      backend.StateBuildFailed,
                Trace:      []backend.State{backend.StatePending, backend.StateBuildFailed},
                BuildError: fmt.Sprintf("panic: %v", r),
            }
            metrics.IncBackendRun(b.ID, string(res.State))
        }
    }()
    if o.deps.Runner == nil {
        return &backend.Result{
            Backend:    b.ID,
            State:      backend.StateBuildFailed,
            Trace:      []backend.State{backend.StatePending, backend.StateBuildFailed},
            BuildError: "no backend runner configured",
        }
    }
    return o.deps.Runner.Run(ctx, b, job)
}

func (o *Orchestrator) publishPages(ctx context.Context, runID string, br *backend.Result) {
    if o.deps.Pages == nil || br.Remediation == nil {
        return
    }
    for _, p := range br.Remediation.Pages {
        if err := o.deps.Pages.SavePageOutcome(ctx, runID, br.Backend, p.Page, p.Outcome, p.Error); err != nil {
            logger.From(ctx).Warn().Err(err).Str(logger.FieldBackend, br.Backend).Msg("page outcome publish failed")
            return
        }
    }
}

func candidate(br *backend.Result) compare.Candidate {
    c := compare.Candidate{
        Backend:          br.Backend,
        Path:             br.Artifact(),
        Converted:        br.Converted(),
        Compliant:        br.Compliant,
        FontPreservation: br.FontPreservation,
        Report:           br.FinalReport(),
        Digest:           br.Digest,
        Size:             br.Size,
    }
    if c.Digest == "" {
        if d, size, err := backend.Digest(c.Path); err == nil {
            c.Digest, c.Size = d, size
        }
    }
    return c
}
