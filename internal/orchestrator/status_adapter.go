package orchestrator

import (
    "context"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/inkbench/internal/backend"
    "github.com/local/inkbench/internal/store"
)

// Status is the published state of one backend run.
type Status struct {
    State    string
    Message  string
    Start    *time.Time
    End      *time.Time
    Metadata map[string]any
}

type StatusStore interface {
    Set(ctx context.Context, runID, backend string, st Status) error
}

type PageStore interface {
    SavePageOutcome(ctx context.Context, runID, backend string, page int, outcome, errMsg string) error
}

type runKey struct{}

type runInfo struct{ id, project string }

// WithRun attaches the run ID and project name to ctx.
func WithRun(ctx context.Context, runID, project string) context.Context {
    return context.WithValue(ctx, runKey{}, runInfo{id: runID, project: project})
}

// RunFrom returns the run ID and project attached by WithRun.
func RunFrom(ctx context.Context) (runID, project string, ok bool) {
    ri, ok := ctx.Value(runKey{}).(runInfo)
    return ri.id, ri.project, ok
}

// StatusObserver publishes every backend state transition to st. Runs
// without a run ID in ctx are not published. Publish errors are logged,
// never surfaced to the run.
func StatusObserver(st StatusStore) backend.Observer {
    return func(ctx context.Context, res *backend.Result) {
        runID, project, ok := RunFrom(ctx)
        if !ok || st == nil {
            return
        }
        start := res.Started
        s := Status{
            State:   string(res.State),
            Message: res.Reason(),
            Start:   &start,
            Metadata: map[string]any{
                "project":           project,
                "compliant":         res.Compliant,
                "font_preservation": res.FontPreservation,
            },
        }
        if rep := res.FinalReport(); rep != nil {
            s.Metadata["max_tac"] = rep.MaxTAC
            s.Metadata["pages"] = len(rep.Pages)
        }
        if res.State.Terminal() {
            end := time.Now()
            s.End = &end
        }
        if err := st.Set(ctx, runID, res.Backend, s); err != nil {
            log.Warn().Err(err).Str("run_id", runID).Str("backend", res.Backend).Msg("status publish failed")
        }
    }
}

type redisStatusAdapter struct { s *store.RedisStatus }

func NewStatusAdapter(s *store.RedisStatus) StatusStore { return &redisStatusAdapter{s: s} }

func (a *redisStatusAdapter) Set(ctx context.Context, runID, backendID string, st Status) error {
    m := make(map[string]interface{})
    if st.Metadata != nil { m = st.Metadata }
    return a.s.Set(ctx, runID, backendID, store.Status{
        State: st.State,
        Message: st.Message,
        Start: st.Start,
        End: st.End,
        Metadata: m,
    })
}
