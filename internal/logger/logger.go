package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Correlation fields. Every event shipped to Axiom carries all three so that
// queries can group by them without checking for presence.
const (
    FieldRunID   = "run_id"
    FieldProject = "project"
    FieldBackend = "backend"
)

// Rotation configures the local log file.
type Rotation struct {
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomOptions enables shipping info-and-above events to an Axiom dataset.
type AxiomOptions struct {
    APIKey  string
    OrgID   string
    Dataset string
}

type Options struct {
    Level  string
    Pretty bool
    // File is the rotated JSON log; empty disables it.
    File     string
    Rotation Rotation
    // Axiom is nil when events stay local.
    Axiom *AxiomOptions
}

var shipper *axiomShipper

// Init installs the process logger. Console output goes to stderr so that
// -check and -measure can print JSON on stdout.
func Init(opts Options) error {
    writers := []io.Writer{}
    if opts.Pretty {
        writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
    } else {
        writers = append(writers, os.Stderr)
    }
    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return fmt.Errorf("create log dir: %w", err)
        }
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.Rotation.MaxSizeMB,
            MaxBackups: opts.Rotation.MaxBackups,
            MaxAge:     opts.Rotation.MaxAgeDays,
            Compress:   opts.Rotation.Compress,
        })
    }
    if opts.Axiom != nil && opts.Axiom.APIKey != "" {
        s, err := newAxiomShipper(*opts.Axiom)
        if err != nil {
            fmt.Fprintf(os.Stderr, "axiom shipping disabled: %v\n", err)
        } else {
            shipper = s
            writers = append(writers, &axiomWriter{send: s.send, min: zerolog.InfoLevel})
        }
    }

    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil || lvl == zerolog.NoLevel {
        lvl = zerolog.InfoLevel
    }
    zerolog.TimeFieldFormat = time.RFC3339Nano
    log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
    zerolog.DefaultContextLogger = &log.Logger
    return nil
}

// Close drains pending Axiom events. Safe to call more than once.
func Close() {
    if shipper != nil {
        shipper.close(10 * time.Second)
        shipper = nil
    }
}

// WithRun returns a ctx whose logger carries the run and project, and that
// logger.
func WithRun(ctx context.Context, runID, project string) (context.Context, *zerolog.Logger) {
    l := From(ctx).With().Str(FieldRunID, runID).Str(FieldProject, project).Logger()
    return l.WithContext(ctx), &l
}

// WithBackend narrows the ctx logger to one backend.
func WithBackend(ctx context.Context, backendID string) context.Context {
    l := From(ctx).With().Str(FieldBackend, backendID).Logger()
    return l.WithContext(ctx)
}

// From returns the ctx logger, or the process logger when none is attached.
func From(ctx context.Context) *zerolog.Logger {
    if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
        return l
    }
    return &log.Logger
}

// axiomWriter turns zerolog JSON lines into Axiom events. Events below min
// are dropped before decoding.
type axiomWriter struct {
    send func(axiom.Event)
    min  zerolog.Level
}

func (w *axiomWriter) Write(p []byte) (int, error) {
    return w.WriteLevel(zerolog.NoLevel, p)
}

func (w *axiomWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
    if level != zerolog.NoLevel && level < w.min {
        return len(p), nil
    }
    ev := axiom.Event{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = axiom.Event{zerolog.MessageFieldName: string(p)}
    }
    for _, k := range []string{FieldRunID, FieldProject, FieldBackend} {
        if _, ok := ev[k]; !ok {
            ev[k] = ""
        }
    }
    if ts, ok := ev[zerolog.TimestampFieldName]; ok {
        ev[ingest.TimestampField] = ts
        delete(ev, zerolog.TimestampFieldName)
    } else {
        ev[ingest.TimestampField] = time.Now().UTC()
    }
    w.send(ev)
    return len(p), nil
}

// axiomShipper feeds events to axiom-go's IngestChannel, which batches and
// flushes them every second.
type axiomShipper struct {
    mu     sync.RWMutex
    closed bool
    events chan axiom.Event
    done   chan struct{}
    cancel context.CancelFunc
}

func newAxiomShipper(opts AxiomOptions) (*axiomShipper, error) {
    clientOpts := []axiom.Option{axiom.SetToken(opts.APIKey)}
    if opts.OrgID != "" {
        clientOpts = append(clientOpts, axiom.SetOrganizationID(opts.OrgID))
    }
    client, err := axiom.NewClient(clientOpts...)
    if err != nil {
        return nil, err
    }
    dataset := opts.Dataset
    if dataset == "" {
        dataset = "inkbench"
    }
    ctx, cancel := context.WithCancel(context.Background())
    s := &axiomShipper{events: make(chan axiom.Event, 500), done: make(chan struct{}), cancel: cancel}
    go func() {
        defer close(s.done)
        if _, err := client.IngestChannel(ctx, dataset, s.events); err != nil && ctx.Err() == nil {
            fmt.Fprintf(os.Stderr, "axiom ingest stopped: %v\n", err)
        }
    }()
    return s, nil
}

// send never blocks a log call; events are dropped while the buffer is full.
func (s *axiomShipper) send(ev axiom.Event) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    if s.closed {
        return
    }
    select {
    case s.events <- ev:
    default:
    }
}

func (s *axiomShipper) close(wait time.Duration) {
    s.mu.Lock()
    s.closed = true
    close(s.events)
    s.mu.Unlock()
    select {
    case <-s.done:
    case <-time.After(wait):
    }
    s.cancel()
}
