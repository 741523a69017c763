package orchestrator

import (
    "context"
    "errors"
    "fmt"
    "io/fs"
    "os"
    "path/filepath"
    "runtime/debug"
    "sort"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/inkbench/internal/backend"
    "github.com/local/inkbench/internal/metrics"
    "github.com/local/inkbench/internal/storage"
)

// ErrNoProjects means discovery found no project under the batch root.
var ErrNoProjects = errors.New("no projects found")

type ProjectRunner interface {
    Run(ctx context.Context, src Source, backends []backend.Backend) (*Result, error)
}

// ReportWriter renders project and batch reports.
type ReportWriter interface {
    WriteProject(dir string, res *Result) error
    WriteSummary(dir string, sum *Summary) error
}

// SourceDetector tells whether an entry file is really an HTML document.
type SourceDetector interface {
    IsHTML(path string) bool
}

// Batch runs the orchestrator over every project under a root.
type Batch struct {
    Runner   ProjectRunner
    Backends []backend.Backend
    Reports  ReportWriter
    Detector SourceDetector
    // Sink, when set, receives every project's output directory.
    Sink       storage.ArtifactSink
    SinkPrefix string

    // Entry is the file that marks a project directory. Default index.html.
    Entry string
    // OutputDir is the per-project output directory name. Default inkbench-out.
    OutputDir string
}

// BackendSummary is one backend's line in the batch summary.
type BackendSummary struct {
    Backend   string  `json:"backend"`
    State     string  `json:"state"`
    Compliant bool    `json:"compliant"`
    MaxTAC    float64 `json:"max_tac,omitempty"`
    Score     float64 `json:"score,omitempty"`
    Reason    string  `json:"reason,omitempty"`
}

// ProjectSummary is one project's line in the batch summary.
type ProjectSummary struct {
    Name     string           `json:"name"`
    Dir      string           `json:"dir"`
    RunID    string           `json:"run_id,omitempty"`
    Success  bool             `json:"success"`
    Error    string           `json:"error,omitempty"`
    Winner   string           `json:"winner,omitempty"`
    Tied     []string         `json:"tied,omitempty"`
    Backends []BackendSummary `json:"backends,omitempty"`
    Uploaded int              `json:"uploaded,omitempty"`
    Warnings []string         `json:"warnings,omitempty"`
    Duration time.Duration    `json:"duration"`
}

// Summary is the batch outcome.
type Summary struct {
    Root      string           `json:"root"`
    Projects  []ProjectSummary `json:"projects"`
    Succeeded int              `json:"succeeded"`
    Failed    int              `json:"failed"`
    Started   time.Time        `json:"started"`
    Duration  time.Duration    `json:"duration"`
}

func (b *Batch) entry() string {
    if b.Entry == "" { return "index.html" }
    return b.Entry
}

func (b *Batch) outputDir() string {
    if b.OutputDir == "" { return "inkbench-out" }
    return b.OutputDir
}

// Run processes every discovered project. A failing or panicking project
// is recorded and the batch moves on. The error is non-nil only when the
// root cannot be scanned or holds no project.
func (b *Batch) Run(ctx context.Context, root string) (*Summary, error) {
    sum := &Summary{Root: root, Started: time.Now()}
    defer func() { sum.Duration = time.Since(sum.Started) }()

    dirs, err := Discover(root, b.entry(), b.outputDir())
    if err != nil {
        return sum, fmt.Errorf("discover projects: %w", err)
    }
    if len(dirs) == 0 {
        return sum, fmt.Errorf("%w under %s", ErrNoProjects, root)
    }
    log.Info().Str("root", root).Int("projects", len(dirs)).Msg("batch started")

    for _, dir := range dirs {
        if err := ctx.Err(); err != nil {
            sum.Projects = append(sum.Projects, ProjectSummary{Name: projectName(root, dir), Dir: dir, Error: err.Error()})
            sum.Failed++
            continue
        }
        ps := b.runProject(ctx, root, dir)
        if ps.Success {
            sum.Succeeded++
        } else {
            sum.Failed++
        }
        metrics.IncProject(ps.Success)
        sum.Projects = append(sum.Projects, ps)
    }

    if b.Reports != nil {
        if err := b.Reports.WriteSummary(root, sum); err != nil {
            log.Error().Err(err).Str("root", root).Msg("write batch summary failed")
        }
    }
    log.Info().Int("succeeded", sum.Succeeded).Int("failed", sum.Failed).Msg("batch finished")
    return sum, nil
}

func (b *Batch) runProject(ctx context.Context, root, dir string) (ps ProjectSummary) {
    start := time.Now()
    ps = ProjectSummary{Name: projectName(root, dir), Dir: dir}
    defer func() {
        if r := recover(); r != nil {
            log.Error().Str("project", ps.Name).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("project panicked")
            ps.Success = false
            ps.Error = fmt.Sprintf("panic: %v", r)
        }
        ps.Duration = time.Since(start)
    }()

    src := Source{
        Project: ps.Name,
        Path:    filepath.Join(dir, b.entry()),
        OutDir:  filepath.Join(dir, b.outputDir()),
    }
    if b.Detector != nil && !b.Detector.IsHTML(src.Path) {
        ps.Error = fmt.Sprintf("%s is not an HTML document", b.entry())
        return ps
    }
    if err := os.MkdirAll(src.OutDir, 0o755); err != nil {
        ps.Error = err.Error()
        return ps
    }

    res, err := b.Runner.Run(ctx, src, b.Backends)
    if res != nil {
        b.fill(&ps, res)
        if b.Reports != nil {
            if werr := b.Reports.WriteProject(src.OutDir, res); werr != nil {
                ps.Warnings = append(ps.Warnings, "report: "+werr.Error())
            }
        }
    }
    if err != nil {
        ps.Success = false
        ps.Error = err.Error()
    }

    if b.Sink != nil {
        prefix := storage.ObjectKey(b.SinkPrefix, ps.Name)
        if res != nil {
            prefix = storage.ObjectKey(prefix, res.RunID)
        }
        keys, uerr := storage.PublishDir(ctx, b.Sink, prefix, src.OutDir)
        ps.Uploaded = len(keys)
        if uerr != nil {
            ps.Warnings = append(ps.Warnings, "upload: "+uerr.Error())
        }
    }
    return ps
}

func (b *Batch) fill(ps *ProjectSummary, res *Result) {
    ps.RunID = res.RunID
    ps.Success = res.Success
    if res.Comparison != nil && res.Comparison.Ranking != nil {
        ps.Winner = res.Comparison.Ranking.Winner
        ps.Tied = res.Comparison.Ranking.Tied
    }
    for _, br := range res.Ordered() {
        bs := BackendSummary{
            Backend:   br.Backend,
            State:     string(br.State),
            Compliant: br.Compliant,
            Reason:    br.Reason(),
        }
        if rep := br.FinalReport(); rep != nil {
            bs.MaxTAC = rep.MaxTAC
        }
        if res.Comparison != nil {
            if s := res.Comparison.Ranking.ScoreOf(br.Backend); s != nil {
                bs.Score = s.Score
            }
        }
        ps.Backends = append(ps.Backends, bs)
    }
}

// Discover returns project directories under root in lexical order. A
// directory is a project when it holds entry; the root counts too. A
// project's subdirectories are not searched, nor are hidden directories or
// directories named outputDir.
func Discover(root, entry, outputDir string) ([]string, error) {
    info, err := os.Stat(root)
    if err != nil {
        return nil, err
    }
    if !info.IsDir() {
        return nil, fmt.Errorf("%s is not a directory", root)
    }

    var dirs []string
    err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
        if err != nil {
            return err
        }
        if !d.IsDir() {
            return nil
        }
        name := d.Name()
        if p != root && (strings.HasPrefix(name, ".") || name == outputDir || name == "node_modules") {
            return filepath.SkipDir
        }
        if fi, err := os.Stat(filepath.Join(p, entry)); err == nil && fi.Mode().IsRegular() {
            dirs = append(dirs, p)
            return filepath.SkipDir
        }
        return nil
    })
    if err != nil {
        return nil, err
    }
    sort.Strings(dirs)
    return dirs, nil
}

func projectName(root, dir string) string {
    rel, err := filepath.Rel(root, dir)
    if err != nil || rel == "." {
        return filepath.Base(filepath.Clean(root))
    }
    return filepath.ToSlash(rel)
}
