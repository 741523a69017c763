package main

import (
    "context"
    "encoding/json"
    "errors"
    "flag"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "path/filepath"
    "strings"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/inkbench/internal/backend"
    "github.com/local/inkbench/internal/compare"
    "github.com/local/inkbench/internal/compliance"
    cfgpkg "github.com/local/inkbench/internal/config"
    "github.com/local/inkbench/internal/converter"
    "github.com/local/inkbench/internal/filetype"
    "github.com/local/inkbench/internal/imagerender"
    "github.com/local/inkbench/internal/limiter"
    logpkg "github.com/local/inkbench/internal/logger"
    "github.com/local/inkbench/internal/metrics"
    "github.com/local/inkbench/internal/orchestrator"
    "github.com/local/inkbench/internal/pdfdoc"
    "github.com/local/inkbench/internal/remediation"
    "github.com/local/inkbench/internal/report"
    "github.com/local/inkbench/internal/statuscheck"
    "github.com/local/inkbench/internal/storage"
    "github.com/local/inkbench/internal/store"
    "github.com/local/inkbench/internal/tools"
)

func main() {
    configPath := flag.String("config", "", "project file (YAML); built-in defaults when empty")
    root := flag.String("root", ".", "directory holding one or more projects")
    check := flag.Bool("check", false, "print tool and service readiness, then exit")
    measure := flag.String("measure", "", "measure one PDF (path, file://, http(s):// or s3://) and exit")
    statusRun := flag.String("status", "", "print the published status of a run ID and exit")
    flag.Usage = func() {
        fmt.Fprintf(flag.CommandLine.Output(), "usage: inkbench [flags]\n\nbackend presets: %s\n\n", strings.Join(tools.PresetNames(), ", "))
        flag.PrintDefaults()
    }
    flag.Parse()

    // .env is optional
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    logOpts := logpkg.Options{
        Level:  cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File:   cfg.Logging.File,
        Rotation: logpkg.Rotation{
            MaxSizeMB:  cfg.Logging.MaxSizeMB,
            MaxBackups: cfg.Logging.MaxBackups,
            MaxAgeDays: cfg.Logging.MaxAgeDays,
            Compress:   cfg.Logging.Compress,
        },
    }
    if cfg.Axiom.Send {
        logOpts.Axiom = &logpkg.AxiomOptions{APIKey: cfg.Axiom.APIKey, OrgID: cfg.Axiom.OrgID, Dataset: cfg.Axiom.Dataset}
    }
    if err := logpkg.Init(logOpts); err != nil {
        fmt.Fprintf(os.Stderr, "logger: %v\n", err)
    }
    defer logpkg.Close()
    metrics.Init()

    proj := cfgpkg.DefaultProject()
    if *configPath != "" {
        p, err := cfgpkg.Load(*configPath)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to load project file")
        }
        proj = p
    }
    if cfg.Worker.CeilingOverride > 0 {
        proj.Remediation.Ceiling = cfg.Worker.CeilingOverride
    }
    profile, err := proj.ComplianceProfile()
    if err != nil {
        log.Fatal().Err(err).Msg("invalid compliance profile")
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    // Status store (optional)
    var rs *store.RedisStatus
    if cfg.Status.RedisURL != "" {
        rs, err = store.NewRedisStatus(cfg.Status.RedisURL, cfg.Status.TTL)
        if err != nil {
            log.Warn().Err(err).Msg("redis unavailable, run status will not be published")
            rs = nil
        } else {
            defer rs.Close()
        }
    }

    if *statusRun != "" {
        code := printStatus(ctx, rs, *statusRun)
        logpkg.Close()
        os.Exit(code)
    }

    // Collaborators
    gs := tools.NewGhostscript(proj.Tools.Ghostscript)
    lcms := tools.NewLittleCMS(proj.Tools.OutputProfile)
    wrap := tools.NewTiff2PDF()
    fonts := tools.NewPDFFonts()
    measurer := compliance.NewMeasurer(gs, profile)
    measurer.Timeout = cfg.Worker.MeasureTimeout

    if *measure != "" {
        code := measureOne(ctx, measurer, profile, *measure)
        logpkg.Close()
        os.Exit(code)
    }

    sink, checkOpts := outwardSurfaces(ctx, cfg, rs)
    backends, roles := buildBackends(proj)
    bins := map[string]string{
        "ghostscript": gs.Binary,
        "linkicc":     lcms.LinkICC,
        "tificc":      lcms.TifICC,
        "tiff2pdf":    wrap.Binary,
        "pdffonts":    fonts.Binary,
    }
    for role, bin := range roles {
        bins[role] = bin
    }
    checkOpts.Tools = bins
    sum := statuscheck.New(checkOpts).Summary(ctx)

    if *check {
        enc := json.NewEncoder(os.Stdout)
        enc.SetIndent("", "  ")
        _ = enc.Encode(sum)
        if len(sum.MissingTools()) > 0 {
            os.Exit(1)
        }
        return
    }

    for i := range backends {
        role := "backend:" + backends[i].ID
        if st, ok := sum.Tools[role]; ok && !st.OK && !backends[i].Skip {
            backends[i].Skip = true
            backends[i].SkipReason = roles[role] + " not installed"
        }
    }
    for _, role := range sum.MissingTools() {
        if !strings.HasPrefix(role, "backend:") {
            log.Warn().Str("tool", role).Str("binary", bins[role]).Msg("tool not installed")
        }
    }

    workDir := proj.Remediation.WorkDir
    if workDir == "" {
        workDir = filepath.Join(os.TempDir(), "inkbench")
    }
    pipeline := &remediation.Pipeline{
        Rasterizer:   gs,
        Remapper:     lcms,
        Wrapper:      wrap,
        Merger:       pdfdoc.Merger{},
        Extractor:    pdfdoc.Extractor{},
        Measurer:     measurer,
        Cache:        remediation.NewProfileCache(),
        ProfileDir:   filepath.Join(workDir, "profiles"),
        WorkDir:      workDir,
        Workers:      cfg.Worker.PageWorkers,
        StageTimeout: cfg.Worker.PageTimeout,
        StrictPages:  proj.Remediation.StrictPages,
    }

    detector := filetype.New()
    var statusStore orchestrator.StatusStore
    var pages orchestrator.PageStore
    if rs != nil {
        statusStore = orchestrator.NewStatusAdapter(rs)
        pages = store.NewPageStore(rs)
    }
    runner := &backend.Runner{
        Converter:      converter.NewPrintIntent(gs.Binary, proj.Tools.OutputProfile, cfg.Worker.BackendParallel),
        Measurer:       measurer,
        Remediator:     pipeline,
        Validator:      detector,
        Slots:          limiter.New(limiter.Options{Capacity: proj.Resources}),
        Observer:       orchestrator.StatusObserver(statusStore),
        Profile:        profile,
        Ceiling:        proj.Remediation.Ceiling,
        RemediationDPI: proj.Remediation.DPI,
        Timeouts: backend.Timeouts{
            Build:     cfg.Worker.BuildTimeout,
            Convert:   cfg.Worker.ConvertTimeout,
            Measure:   cfg.Worker.MeasureTimeout,
            Remediate: cfg.Worker.RemediateTimeout,
        },
    }
    engine := &compare.Engine{
        Profile:            profile,
        Inspector:          pdfdoc.NewInspector(fonts),
        Renderer:           imagerender.NewFitzRenderer(imagerender.ColorRGB),
        Differ:             imagerender.PixelDiffer{},
        DiffDPI:            proj.Compare.DiffDPI,
        DiffPixelThreshold: proj.Compare.DiffThreshold,
        TACTolerance:       proj.Compare.TACTolerance,
        SizeTolerance:      proj.Compare.SizeTolerance,
    }
    orch := orchestrator.New(orchestrator.Dependencies{
        Runner:   runner,
        Compare:  engine,
        Pages:    pages,
        Parallel: cfg.Worker.BackendParallel,
    })

    batch := &orchestrator.Batch{
        Runner:     orch,
        Backends:   backends,
        Reports:    report.NewWriter(profile),
        Detector:   detector,
        Entry:      proj.Entry,
        OutputDir:  proj.OutputDir,
        Sink:       sink,
        SinkPrefix: cfg.Storage.Prefix,
    }

    if cfg.Metrics.Addr != "" {
        mux := http.NewServeMux()
        mux.Handle("/metrics", metrics.Handler())
        srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
        go func() {
            log.Info().Msgf("metrics listening on %s", cfg.Metrics.Addr)
            if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
                log.Error().Err(err).Msg("metrics server error")
            }
        }()
        defer func() {
            sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
            defer cancel()
            _ = srv.Shutdown(sctx)
        }()
    }

    rootDir, err := filepath.Abs(*root)
    if err != nil {
        log.Fatal().Err(err).Str("root", *root).Msg("invalid root")
    }
    result, err := batch.Run(ctx, rootDir)
    if cfg.Metrics.Textfile != "" {
        if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
            log.Warn().Err(werr).Str("path", cfg.Metrics.Textfile).Msg("metrics export failed")
        }
    }
    if err != nil {
        log.Error().Err(err).Str("root", rootDir).Msg("batch failed")
        logpkg.Close()
        os.Exit(1)
    }
    fmt.Printf("%d project(s): %d succeeded, %d failed\n", len(result.Projects), result.Succeeded, result.Failed)
    if result.Failed > 0 {
        logpkg.Close()
        os.Exit(2)
    }
}

// buildBackends turns the project's backend list into runnable backends and
// the binary each one needs, keyed "backend:<id>".
func buildBackends(proj *cfgpkg.Project) ([]backend.Backend, map[string]string) {
    roles := map[string]string{}
    out := make([]backend.Backend, 0, len(proj.Backends))
    for _, bc := range proj.Backends {
        b := backend.Backend{ID: bc.ID, Resource: bc.Resource, Skip: bc.Skip, SkipReason: bc.SkipReason}
        r, err := tools.NewCommandRenderer(bc.Argv())
        if err != nil {
            b.Skip = true
            b.SkipReason = err.Error()
        } else {
            b.Renderer = r
            roles["backend:"+bc.ID] = r.Argv[0]
        }
        out = append(out, b)
    }
    return out, roles
}

// outwardSurfaces connects the configured artifact sink and returns the
// checker options for the services in use.
func outwardSurfaces(ctx context.Context, cfg cfgpkg.Config, rs *store.RedisStatus) (storage.ArtifactSink, statuscheck.Options) {
    var opts statuscheck.Options
    if rs != nil {
        opts.Redis = rs
    }
    switch cfg.Storage.Sink {
    case "s3":
        s3, err := storage.NewS3Sink(ctx, cfg.Storage.S3Bucket)
        if err != nil {
            log.Warn().Err(err).Msg("s3 sink unavailable, outputs stay local")
            return nil, opts
        }
        opts.S3Bucket = cfg.Storage.S3Bucket
        return s3, opts
    case "minio":
        m := cfg.Storage.Minio
        ms, err := storage.NewMinioSink(storage.MinioOptions{
            Endpoint: m.Endpoint, AccessKey: m.AccessKey, SecretKey: m.SecretKey, Bucket: m.Bucket, UseSSL: m.UseSSL,
        })
        if err == nil {
            err = ms.EnsureBucket(ctx)
        }
        if err != nil {
            log.Warn().Err(err).Msg("minio sink unavailable, outputs stay local")
            return nil, opts
        }
        opts.Minio = ms
        opts.MinioBucket = ms.Bucket()
        return ms, opts
    case "", "none":
        return nil, opts
    default:
        log.Warn().Str("sink", cfg.Storage.Sink).Msg("unknown artifact sink, outputs stay local")
        return nil, opts
    }
}

// measureOne prints the ink coverage report of a single document. The exit
// code is 0 when compliant, 1 when not, 3 when measurement failed.
func measureOne(ctx context.Context, m *compliance.Measurer, profile compliance.Profile, ref string) int {
    path, cleanup, err := pdfdoc.Localize(ctx, ref)
    if err != nil {
        log.Error().Err(err).Str("ref", ref).Msg("cannot open document")
        return 3
    }
    defer cleanup()

    pages, err := pdfdoc.PageCount(ctx, path)
    if err != nil {
        log.Warn().Err(err).Str("path", path).Msg("page count unavailable")
    }
    rep, err := m.Measure(ctx, path)
    if err != nil {
        if tools.IsMissingTool(err) {
            log.Error().Err(err).Msg("ghostscript is not installed")
        } else {
            log.Error().Err(err).Str("path", path).Msg("measurement failed")
        }
        return 3
    }
    if pages > 0 && pages != rep.PageCount() {
        log.Warn().Int("pdf_pages", pages).Int("measured_pages", rep.PageCount()).Msg("page count mismatch")
    }
    fmt.Println(rep.String())
    if !rep.Compliant(profile) {
        return 1
    }
    return 0
}

// printStatus prints every backend status published for runID, with
// per-page remediation outcomes when any were recorded.
func printStatus(ctx context.Context, rs *store.RedisStatus, runID string) int {
    if rs == nil {
        log.Error().Msg("REDIS_URL is not set or redis is unreachable")
        return 1
    }
    ids, err := rs.Backends(ctx, runID)
    if err != nil {
        log.Error().Err(err).Str("run_id", runID).Msg("cannot list backends")
        return 1
    }
    if len(ids) == 0 {
        fmt.Printf("run %s: no status published\n", runID)
        return 1
    }
    ps := store.NewPageStore(rs)
    for _, id := range ids {
        st, ok, err := rs.Get(ctx, runID, id)
        if err != nil || !ok {
            fmt.Printf("%-12s unavailable\n", id)
            continue
        }
        fmt.Printf("%-12s %-20s %s\n", id, st.State, st.Message)
        n, _ := st.Metadata["pages"].(float64)
        if n <= 0 {
            continue
        }
        outcomes, err := ps.PageOutcomes(ctx, runID, id, int(n))
        if err != nil {
            continue
        }
        for i, o := range outcomes {
            if o != "" {
                fmt.Printf("    page %d: %s\n", i+1, o)
            }
        }
    }
    return 0
}
