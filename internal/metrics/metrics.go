package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inkbench"

var (
    backendRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "backend_runs_total",
            Help:      "Backend runs by backend and terminal state",
        },
        []string{"backend", "state"},
    )

    stageLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "stage_duration_seconds",
            Help:      "Duration of backend run stages (build, convert, measure, remediate)",
            Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
        },
        []string{"backend", "stage"},
    )

    remediationPages = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "remediation_pages_total",
            Help:      "Remediated pages by outcome (remapped, unmodified-raster, original-page, failed)",
        },
        []string{"outcome"},
    )

    profileBuilds = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "remediation_profile_builds_total",
            Help:      "Device-link profile builds by result",
        },
        []string{"result"},
    )

    maxTAC = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: namespace,
            Name:      "max_tac_percent",
            Help:      "Final max TAC per project and backend",
        },
        []string{"project", "backend"},
    )

    projects = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "projects_total",
            Help:      "Batch projects by result (ok, failed)",
        },
        []string{"result"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(backendRuns, stageLatency, remediationPages, profileBuilds, maxTAC, projects)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
    return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

func ObserveStage(backend, stage string, dur time.Duration) {
    stageLatency.WithLabelValues(backend, stage).Observe(dur.Seconds())
}

func IncBackendRun(backend, state string) { backendRuns.WithLabelValues(backend, state).Inc() }
func IncRemediationPage(outcome string)    { remediationPages.WithLabelValues(outcome).Inc() }
func IncProfileBuild(result string)        { profileBuilds.WithLabelValues(result).Inc() }
func IncProject(ok bool)                   { projects.WithLabelValues(okToStr(ok)).Inc() }

func SetMaxTAC(project, backend string, v float64) { maxTAC.WithLabelValues(project, backend).Set(v) }

func okToStr(ok bool) string { if ok { return "ok" }; return "failed" }
