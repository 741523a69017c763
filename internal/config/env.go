package config

import (
    "os"
    "runtime"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send    bool
    APIKey  string
    OrgID   string
    Dataset string
}

// WorkerConfig defines parallelism and per-stage timeouts.
type WorkerConfig struct {
    PageWorkers      int
    BackendParallel  int
    BuildTimeout     time.Duration
    ConvertTimeout   time.Duration
    MeasureTimeout   time.Duration
    RemediateTimeout time.Duration
    PageTimeout      time.Duration
    // CeilingOverride replaces the project's remediation ceiling when > 0.
    CeilingOverride float64
}

// StatusConfig enables publishing backend run status to Redis.
type StatusConfig struct {
    RedisURL string
    TTL      time.Duration
}

// MinioConfig holds MinIO connectivity.
type MinioConfig struct {
    Endpoint  string
    AccessKey string
    SecretKey string
    Bucket    string
    UseSSL    bool
}

// StorageConfig selects where finished project outputs are uploaded.
type StorageConfig struct {
    Sink     string // "none"|"s3"|"minio"
    Prefix   string
    S3Bucket string
    Minio    MinioConfig
}

// MetricsConfig controls Prometheus export.
type MetricsConfig struct {
    Textfile string
    // Addr serves /metrics while a batch runs when set, e.g. ":9108".
    Addr string
}

// Config is the top-level environment configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Worker  WorkerConfig
    Status  StatusConfig
    Storage StorageConfig
    Metrics MetricsConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/inkbench.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:    parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:  getEnv("AXIOM_API_KEY", ""),
        OrgID:   getEnv("AXIOM_ORG_ID", ""),
        Dataset: baseDataset + "_inkbench",
    }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        PageWorkers:      parseInt(getEnv("PAGE_WORKERS", ""), runtime.NumCPU()),
        BackendParallel:  parseInt(getEnv("BACKEND_PARALLEL", "1"), 1),
        BuildTimeout:     parseDuration(getEnv("BUILD_TIMEOUT", "5m"), 5*time.Minute),
        ConvertTimeout:   parseDuration(getEnv("CONVERT_TIMEOUT", "5m"), 5*time.Minute),
        MeasureTimeout:   parseDuration(getEnv("MEASURE_TIMEOUT", "3m"), 3*time.Minute),
        RemediateTimeout: parseDuration(getEnv("REMEDIATE_TIMEOUT", "30m"), 30*time.Minute),
        PageTimeout:      parseDuration(getEnv("PAGE_TIMEOUT", "2m"), 2*time.Minute),
        CeilingOverride:  parseFloat(getEnv("TAC_CEILING", ""), 0),
    }
    if cfg.Worker.PageWorkers <= 0 { cfg.Worker.PageWorkers = runtime.NumCPU() }
    if cfg.Worker.BackendParallel <= 0 { cfg.Worker.BackendParallel = 1 }

    // Status publishing is off unless a Redis URL is given
    cfg.Status = StatusConfig{
        RedisURL: getEnv("REDIS_URL", ""),
        TTL:      parseDuration(getEnv("STATUS_TTL", "168h"), 7*24*time.Hour),
    }

    cfg.Storage = StorageConfig{
        Sink:     strings.ToLower(getEnv("ARTIFACT_SINK", "none")),
        Prefix:   getEnv("ARTIFACT_PREFIX", "inkbench"),
        S3Bucket: getEnv("S3_BUCKET", ""),
        Minio: MinioConfig{
            Endpoint:  getEnv("MINIO_ENDPOINT", ""),
            AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
            SecretKey: getEnv("MINIO_SECRET_KEY", ""),
            Bucket:    getEnv("MINIO_BUCKET", ""),
            UseSSL:    parseBool(getEnv("MINIO_USE_SSL", "false")),
        },
    }

    cfg.Metrics = MetricsConfig{
        Textfile: getEnv("METRICS_TEXTFILE", ""),
        Addr:     getEnv("METRICS_ADDR", ""),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
