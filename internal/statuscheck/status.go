package statuscheck

import (
    "context"
    "errors"
    "os/exec"
    "sort"
    "time"

    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/service/s3"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// BucketChecker models the minimal MinIO capability we need for status checks.
type BucketChecker interface {
    BucketExists(ctx context.Context, bucket string) (bool, error)
}

// Checker aggregates preflight checks for external tools and outward surfaces.
type Checker struct {
    redis       RedisPinger
    s3Bucket    string
    minio       BucketChecker
    minioBucket string
    tools       map[string]string
    lookPath    func(string) (string, error)
}

// Options configures the Checker.
type Options struct {
    Redis       RedisPinger
    S3Bucket    string
    Minio       BucketChecker
    MinioBucket string
    // Tools maps a role ("ghostscript", "backend:prince") to its binary.
    Tools map[string]string
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis Status            `json:"redis"`
    S3    Status            `json:"s3"`
    Minio Status            `json:"minio"`
    Tools map[string]Status `json:"tools"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    tools := make(map[string]string, len(opts.Tools))
    for k, v := range opts.Tools {
        tools[k] = v
    }
    return &Checker{
        redis:       opts.Redis,
        s3Bucket:    opts.S3Bucket,
        minio:       opts.Minio,
        minioBucket: opts.MinioBucket,
        tools:       tools,
        lookPath:    exec.LookPath,
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis: c.checkRedis(ctx),
        S3:    c.checkS3(ctx),
        Minio: c.checkMinio(ctx),
        Tools: c.checkTools(),
    }
}

// MissingTools returns the sorted roles whose binary is not installed.
func (s Summary) MissingTools() []string {
    var out []string
    for role, st := range s.Tools {
        if !st.OK {
            out = append(out, role)
        }
    }
    sort.Strings(out)
    return out
}

// Tool reports the status of a single role.
func (c *Checker) Tool(role string) Status {
    bin, ok := c.tools[role]
    if !ok {
        return Status{OK: false, Message: "Not configured"}
    }
    return c.checkBinary(bin)
}

func (c *Checker) checkTools() map[string]Status {
    out := make(map[string]Status, len(c.tools))
    for role, bin := range c.tools {
        out[role] = c.checkBinary(bin)
    }
    return out
}

func (c *Checker) checkBinary(bin string) Status {
    path, err := c.lookPath(bin)
    if err != nil {
        return Status{OK: false, Message: "Binary not found: " + bin}
    }
    return Status{OK: true, Message: path}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "Not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
    if c.s3Bucket == "" {
        return Status{OK: false, Message: "Bucket not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    cfg, err := awscfg.LoadDefaultConfig(ctx)
    if err != nil {
        return Status{OK: false, Message: err.Error()}
    }
    cli := s3.NewFromConfig(cfg)
    _, err = cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket})
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkMinio(ctx context.Context) Status {
    if c.minio == nil || c.minioBucket == "" {
        return Status{OK: false, Message: "Not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    ok, err := c.minio.BucketExists(ctx, c.minioBucket)
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    if !ok {
        return Status{OK: false, Message: "Bucket missing"}
    }
    return Status{OK: true, Message: "Connected"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
