package statuscheck

import (
    "context"
    "errors"
    "os/exec"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type bucket struct {
    ok  bool
    err error
}

func (b bucket) BucketExists(context.Context, string) (bool, error) { return b.ok, b.err }

func fakeLookPath(installed ...string) func(string) (string, error) {
    return func(bin string) (string, error) {
        for _, i := range installed {
            if i == bin {
                return "/usr/bin/" + bin, nil
            }
        }
        return "", exec.ErrNotFound
    }
}

func TestToolsSummary(t *testing.T) {
    c := New(Options{Tools: map[string]string{
        "ghostscript":        "gs",
        "linkicc":            "linkicc",
        "backend:weasyprint": "weasyprint",
    }})
    c.lookPath = fakeLookPath("gs")

    s := c.Summary(context.Background())
    assert.True(t, s.Tools["ghostscript"].OK)
    assert.Equal(t, "/usr/bin/gs", s.Tools["ghostscript"].Message)
    assert.Equal(t, []string{"backend:weasyprint", "linkicc"}, s.MissingTools())
    assert.False(t, c.Tool("tificc").OK)
}

func TestOutwardSurfaces(t *testing.T) {
    s := New(Options{}).Summary(context.Background())
    assert.Equal(t, "Not configured", s.Redis.Message)
    assert.Equal(t, "Bucket not configured", s.S3.Message)
    assert.Equal(t, "Not configured", s.Minio.Message)

    c := New(Options{Redis: pinger{}, Minio: bucket{ok: true}, MinioBucket: "books"})
    s = c.Summary(context.Background())
    assert.True(t, s.Redis.OK)
    assert.True(t, s.Minio.OK)

    c = New(Options{Redis: pinger{err: errors.New(strings.Repeat("x", 200))}, Minio: bucket{}, MinioBucket: "books"})
    s = c.Summary(context.Background())
    assert.False(t, s.Redis.OK)
    assert.Len(t, s.Redis.Message, 120)
    assert.Equal(t, "Bucket missing", s.Minio.Message)
}
