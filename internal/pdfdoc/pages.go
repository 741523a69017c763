package pdfdoc

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strconv"
    "strings"

    "github.com/pdfcpu/pdfcpu/pkg/api"
    "github.com/rs/zerolog/log"

    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/service/s3"

    "github.com/local/inkbench/internal/compare"
)

// PageCount returns the number of pages for a PDF referenced by ref.
// Supports:
// - file://path or absolute/relative filesystem paths
// - http(s):// URLs (downloads to temp)
// - s3://bucket/key (downloads to temp via AWS SDK v2)
func PageCount(ctx context.Context, ref string) (int, error) {
    localPath, cleanup, err := Localize(ctx, ref)
    if err != nil {
        return 0, err
    }
    defer cleanup()

    n, err := api.PageCountFile(localPath)
    if err != nil {
        return 0, fmt.Errorf("pdf page count failed: %w", err)
    }
    return n, nil
}

// Localize resolves ref to a local file, downloading remote references to
// a temp file that cleanup removes.
func Localize(ctx context.Context, ref string) (string, func(), error) {
    // Strip optional #page fragment if present
    if i := strings.Index(ref, "#"); i >= 0 {
        ref = ref[:i]
    }
    noop := func() {}

    var localPath string
    var err error
    switch {
    case strings.HasPrefix(ref, "s3://"):
        localPath, err = downloadS3ToTemp(ctx, ref)
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        localPath, err = downloadHTTPToTemp(ctx, ref)
    case strings.HasPrefix(ref, "file://"):
        return strings.TrimPrefix(ref, "file://"), noop, nil
    default:
        return ref, noop, nil
    }
    if err != nil {
        return "", noop, err
    }
    return localPath, func() { os.Remove(localPath) }, nil
}

// PageSizes returns every page's media box in points.
func PageSizes(path string) ([]compare.PageSize, error) {
    dims, err := api.PageDimsFile(path)
    if err != nil {
        return nil, fmt.Errorf("pdf page dimensions failed: %w", err)
    }
    out := make([]compare.PageSize, len(dims))
    for i, d := range dims {
        out[i] = compare.PageSize{Width: d.Width, Height: d.Height}
    }
    return out, nil
}

// Merger concatenates PDFs with pdfcpu.
type Merger struct{}

// Concat implements remediation.DocumentMerge.
func (Merger) Concat(ctx context.Context, fragments []string, out string) error {
    if len(fragments) == 0 {
        return fmt.Errorf("merge: no fragments")
    }
    if err := ctx.Err(); err != nil {
        return err
    }
    if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
        return err
    }
    if len(fragments) == 1 {
        return copyFile(fragments[0], out)
    }
    if err := api.MergeCreateFile(fragments, out, false, nil); err != nil {
        return fmt.Errorf("merge %d fragments: %w", len(fragments), err)
    }
    log.Debug().Int("fragments", len(fragments)).Str("output", out).Msg("merged pdf fragments")
    return nil
}

// Extractor copies single pages out of a PDF with pdfcpu.
type Extractor struct{}

// Extract implements remediation.PageExtractor. page is 1-based.
func (Extractor) Extract(ctx context.Context, document string, page int, out string) error {
    if page < 1 {
        return fmt.Errorf("extract: invalid page %d", page)
    }
    if err := ctx.Err(); err != nil {
        return err
    }
    if err := api.TrimFile(document, out, []string{strconv.Itoa(page)}, nil); err != nil {
        return fmt.Errorf("extract page %d: %w", page, err)
    }
    return nil
}

func copyFile(src, dst string) error {
    in, err := os.Open(src)
    if err != nil {
        return err
    }
    defer in.Close()
    out, err := os.Create(dst)
    if err != nil {
        return err
    }
    if _, err := io.Copy(out, in); err != nil {
        out.Close()
        return err
    }
    return out.Close()
}

func downloadHTTPToTemp(ctx context.Context, url string) (string, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return "", err }
    resp, err := http.DefaultClient.Do(req)
    if err != nil { return "", err }
    defer resp.Body.Close()
    if resp.StatusCode != 200 { return "", fmt.Errorf("http %d", resp.StatusCode) }
    f, err := os.CreateTemp("", "pdfdl-*.pdf")
    if err != nil { return "", err }
    defer f.Close()
    if _, err := io.Copy(f, resp.Body); err != nil { return "", err }
    return f.Name(), nil
}

func downloadS3ToTemp(ctx context.Context, s3url string) (string, error) {
    // s3://bucket/key
    path := strings.TrimPrefix(s3url, "s3://")
    slash := strings.Index(path, "/")
    if slash <= 0 { return "", fmt.Errorf("invalid s3 url: %s", s3url) }
    bucket := path[:slash]
    key := path[slash+1:]

    cfg, err := awscfg.LoadDefaultConfig(ctx)
    if err != nil { return "", err }
    cli := s3.NewFromConfig(cfg)

    out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
    if err != nil { return "", err }
    defer out.Body.Close()

    // Ensure .pdf extension for pdfcpu expectations
    f, err := os.CreateTemp("", "s3pdf-*.pdf")
    if err != nil { return "", err }
    defer f.Close()
    if _, err := io.Copy(f, out.Body); err != nil { return "", err }
    log.Info().Str("bucket", bucket).Str("key", key).Str("file", filepath.Base(f.Name())).Msg("downloaded s3 pdf to temp")
    return f.Name(), nil
}
