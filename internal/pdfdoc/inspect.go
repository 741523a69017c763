package pdfdoc

import (
    "bufio"
    "context"
    "errors"
    "fmt"
    "os"
    "regexp"

    "github.com/rs/zerolog/log"

    "github.com/local/inkbench/internal/compare"
)

// Doc abstracts an open PDF for metadata reads.
type Doc interface {
    NumPage() int
    Metadata() map[string]string
    Close() error
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
    Open(path string) (Doc, error)
}

// FontLister reports font totals for a document.
type FontLister interface {
    Fonts(ctx context.Context, document string) (total, embedded int, err error)
}

// Inspector implements compare.Inspector. Page geometry comes from pdfcpu,
// the format version from the Opener (go-fitz by default) and the font
// inventory from Fonts.
type Inspector struct {
    Opener Opener
    Fonts  FontLister
}

// NewInspector returns an Inspector backed by go-fitz and fonts.
func NewInspector(fonts FontLister) *Inspector {
    return &Inspector{Opener: FitzOpener{}, Fonts: fonts}
}

// Inspect returns whatever features it could read. A partial read returns
// the partial Features together with the joined errors.
func (i *Inspector) Inspect(ctx context.Context, path string) (compare.Features, error) {
    var f compare.Features
    var errs []error

    info, err := os.Stat(path)
    if err != nil {
        return f, err
    }
    f.Size = info.Size()

    sizes, err := PageSizes(path)
    if err != nil {
        errs = append(errs, err)
    } else {
        f.PageSizes = sizes
        f.PageCount = len(sizes)
    }

    f.Version = i.version(path)

    f.FontsTotal = -1
    if i.Fonts != nil {
        total, embedded, err := i.Fonts.Fonts(ctx, path)
        if err != nil {
            errs = append(errs, fmt.Errorf("fonts: %w", err))
        } else {
            f.FontsTotal, f.FontsEmbedded = total, embedded
        }
    }

    log.Debug().
        Str("path", path).
        Int("pages", f.PageCount).
        Str("version", f.Version).
        Int("fonts", f.FontsTotal).
        Msg("inspected artifact")
    return f, errors.Join(errs...)
}

var formatVersion = regexp.MustCompile(`(\d+\.\d+)`)

// version reads the format version from document metadata, falling back to
// the file header. Empty means unreadable.
func (i *Inspector) version(path string) string {
    if i.Opener != nil {
        if d, err := i.Opener.Open(path); err == nil {
            defer d.Close()
            if m := formatVersion.FindString(d.Metadata()["format"]); m != "" {
                return m
            }
        }
    }
    return HeaderVersion(path)
}

var headerVersion = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// HeaderVersion returns the version in the %PDF-x.y header, or "".
func HeaderVersion(path string) string {
    fh, err := os.Open(path)
    if err != nil {
        return ""
    }
    defer fh.Close()
    buf := make([]byte, 1024)
    n, _ := bufio.NewReader(fh).Read(buf)
    if m := headerVersion.FindSubmatch(buf[:n]); m != nil {
        return string(m[1])
    }
    return ""
}
