package tools

import (
	"context"

	"github.com/local/inkbench/internal/remediation"
)

// Tiff2PDF wraps a TIFF raster into a single-page PDF.
type Tiff2PDF struct {
	Binary string
}

func NewTiff2PDF() *Tiff2PDF { return &Tiff2PDF{Binary: "tiff2pdf"} }

func (t *Tiff2PDF) Available(ctx context.Context) error { return Available(t.Binary) }

// Wrap implements remediation.RasterToDocument.
func (t *Tiff2PDF) Wrap(ctx context.Context, r remediation.Raster, out string) error {
	_, err := Run(ctx, t.Binary, "-z", "-o", out, r.Path)
	return err
}
