package imagerender

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// FitzRenderer renders PDF pages with MuPDF. MuPDF contexts are not safe
// for concurrent use, so renders are serialized.
type FitzRenderer struct {
	Mode ColorMode
	mu   sync.Mutex
}

// NewFitzRenderer returns a renderer producing images in mode.
func NewFitzRenderer(mode ColorMode) *FitzRenderer {
	return &FitzRenderer{Mode: mode}
}

// Render renders a 1-based page at dpi.
func (r *FitzRenderer) Render(ctx context.Context, pdfPath string, pageNum, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1-%d)", pageNum, doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	log.Debug().
		Str("path", pdfPath).
		Int("page", pageNum).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Str("color", string(r.Mode)).
		Msg("rendered page")

	if r.Mode == ColorGray {
		grayImg := image.NewGray(bounds)
		draw.Draw(grayImg, bounds, img, bounds.Min, draw.Src)
		return grayImg, nil
	}
	return img, nil
}
