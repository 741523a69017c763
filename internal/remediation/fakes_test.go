package remediation

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/local/inkbench/internal/compliance"
)

// world is an in-memory stand-in for the filesystem and the external tools.
// Documents are lists of page channel values plus the source page number
// each page came from.
type world struct {
	mu      sync.Mutex
	docs    map[string][]compliance.Channels
	markers map[string][]int
	rasters map[string]compliance.Channels
	rmark   map[string]int

	failRaster map[int]bool
	failRemap  map[int]bool
	failWrap   map[int]bool
	failExtract bool

	builds atomic.Int32
	delay  func(page int) time.Duration
}

func newWorld() *world {
	return &world{
		docs:       map[string][]compliance.Channels{},
		markers:    map[string][]int{},
		rasters:    map[string]compliance.Channels{},
		rmark:      map[string]int{},
		failRaster: map[int]bool{},
		failRemap:  map[int]bool{},
		failWrap:   map[int]bool{},
	}
}

func (w *world) put(path string, pages ...compliance.Channels) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs[path] = pages
	marks := make([]int, len(pages))
	for i := range pages {
		marks[i] = i + 1
	}
	w.markers[path] = marks
}

func (w *world) pages(path string) []compliance.Channels {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]compliance.Channels(nil), w.docs[path]...)
}

func (w *world) marks(path string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int(nil), w.markers[path]...)
}

func (w *world) Report(ctx context.Context, document string) ([]compliance.Channels, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pages, ok := w.docs[document]
	if !ok {
		return nil, fmt.Errorf("no such document %s", document)
	}
	return pages, nil
}

func (w *world) ToRaster(ctx context.Context, document string, page, dpi int, out string) (Raster, error) {
	if w.delay != nil {
		time.Sleep(w.delay(page))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failRaster[page] {
		return Raster{}, fmt.Errorf("rasterizer crashed on page %d", page)
	}
	w.rasters[out] = w.docs[document][page-1]
	w.rmark[out] = w.markers[document][page-1]
	return Raster{Page: page, Path: out}, nil
}

func (w *world) Build(ctx context.Context, ceiling float64, dir string) (Artifact, error) {
	w.builds.Add(1)
	return Artifact{Ceiling: ceiling, Path: filepath.Join(dir, fmt.Sprintf("link-%.0f.icc", ceiling))}, nil
}

func (w *world) Apply(ctx context.Context, art Artifact, in Raster, out string) (Raster, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failRemap[in.Page] {
		return Raster{}, fmt.Errorf("tificc: cannot open %s", in.Path)
	}
	ch := w.rasters[in.Path]
	limit := art.Ceiling / 100
	if sum := ch.Cyan + ch.Magenta + ch.Yellow + ch.Key; sum > limit {
		f := limit / sum
		ch = compliance.Channels{Cyan: ch.Cyan * f, Magenta: ch.Magenta * f, Yellow: ch.Yellow * f, Key: ch.Key * f}
	}
	w.rasters[out] = ch
	w.rmark[out] = w.rmark[in.Path]
	return Raster{Page: in.Page, Path: out}, nil
}

func (w *world) Wrap(ctx context.Context, r Raster, out string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWrap[r.Page] {
		return fmt.Errorf("tiff2pdf failed on page %d", r.Page)
	}
	w.docs[out] = []compliance.Channels{w.rasters[r.Path]}
	w.markers[out] = []int{w.rmark[r.Path]}
	return nil
}

func (w *world) Extract(ctx context.Context, document string, page int, out string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failExtract {
		return fmt.Errorf("pdfcpu: trim failed")
	}
	w.docs[out] = []compliance.Channels{w.docs[document][page-1]}
	w.markers[out] = []int{w.markers[document][page-1]}
	return nil
}

func (w *world) Concat(ctx context.Context, fragments []string, out string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var pages []compliance.Channels
	var marks []int
	for _, f := range fragments {
		d, ok := w.docs[f]
		if !ok {
			return fmt.Errorf("missing fragment %s", f)
		}
		pages = append(pages, d...)
		marks = append(marks, w.markers[f]...)
	}
	w.docs[out] = pages
	w.markers[out] = marks
	return nil
}

func channelsForTAC(tac float64) compliance.Channels {
	v := tac / 400
	return compliance.Channels{Cyan: v, Magenta: v, Yellow: v, Key: v}
}
