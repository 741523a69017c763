package compare

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrSizeMismatch is returned by differs when two rasters differ in size.
var ErrSizeMismatch = errors.New("raster sizes differ")

// visual diffs every pair of candidates page by page.
func (e *Engine) visual(ctx context.Context, cands []Candidate, feats []Features) []PairDiff {
	var out []PairDiff
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			out = append(out, e.pair(ctx, cands[i], cands[j], feats[i].PageCount, feats[j].PageCount))
		}
	}
	return out
}

func (e *Engine) pair(ctx context.Context, a, b Candidate, pagesA, pagesB int) PairDiff {
	d := PairDiff{A: a.Backend, B: b.Backend}
	pages := max(pagesA, pagesB)

	if a.Digest != "" && a.Digest == b.Digest {
		d.Identical = true
		d.PagesCompared = pages
		return d
	}
	if e.Renderer == nil || e.Differ == nil {
		d.Error = "visual diff unavailable: no renderer or differ configured"
		return d
	}

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			d.Error = err.Error()
			return d
		}
		pd := PageDiff{Page: page}
		if page > pagesA || page > pagesB {
			pd.Missing, pd.Differs = true, true
		} else {
			pd = e.page(ctx, a, b, page)
		}
		d.PagesCompared++
		if pd.Differs {
			d.PagesDiffering++
		}
		d.Pages = append(d.Pages, pd)
	}
	return d
}

func (e *Engine) page(ctx context.Context, a, b Candidate, page int) PageDiff {
	pd := PageDiff{Page: page}
	imgA, err := e.Renderer.Render(ctx, a.Path, page, e.DiffDPI)
	if err != nil {
		log.Warn().Err(err).Str("backend", a.Backend).Int("page", page).Msg("render for diff failed")
		pd.Missing, pd.Differs = true, true
		return pd
	}
	imgB, err := e.Renderer.Render(ctx, b.Path, page, e.DiffDPI)
	if err != nil {
		log.Warn().Err(err).Str("backend", b.Backend).Int("page", page).Msg("render for diff failed")
		pd.Missing, pd.Differs = true, true
		return pd
	}
	n, err := e.Differ.Diff(imgA, imgB)
	if err != nil {
		pd.Missing, pd.Differs = true, true
		return pd
	}
	pd.Pixels = n
	pd.Differs = n > e.DiffPixelThreshold
	return pd
}
