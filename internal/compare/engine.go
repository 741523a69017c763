package compare

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/local/inkbench/internal/compliance"
	"github.com/rs/zerolog/log"
)

// Feature names, in table order.
const (
	FeatureGeometry   = "page geometry"
	FeaturePageCount  = "page count"
	FeatureColorSpace = "color space"
	FeatureFonts      = "font embedding"
	FeatureMaxTAC     = "max TAC"
	FeatureSize       = "file size"
	FeatureVersion    = "format version"
	FeatureFontsKept  = "font preservation"
)

// Engine compares candidates feature by feature, visually and by score.
type Engine struct {
	Profile   compliance.Profile
	Inspector Inspector
	Renderer  PageRenderer
	Differ    ImageDiffer

	DiffDPI            int
	DiffPixelThreshold int
	TACTolerance       float64
	SizeTolerance      float64
	// GeometryTolerance is the allowed page size deviation in points.
	GeometryTolerance float64
}

// Defaults for the visual comparison.
const (
	DefaultDiffDPI            = 50
	DefaultDiffPixelThreshold = 1000
	DefaultGeometryTolerance  = 1.0
)

func (e *Engine) defaults() {
	if e.DiffDPI <= 0 {
		e.DiffDPI = DefaultDiffDPI
	}
	if e.DiffPixelThreshold <= 0 {
		e.DiffPixelThreshold = DefaultDiffPixelThreshold
	}
	if e.TACTolerance <= 0 {
		e.TACTolerance = DefaultTACTolerance
	}
	if e.SizeTolerance <= 0 {
		e.SizeTolerance = DefaultSizeTolerance
	}
	if e.GeometryTolerance <= 0 {
		e.GeometryTolerance = DefaultGeometryTolerance
	}
}

// Compare builds the comparison for every candidate that has an artifact.
// A single candidate yields a one-column table with no ranking.
func (e *Engine) Compare(ctx context.Context, cands []Candidate) *Result {
	e.defaults()

	var kept []Candidate
	for _, c := range cands {
		if c.Path == "" {
			continue
		}
		kept = append(kept, c)
	}
	res := &Result{Features: map[string]Features{}}
	if len(kept) == 0 {
		return res
	}

	feats := make([]Features, len(kept))
	for i, c := range kept {
		res.Columns = append(res.Columns, c.Backend)
		feats[i] = e.inspect(ctx, c)
		res.Features[c.Backend] = feats[i]
	}

	res.Rows = e.rows(kept, feats)
	if len(kept) == 1 {
		for i := range res.Rows {
			res.Rows[i].Verdict = VerdictSame
		}
		return res
	}

	res.Visual = e.visual(ctx, kept, feats)
	res.Ranking = e.rank(kept, feats)
	return res
}

func (e *Engine) inspect(ctx context.Context, c Candidate) Features {
	var f Features
	if e.Inspector != nil {
		var err error
		f, err = e.Inspector.Inspect(ctx, c.Path)
		if err != nil {
			log.Warn().Err(err).Str("backend", c.Backend).Str("path", c.Path).Msg("inspect artifact failed")
		}
	}
	if f.Size == 0 {
		f.Size = c.Size
	}
	if f.PageCount == 0 && c.Report != nil {
		f.PageCount = c.Report.PageCount()
	}
	return f
}

func (e *Engine) geometryOK(f Features) bool {
	if len(f.PageSizes) == 0 {
		return false
	}
	w, h := e.Profile.FinalWidth().Points(), e.Profile.FinalHeight().Points()
	for _, s := range f.PageSizes {
		if math.Abs(s.Width-w) > e.GeometryTolerance || math.Abs(s.Height-h) > e.GeometryTolerance {
			return false
		}
	}
	return true
}

// consensusPages is the most common page count, preferring the larger
// count on a tie.
func consensusPages(feats []Features) int {
	counts := map[int]int{}
	best, bestN := 0, 0
	for _, f := range feats {
		counts[f.PageCount]++
	}
	for pages, n := range counts {
		if n > bestN || (n == bestN && pages > best) {
			best, bestN = pages, n
		}
	}
	return best
}

// fontsComplete is false when the font inventory is unknown (FontsTotal < 0).
func fontsComplete(f Features) bool { return f.FontsTotal >= 0 && f.FontsEmbedded == f.FontsTotal }

func (e *Engine) rows(cands []Candidate, feats []Features) []FeatureRow {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.Backend
	}
	n := len(cands)

	geomVals, geomOK := make([]string, n), make([]bool, n)
	pageVals := make([]string, n)
	colorVals, colorOK := make([]string, n), make([]bool, n)
	fontVals, fontOK := make([]string, n), make([]bool, n)
	tacVals, tacNums, tacKnown := make([]string, n), make([]float64, n), make([]bool, n)
	sizeVals, sizeNums, sizeKnown := make([]string, n), make([]float64, n), make([]bool, n)
	verVals := make([]string, n)
	keptVals, kept := make([]string, n), make([]bool, n)

	for i, c := range cands {
		f := feats[i]
		geomOK[i] = e.geometryOK(f)
		geomVals[i] = describeGeometry(f, geomOK[i])
		pageVals[i] = fmt.Sprintf("%d", f.PageCount)

		colorOK[i] = c.Converted
		colorVals[i] = "unconverted"
		if c.Converted {
			colorVals[i] = "DeviceCMYK"
		}

		fontOK[i] = fontsComplete(f)
		fontVals[i] = fmt.Sprintf("%d/%d embedded", f.FontsEmbedded, f.FontsTotal)
		if f.FontsTotal < 0 {
			fontVals[i] = "unknown"
		}

		tacVals[i] = "unknown"
		if c.Report != nil {
			tacNums[i], tacKnown[i] = c.Report.MaxTAC, true
			tacVals[i] = fmt.Sprintf("%.1f%%", c.Report.MaxTAC)
		}

		sizeVals[i] = "unknown"
		if f.Size > 0 {
			sizeNums[i], sizeKnown[i] = float64(f.Size), true
			sizeVals[i] = humanSize(f.Size)
		}

		verVals[i] = f.Version
		if verVals[i] == "" {
			verVals[i] = "unknown"
		}

		kept[i] = c.FontPreservation
		keptVals[i] = "no"
		if kept[i] {
			keptVals[i] = "yes"
		}
	}

	return []FeatureRow{
		{Feature: FeatureGeometry, Values: geomVals, Verdict: trueIsBetter(ids, geomOK)},
		{Feature: FeaturePageCount, Values: pageVals, Verdict: equalValues(pageVals)},
		{Feature: FeatureColorSpace, Values: colorVals, Verdict: trueIsBetter(ids, colorOK)},
		{Feature: FeatureFonts, Values: fontVals, Verdict: trueIsBetter(ids, fontOK)},
		{Feature: FeatureMaxTAC, Values: tacVals, Verdict: lowerIsBetter(ids, tacNums, tacKnown, withinAbs(e.TACTolerance))},
		{Feature: FeatureSize, Values: sizeVals, Verdict: lowerIsBetter(ids, sizeNums, sizeKnown, withinRel(e.SizeTolerance))},
		{Feature: FeatureVersion, Values: verVals, Verdict: equalValues(verVals)},
		{Feature: FeatureFontsKept, Values: keptVals, Verdict: trueIsBetter(ids, kept)},
	}
}

func describeGeometry(f Features, ok bool) string {
	if len(f.PageSizes) == 0 {
		return "unknown"
	}
	s := f.PageSizes[0]
	size := fmt.Sprintf("%.3gx%.3gin", s.Width/72, s.Height/72)
	for _, o := range f.PageSizes[1:] {
		if o != s {
			size = "mixed"
			break
		}
	}
	if ok {
		return size + " (ok)"
	}
	return size + " (mismatch)"
}

func humanSize(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(b)/(1<<10))
	}
	return fmt.Sprintf("%d B", b)
}

// Sub-checks worth half a point each.
const (
	CheckGeometry  = "geometry"
	CheckPageCount = "page-count"
	CheckCMYK      = "cmyk"
	CheckFonts     = "fonts-embedded"
	CheckTACPass   = "tac-pass-band"
	CheckFontsKept = "fonts-preserved"
	CheckSize      = "smallest-size-band"
	CheckVersion   = "version-readable"
)

const (
	baseScore = 5.0
	checkStep = 0.5
	maxScore  = 10.0
)

func (e *Engine) rank(cands []Candidate, feats []Features) *Ranking {
	consensus := consensusPages(feats)
	minSize := math.MaxFloat64
	for _, f := range feats {
		if f.Size > 0 && float64(f.Size) < minSize {
			minSize = float64(f.Size)
		}
	}
	sameSize := withinRel(e.SizeTolerance)

	r := &Ranking{}
	for i, c := range cands {
		f := feats[i]
		s := Score{Backend: c.Backend, Valid: c.Converted && c.Compliant}
		if s.Valid {
			s.Score = baseScore
		}
		check := func(name string, ok bool) {
			if ok {
				s.Passed = append(s.Passed, name)
				s.Score += checkStep
			} else {
				s.Failed = append(s.Failed, name)
			}
		}
		check(CheckGeometry, e.geometryOK(f))
		check(CheckPageCount, f.PageCount > 0 && f.PageCount == consensus)
		check(CheckCMYK, c.Converted)
		check(CheckFonts, fontsComplete(f))
		check(CheckTACPass, c.Report != nil && c.Report.MaxTAC <= e.Profile.TACPass)
		check(CheckFontsKept, c.FontPreservation)
		check(CheckSize, f.Size > 0 && sameSize(float64(f.Size), minSize))
		check(CheckVersion, f.Version != "")
		if s.Score > maxScore {
			s.Score = maxScore
		}
		r.Scores = append(r.Scores, s)
	}

	order := make(map[string]int, len(cands))
	for i, c := range cands {
		order[c.Backend] = i
	}
	sort.SliceStable(r.Scores, func(i, j int) bool {
		if r.Scores[i].Score != r.Scores[j].Score {
			return r.Scores[i].Score > r.Scores[j].Score
		}
		return order[r.Scores[i].Backend] < order[r.Scores[j].Backend]
	})

	top := r.Scores[0].Score
	for _, s := range r.Scores {
		if math.Abs(s.Score-top) < 1e-9 {
			r.Tied = append(r.Tied, s.Backend)
		}
	}
	if len(r.Tied) > 1 {
		r.Tie = true
	} else {
		r.Winner = r.Tied[0]
		r.Tied = nil
	}
	return r
}
