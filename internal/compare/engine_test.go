package compare

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/local/inkbench/internal/compliance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector map[string]Features

func (f fakeInspector) Inspect(ctx context.Context, path string) (Features, error) {
	feat, ok := f[path]
	if !ok {
		return Features{}, fmt.Errorf("cannot open %s", path)
	}
	return feat, nil
}

// pageImages renders pages from a fixed table of solid-ish images.
type pageImages map[string][]image.Image

func (p pageImages) Render(ctx context.Context, path string, page, dpi int) (image.Image, error) {
	pages := p[path]
	if page < 1 || page > len(pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	return pages[page-1], nil
}

type countingDiffer struct{}

func (countingDiffer) Diff(a, b image.Image) (int, error) {
	if a.Bounds() != b.Bounds() {
		return 0, ErrSizeMismatch
	}
	n := 0
	r := a.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if a.At(x, y) != b.At(x, y) {
				n++
			}
		}
	}
	return n, nil
}

func solid(w, h int, c color.Gray) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = c.Y
	}
	return img
}

func report(maxTAC float64) *compliance.InkCoverageReport {
	return &compliance.InkCoverageReport{MaxTAC: maxTAC, Pages: []compliance.PageInkSample{{Page: 1, TAC: maxTAC}}}
}

var sixByNine = []PageSize{{Width: 450, Height: 666}}

func perfect(size int64, fonts int) Features {
	return Features{PageCount: 1, PageSizes: sixByNine, Version: "1.7", FontsTotal: fonts, FontsEmbedded: fonts, Size: size}
}

func newEngine(insp fakeInspector) *Engine {
	return &Engine{Profile: compliance.DefaultProfile(), Inspector: insp}
}

func TestCompare_ScenarioB(t *testing.T) {
	t.Parallel()

	e := newEngine(fakeInspector{
		"x.pdf": perfect(100_000, 4),
		"y.pdf": perfect(101_000, 0),
	})
	res := e.Compare(context.Background(), []Candidate{
		{Backend: "x", Path: "x.pdf", Converted: true, Compliant: true, FontPreservation: true, Report: report(180)},
		{Backend: "y", Path: "y.pdf", Converted: true, Compliant: true, FontPreservation: false, Report: report(235)},
	})

	assert.Equal(t, []string{"x", "y"}, res.Columns)
	assert.Equal(t, "x-better", res.Row(FeatureMaxTAC).Verdict)
	assert.Equal(t, []string{"180.0%", "235.0%"}, res.Row(FeatureMaxTAC).Values)
	assert.Equal(t, "x-better", res.Row(FeatureFontsKept).Verdict)
	assert.Equal(t, VerdictSame, res.Row(FeatureSize).Verdict)
	assert.Equal(t, VerdictSame, res.Row(FeatureGeometry).Verdict)

	require.NotNil(t, res.Ranking)
	x, y := res.Ranking.ScoreOf("x"), res.Ranking.ScoreOf("y")
	require.NotNil(t, x)
	require.NotNil(t, y)
	assert.Greater(t, x.Score, y.Score)
	assert.Equal(t, 9.0, x.Score)
	assert.Contains(t, y.Failed, CheckFontsKept)
	assert.Contains(t, y.Failed, CheckTACPass)
	assert.Equal(t, "x", res.Ranking.Winner)
	assert.False(t, res.Ranking.Tie)
}

func TestCompare_TACWithinToleranceIsSameAndTies(t *testing.T) {
	t.Parallel()

	e := newEngine(fakeInspector{"a.pdf": perfect(50_000, 2), "b.pdf": perfect(50_500, 2)})
	res := e.Compare(context.Background(), []Candidate{
		{Backend: "a", Path: "a.pdf", Converted: true, Compliant: true, FontPreservation: true, Report: report(180)},
		{Backend: "b", Path: "b.pdf", Converted: true, Compliant: true, FontPreservation: true, Report: report(184.5)},
	})

	assert.Equal(t, VerdictSame, res.Row(FeatureMaxTAC).Verdict)
	require.NotNil(t, res.Ranking)
	assert.True(t, res.Ranking.Tie)
	assert.Empty(t, res.Ranking.Winner)
	assert.Equal(t, []string{"a", "b"}, res.Ranking.Tied)
}

func TestCompare_SizeTolerance(t *testing.T) {
	t.Parallel()

	cands := []Candidate{
		{Backend: "a", Path: "a.pdf", Converted: true, Compliant: true, Report: report(150)},
		{Backend: "b", Path: "b.pdf", Converted: true, Compliant: true, Report: report(150)},
	}
	same := newEngine(fakeInspector{"a.pdf": perfect(100_000, 0), "b.pdf": perfect(104_900, 0)}).Compare(context.Background(), cands)
	assert.Equal(t, VerdictSame, same.Row(FeatureSize).Verdict)

	apart := newEngine(fakeInspector{"a.pdf": perfect(130_000, 0), "b.pdf": perfect(100_000, 0)}).Compare(context.Background(), cands)
	assert.Equal(t, "b-better", apart.Row(FeatureSize).Verdict)
	assert.Equal(t, "b", apart.Ranking.Winner)
}

func TestCompare_SingleSurvivorDegrades(t *testing.T) {
	t.Parallel()

	e := newEngine(fakeInspector{"only.pdf": perfect(1000, 1)})
	res := e.Compare(context.Background(), []Candidate{
		{Backend: "gone", Path: ""},
		{Backend: "only", Path: "only.pdf", Converted: true, Compliant: true, Report: report(120)},
	})

	assert.Equal(t, []string{"only"}, res.Columns)
	assert.Nil(t, res.Ranking)
	assert.Empty(t, res.Visual)
	for _, row := range res.Rows {
		assert.Len(t, row.Values, 1)
		assert.Equal(t, VerdictSame, row.Verdict, row.Feature)
	}
}

func TestCompare_NoArtifacts(t *testing.T) {
	t.Parallel()

	res := newEngine(fakeInspector{}).Compare(context.Background(), []Candidate{{Backend: "a"}})
	assert.Empty(t, res.Columns)
	assert.Empty(t, res.Rows)
}

func TestCompare_UnconvertedAndUnknownTAC(t *testing.T) {
	t.Parallel()

	e := newEngine(fakeInspector{"a.pdf": perfect(1000, 1), "b.pdf": perfect(1000, 1)})
	res := e.Compare(context.Background(), []Candidate{
		{Backend: "a", Path: "a.pdf", Converted: true, Compliant: true, FontPreservation: true, Report: report(150)},
		{Backend: "b", Path: "b.pdf", Converted: false, FontPreservation: true},
	})
	assert.Equal(t, "a-better", res.Row(FeatureColorSpace).Verdict)
	assert.Equal(t, []string{"DeviceCMYK", "unconverted"}, res.Row(FeatureColorSpace).Values)
	assert.Equal(t, VerdictDifferent, res.Row(FeatureMaxTAC).Verdict)
	assert.Equal(t, "unknown", res.Row(FeatureMaxTAC).Values[1])
	assert.False(t, res.Ranking.ScoreOf("b").Valid)
	assert.Equal(t, "a", res.Ranking.Winner)
}

func TestCompare_VisualDiff(t *testing.T) {
	t.Parallel()

	white := solid(40, 40, color.Gray{Y: 255})
	grey := solid(40, 40, color.Gray{Y: 128})
	e := newEngine(fakeInspector{
		"a.pdf": {PageCount: 3, Size: 10},
		"b.pdf": {PageCount: 2, Size: 10},
	})
	e.Renderer = pageImages{
		"a.pdf": {white, white, white},
		"b.pdf": {white, grey},
	}
	e.Differ = countingDiffer{}
	e.DiffPixelThreshold = 100

	res := e.Compare(context.Background(), []Candidate{
		{Backend: "a", Path: "a.pdf"},
		{Backend: "b", Path: "b.pdf"},
	})
	require.Len(t, res.Visual, 1)
	d := res.Visual[0]
	assert.Equal(t, 3, d.PagesCompared)
	assert.Equal(t, 2, d.PagesDiffering)
	assert.False(t, d.Pages[0].Differs)
	assert.Equal(t, 1600, d.Pages[1].Pixels)
	assert.True(t, d.Pages[1].Differs)
	assert.True(t, d.Pages[2].Missing)
	assert.Equal(t, VerdictDifferent, res.Row(FeaturePageCount).Verdict)
}

func TestCompare_IdenticalDigestsSkipRendering(t *testing.T) {
	t.Parallel()

	e := newEngine(fakeInspector{"a.pdf": perfect(10, 0), "b.pdf": perfect(10, 0)})
	e.Renderer = pageImages{}
	e.Differ = countingDiffer{}
	res := e.Compare(context.Background(), []Candidate{
		{Backend: "a", Path: "a.pdf", Digest: "abc"},
		{Backend: "b", Path: "b.pdf", Digest: "abc"},
	})
	require.Len(t, res.Visual, 1)
	assert.True(t, res.Visual[0].Identical)
	assert.Zero(t, res.Visual[0].PagesDiffering)
}
