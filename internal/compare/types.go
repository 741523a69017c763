package compare

import (
	"context"
	"image"

	"github.com/local/inkbench/internal/compliance"
)

// Candidate is one backend's artifact as seen by the comparison.
type Candidate struct {
	Backend          string
	Path             string
	Converted        bool
	Compliant        bool
	FontPreservation bool
	Report           *compliance.InkCoverageReport
	Digest           string
	Size             int64
}

// PageSize is a page's media box in points.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Features are the structural facts an Inspector reads from a document.
type Features struct {
	PageCount     int        `json:"page_count"`
	PageSizes     []PageSize `json:"page_sizes,omitempty"`
	Version       string     `json:"version,omitempty"`
	FontsTotal    int        `json:"fonts_total"` // -1 when unknown
	FontsEmbedded int        `json:"fonts_embedded"`
	Size          int64      `json:"size"`
}

// Inspector reads structural features from a document.
type Inspector interface {
	Inspect(ctx context.Context, path string) (Features, error)
}

// PageRenderer renders a 1-based page to an image.
type PageRenderer interface {
	Render(ctx context.Context, path string, page, dpi int) (image.Image, error)
}

// ImageDiffer counts differing pixels between two rasters.
type ImageDiffer interface {
	Diff(a, b image.Image) (int, error)
}

// Verdicts.
const (
	VerdictSame      = "same"
	VerdictDifferent = "different"
)

// Better is the verdict naming a winning backend.
func Better(backend string) string { return backend + "-better" }

// FeatureRow is one line of the comparison table.
type FeatureRow struct {
	Feature string   `json:"feature"`
	Values  []string `json:"values"`
	Verdict string   `json:"verdict"`
}

// PageDiff is the visual difference of one page index.
type PageDiff struct {
	Page    int  `json:"page"`
	Pixels  int  `json:"pixels"`
	Differs bool `json:"differs"`
	// Missing is set when the page exists on one side only or the page
	// sizes do not match.
	Missing bool `json:"missing,omitempty"`
}

// PairDiff summarises the visual difference of two backends.
type PairDiff struct {
	A              string     `json:"a"`
	B              string     `json:"b"`
	PagesCompared  int        `json:"pages_compared"`
	PagesDiffering int        `json:"pages_differing"`
	Identical      bool       `json:"identical,omitempty"`
	Pages          []PageDiff `json:"pages,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Score is one backend's ranking score and the sub-checks it passed.
type Score struct {
	Backend string   `json:"backend"`
	Score   float64  `json:"score"`
	Valid   bool     `json:"valid"`
	Passed  []string `json:"passed"`
	Failed  []string `json:"failed"`
}

// Ranking orders backends by score. Winner is empty when Tie is set.
type Ranking struct {
	Scores []Score  `json:"scores"`
	Winner string   `json:"winner,omitempty"`
	Tie    bool     `json:"tie"`
	Tied   []string `json:"tied,omitempty"`
}

// Result is the full comparison of one project's backends.
type Result struct {
	Columns  []string            `json:"columns"`
	Features map[string]Features `json:"features"`
	Rows     []FeatureRow        `json:"rows"`
	Visual   []PairDiff          `json:"visual,omitempty"`
	Ranking  *Ranking            `json:"ranking,omitempty"`
}

// Row returns the row for feature, or nil.
func (r *Result) Row(feature string) *FeatureRow {
	for i := range r.Rows {
		if r.Rows[i].Feature == feature {
			return &r.Rows[i]
		}
	}
	return nil
}

// ScoreOf returns the score of backend, or nil.
func (r *Ranking) ScoreOf(backend string) *Score {
	if r == nil {
		return nil
	}
	for i := range r.Scores {
		if r.Scores[i].Backend == backend {
			return &r.Scores[i]
		}
	}
	return nil
}
