package compliance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Status is the classification of a TAC value against a Profile.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Recommendation texts attached to pages and reports.
const (
	RecommendKeyOnlyBlack = "replace rich black with key-only black (K100, C/M/Y 0)"
	RecommendRemediation  = "run the remediation pipeline to enforce the ink ceiling"
)

// Channels holds one page's ink coverage as fractions in [0,1], the way
// channel reporters emit them.
type Channels struct {
	Cyan    float64
	Magenta float64
	Yellow  float64
	Key     float64
}

// ChannelReporter reports per-page channel coverage for a print-intent document.
type ChannelReporter interface {
	Report(ctx context.Context, document string) ([]Channels, error)
}

// PageInkSample is the measured coverage of one page, in percent.
type PageInkSample struct {
	Page           int     `json:"page"`
	Cyan           float64 `json:"cyan"`
	Magenta        float64 `json:"magenta"`
	Yellow         float64 `json:"yellow"`
	Key            float64 `json:"key"`
	TAC            float64 `json:"tac"`
	Status         Status  `json:"status"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// InkCoverageReport is the per-page and aggregate measurement of a document.
type InkCoverageReport struct {
	Document        string          `json:"document"`
	Pages           []PageInkSample `json:"pages"`
	MaxTAC          float64         `json:"max_tac"`
	AverageTAC      float64         `json:"average_tac"`
	FailPages       []int           `json:"fail_pages"`
	WarnPages       []int           `json:"warn_pages"`
	Recommendations []string        `json:"recommendations,omitempty"`
}

// PageCount returns the number of measured pages.
func (r *InkCoverageReport) PageCount() int {
	if r == nil {
		return 0
	}
	return len(r.Pages)
}

// Compliant reports whether no page exceeds the profile's hard ceiling.
func (r *InkCoverageReport) Compliant(p Profile) bool {
	return r != nil && r.MaxTAC <= p.TACFail
}

// Measurer classifies channel reports against a Profile.
type Measurer struct {
	Reporter ChannelReporter
	Profile  Profile
	// Timeout bounds a single Reporter call. Zero means no extra bound.
	Timeout time.Duration
}

// NewMeasurer returns a Measurer for the given reporter and profile.
func NewMeasurer(reporter ChannelReporter, profile Profile) *Measurer {
	return &Measurer{Reporter: reporter, Profile: profile}
}

// Measure runs the channel reporter on document and builds the report.
// Any reporter failure, or an empty page list, is a MeasurementUnavailableError.
func (m *Measurer) Measure(ctx context.Context, document string) (*InkCoverageReport, error) {
	if m.Reporter == nil {
		return nil, &MeasurementUnavailableError{Document: document, Reason: "no channel reporter configured"}
	}
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	start := time.Now()
	channels, err := m.Reporter.Report(ctx, document)
	if err != nil {
		return nil, &MeasurementUnavailableError{Document: document, Reason: "channel reporter failed", Err: err}
	}
	if len(channels) == 0 {
		return nil, &MeasurementUnavailableError{Document: document, Reason: "channel reporter returned no pages"}
	}

	report := BuildReport(document, channels, m.Profile)
	log.Debug().
		Str("document", document).
		Int("pages", len(report.Pages)).
		Float64("max_tac", report.MaxTAC).
		Float64("avg_tac", report.AverageTAC).
		Dur("duration", time.Since(start)).
		Msg("ink coverage measured")
	return report, nil
}

// BuildReport turns raw channel fractions into a classified report.
func BuildReport(document string, channels []Channels, p Profile) *InkCoverageReport {
	report := &InkCoverageReport{
		Document: document,
		Pages:    make([]PageInkSample, 0, len(channels)),
	}
	tacs := make([]float64, 0, len(channels))
	seen := map[string]bool{}

	for i, ch := range channels {
		s := NewSample(i+1, ch, p)
		report.Pages = append(report.Pages, s)
		tacs = append(tacs, s.TAC)

		switch s.Status {
		case StatusFail:
			report.FailPages = append(report.FailPages, s.Page)
		case StatusWarn:
			report.WarnPages = append(report.WarnPages, s.Page)
		}
		for _, rec := range recommendationsFor(s, p) {
			if !seen[rec] {
				seen[rec] = true
				report.Recommendations = append(report.Recommendations, rec)
			}
		}
	}

	if len(tacs) > 0 {
		report.MaxTAC = floats.Max(tacs)
		report.AverageTAC = round2(stat.Mean(tacs, nil))
	}
	sort.Ints(report.FailPages)
	sort.Ints(report.WarnPages)
	return report
}

// NewSample scales ch to percent, sums the TAC and classifies it.
func NewSample(page int, ch Channels, p Profile) PageInkSample {
	s := PageInkSample{
		Page:    page,
		Cyan:    percent(ch.Cyan),
		Magenta: percent(ch.Magenta),
		Yellow:  percent(ch.Yellow),
		Key:     percent(ch.Key),
	}
	s.TAC = round2(s.Cyan + s.Magenta + s.Yellow + s.Key)
	if s.TAC > MaxTAC {
		s.TAC = MaxTAC
	}
	s.Status = p.Classify(s.TAC)
	if recs := recommendationsFor(s, p); len(recs) > 0 {
		s.Recommendation = recs[0]
	}
	return s
}

func recommendationsFor(s PageInkSample, p Profile) []string {
	var out []string
	if s.TAC > p.TACPass && s.Key > 80 && (s.Cyan > 20 || s.Magenta > 20 || s.Yellow > 20) {
		out = append(out, RecommendKeyOnlyBlack)
	}
	if s.TAC > p.TACFail {
		out = append(out, RecommendRemediation)
	}
	return out
}

// percent clamps a fraction to [0,1] and scales it to [0,100].
func percent(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		f = 1
	}
	return round2(f * 100)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// String renders a short human summary.
func (r *InkCoverageReport) String() string {
	if r == nil {
		return "ink coverage unknown"
	}
	return fmt.Sprintf("%d pages, max TAC %.1f%%, avg %.1f%%, %d fail, %d warn",
		len(r.Pages), r.MaxTAC, r.AverageTAC, len(r.FailPages), len(r.WarnPages))
}
