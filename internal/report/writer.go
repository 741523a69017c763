// Package report renders project and batch outcomes as Markdown, JSON,
// an interactive HTML chart page and a TAC plot.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/orchestrator"
)

// File names written per project and per batch.
const (
	ProjectMarkdown = "report.md"
	ProjectJSON     = "report.json"
	ProjectHTML     = "report.html"
	ProjectPlot     = "tac.png"
	SummaryMarkdown = "summary.md"
	SummaryJSON     = "summary.json"
)

// Writer implements orchestrator.ReportWriter.
type Writer struct {
	Profile compliance.Profile
	// Charts enables report.html and tac.png.
	Charts bool
}

func NewWriter(profile compliance.Profile) *Writer {
	return &Writer{Profile: profile, Charts: true}
}

// projectDoc is the JSON form of a project report.
type projectDoc struct {
	Thresholds thresholds           `json:"thresholds"`
	Result     *orchestrator.Result `json:"result"`
}

type thresholds struct {
	Pass       float64 `json:"tac_pass"`
	Warn       float64 `json:"tac_warn"`
	Fail       float64 `json:"tac_fail"`
	TrimWidth  string  `json:"trim_width"`
	TrimHeight string  `json:"trim_height"`
	Bleed      string  `json:"bleed"`
	DPI        int     `json:"dpi"`
}

func (w *Writer) thresholds() thresholds {
	p := w.Profile
	return thresholds{
		Pass: p.TACPass, Warn: p.TACWarn, Fail: p.TACFail,
		TrimWidth: p.TrimWidth.String(), TrimHeight: p.TrimHeight.String(), Bleed: p.Bleed.String(),
		DPI: p.DPI,
	}
}

// WriteProject writes every per-project report into dir. A failing file
// does not stop the others; the errors are joined.
func (w *Writer) WriteProject(dir string, res *orchestrator.Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var errs []error
	if err := os.WriteFile(filepath.Join(dir, ProjectMarkdown), []byte(Markdown(res, w.Profile)), 0o644); err != nil {
		errs = append(errs, err)
	}
	if err := writeJSON(filepath.Join(dir, ProjectJSON), projectDoc{Thresholds: w.thresholds(), Result: res}); err != nil {
		errs = append(errs, err)
	}
	if w.Charts {
		if err := writeHTML(filepath.Join(dir, ProjectHTML), res, w.Profile); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ProjectHTML, err))
		}
		if err := writePlot(filepath.Join(dir, ProjectPlot), res, w.Profile); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ProjectPlot, err))
		}
	}
	log.Debug().Str("project", res.Project).Str("dir", dir).Msg("project report written")
	return errors.Join(errs...)
}

// WriteSummary writes summary.md and summary.json into dir.
func (w *Writer) WriteSummary(dir string, sum *orchestrator.Summary) error {
	if sum == nil {
		return errors.New("nil summary")
	}
	return errors.Join(
		os.WriteFile(filepath.Join(dir, SummaryMarkdown), []byte(Summary(sum)), 0o644),
		writeJSON(filepath.Join(dir, SummaryJSON), sum),
	)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
