package tools

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/local/inkbench/internal/backend"
)

// Presets are argv templates for known HTML/CSS to PDF engines.
var Presets = map[string][]string{
	"weasyprint":  {"weasyprint", "{input}", "{output}"},
	"prince":      {"prince", "{input}", "-o", "{output}"},
	"pagedjs":     {"pagedjs-cli", "{input}", "-o", "{output}", "--width", "{width_mm}", "--height", "{height_mm}"},
	"vivliostyle": {"vivliostyle", "build", "{input}", "-o", "{output}", "-s", "{width},{height}"},
	"chromium": {
		"chromium", "--headless", "--disable-gpu", "--no-pdf-header-footer",
		"--print-to-pdf={output}", "file://{input}",
	},
}

// PresetNames returns the preset keys in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CommandRenderer runs one backend as an external command. Argv elements
// may contain {input}, {output}, {input_dir}, {width}, {height},
// {width_mm}, {height_mm}, {width_pt} and {height_pt}.
type CommandRenderer struct {
	Argv []string
	// Dir is the working directory; empty means the source's directory.
	Dir string
}

// NewCommandRenderer returns a renderer for argv, or for the preset named
// by argv[0] when argv has a single element matching a preset.
func NewCommandRenderer(argv []string) (*CommandRenderer, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if len(argv) == 1 {
		if p, ok := Presets[argv[0]]; ok {
			argv = p
		}
	}
	return &CommandRenderer{Argv: append([]string(nil), argv...)}, nil
}

func (c *CommandRenderer) Available(ctx context.Context) error { return Available(c.Argv[0]) }

// Build implements backend.Renderer.
func (c *CommandRenderer) Build(ctx context.Context, req backend.BuildRequest) (string, error) {
	if err := os.MkdirAll(filepath.Dir(req.Output), 0755); err != nil {
		return "", err
	}
	argv := Expand(c.Argv, req)
	dir := c.Dir
	if dir == "" {
		dir = filepath.Dir(req.Source)
	}
	if _, err := RunIn(ctx, dir, argv[0], argv[1:]...); err != nil {
		return "", err
	}
	if _, err := os.Stat(req.Output); err != nil {
		return "", fmt.Errorf("%s wrote no output: %w", argv[0], err)
	}
	return req.Output, nil
}

// Expand substitutes request values into an argv template.
func Expand(argv []string, req backend.BuildRequest) []string {
	input := req.Source
	if abs, err := filepath.Abs(input); err == nil {
		input = abs
	}
	r := strings.NewReplacer(
		"{input}", input,
		"{output}", req.Output,
		"{input_dir}", filepath.Dir(input),
		"{width}", req.Width.CSS(),
		"{height}", req.Height.CSS(),
		"{width_mm}", formatNumber(req.Width.Millimeters()),
		"{height_mm}", formatNumber(req.Height.Millimeters()),
		"{width_pt}", formatNumber(req.Width.Points()),
		"{height_pt}", formatNumber(req.Height.Points()),
	)
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = r.Replace(a)
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
