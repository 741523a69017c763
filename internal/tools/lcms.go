package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/local/inkbench/internal/remediation"
)

// LittleCMS builds ink-limiting device links with linkicc (-k sets the
// total ink limit) and applies them to CMYK TIFFs with tificc (-l loads
// the link).
type LittleCMS struct {
	LinkICC string
	TifICC  string
	// Profile is the CMYK output profile the link maps into itself.
	Profile string
	// Intent is the ICC rendering intent (0 perceptual, 1 relative colorimetric).
	Intent int
}

// NewLittleCMS returns a LittleCMS for the given CMYK profile.
func NewLittleCMS(profile string) *LittleCMS {
	return &LittleCMS{LinkICC: "linkicc", TifICC: "tificc", Profile: profile, Intent: 1}
}

func (l *LittleCMS) Available(ctx context.Context) error {
	if err := Available(l.LinkICC, l.TifICC); err != nil {
		return err
	}
	if l.Profile == "" {
		return fmt.Errorf("no CMYK output profile configured")
	}
	if _, err := os.Stat(l.Profile); err != nil {
		return fmt.Errorf("CMYK profile: %w", err)
	}
	return nil
}

// Build implements remediation.ChannelRemapper.
func (l *LittleCMS) Build(ctx context.Context, ceiling float64, dir string) (remediation.Artifact, error) {
	out := filepath.Join(dir, fmt.Sprintf("inklimit-%s.icc", strconv.FormatFloat(ceiling, 'f', -1, 64)))
	_, err := Run(ctx, l.LinkICC,
		"-o", out,
		"-t", strconv.Itoa(l.Intent),
		"-k"+strconv.FormatFloat(ceiling, 'f', -1, 64),
		l.Profile, l.Profile,
	)
	if err != nil {
		return remediation.Artifact{}, err
	}
	return remediation.Artifact{Ceiling: ceiling, Path: out}, nil
}

// Apply implements remediation.ChannelRemapper.
func (l *LittleCMS) Apply(ctx context.Context, art remediation.Artifact, in remediation.Raster, out string) (remediation.Raster, error) {
	if _, err := Run(ctx, l.TifICC, "-l"+art.Path, in.Path, out); err != nil {
		return remediation.Raster{}, err
	}
	return remediation.Raster{Page: in.Page, Path: out}, nil
}
