package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/remediation"
)

// Ghostscript reports ink coverage with the inkcov device and rasterizes
// pages with tiff32nc.
type Ghostscript struct {
	Binary string
}

// NewGhostscript returns a Ghostscript using binary, or "gs" when empty.
func NewGhostscript(binary string) *Ghostscript {
	if binary == "" {
		binary = "gs"
	}
	return &Ghostscript{Binary: binary}
}

func (g *Ghostscript) Available(ctx context.Context) error { return Available(g.Binary) }

// Report implements compliance.ChannelReporter.
func (g *Ghostscript) Report(ctx context.Context, document string) ([]compliance.Channels, error) {
	out, err := Run(ctx, g.Binary, "-q", "-dSAFER", "-dBATCH", "-dNOPAUSE", "-sDEVICE=inkcov", "-o", "-", document)
	if err != nil {
		return nil, err
	}
	pages, err := ParseInkcov(out)
	if err != nil {
		return nil, fmt.Errorf("inkcov %s: %w", document, err)
	}
	return pages, nil
}

// ParseInkcov reads inkcov output lines such as
// " 0.02381  0.01435  0.01254  0.00000 CMYK OK", one per page.
func ParseInkcov(out []byte) ([]compliance.Channels, error) {
	var pages []compliance.Channels
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 5 || f[4] != "CMYK" {
			continue
		}
		var v [4]float64
		for i := 0; i < 4; i++ {
			n, err := strconv.ParseFloat(f[i], 64)
			if err != nil {
				return nil, fmt.Errorf("page %d: bad channel value %q", len(pages)+1, f[i])
			}
			v[i] = n
		}
		pages = append(pages, compliance.Channels{Cyan: v[0], Magenta: v[1], Yellow: v[2], Key: v[3]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// ToRaster implements remediation.Rasterizer with a 32-bit CMYK TIFF.
func (g *Ghostscript) ToRaster(ctx context.Context, document string, page, dpi int, out string) (remediation.Raster, error) {
	_, err := Run(ctx, g.Binary,
		"-q", "-dSAFER", "-dBATCH", "-dNOPAUSE",
		"-sDEVICE=tiff32nc",
		"-r"+strconv.Itoa(dpi),
		"-dFirstPage="+strconv.Itoa(page),
		"-dLastPage="+strconv.Itoa(page),
		"-sOutputFile="+out,
		document,
	)
	if err != nil {
		return remediation.Raster{}, err
	}
	return remediation.Raster{Page: page, Path: out}, nil
}
