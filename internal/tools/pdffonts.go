package tools

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// PDFFonts lists fonts with poppler's pdffonts.
type PDFFonts struct {
	Binary string
}

func NewPDFFonts() *PDFFonts { return &PDFFonts{Binary: "pdffonts"} }

func (p *PDFFonts) Available(ctx context.Context) error { return Available(p.Binary) }

// Fonts returns the number of fonts and how many are embedded.
func (p *PDFFonts) Fonts(ctx context.Context, document string) (total, embedded int, err error) {
	out, err := Run(ctx, p.Binary, document)
	if err != nil {
		return 0, 0, err
	}
	total, embedded = ParsePDFFonts(out)
	return total, embedded, nil
}

// ParsePDFFonts counts rows of a pdffonts table. Names and types can
// contain spaces, so the emb column is read from the right:
// ... emb sub uni objnum gen.
func ParsePDFFonts(out []byte) (total, embedded int) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "-----") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 6 {
			continue
		}
		total++
		if f[len(f)-5] == "yes" {
			embedded++
		}
	}
	return total, embedded
}
