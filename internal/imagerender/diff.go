package imagerender

import (
	"image"

	"github.com/local/inkbench/internal/compare"
)

// PixelDiffer counts pixels whose channels differ by more than
// ChannelTolerance (0-255 scale).
type PixelDiffer struct {
	ChannelTolerance uint8
}

// Diff implements compare.ImageDiffer.
func (d PixelDiffer) Diff(a, b image.Image) (int, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, compare.ErrSizeMismatch
	}
	tol := uint32(d.ChannelTolerance) * 0x101
	n := 0
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			r1, g1, b1, a1 := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, a2 := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if absDiff(r1, r2) > tol || absDiff(g1, g2) > tol || absDiff(b1, b2) > tol || absDiff(a1, a2) > tol {
				n++
			}
		}
	}
	return n, nil
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
