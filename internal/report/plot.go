package report

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/orchestrator"
)

// writePlot saves a static TAC-per-page plot with the pass and fail
// thresholds. Nothing is written when no backend was measured.
func writePlot(path string, res *orchestrator.Result, profile compliance.Profile) error {
	p := plot.New()
	p.Title.Text = res.Project + " - TAC per page"
	p.X.Label.Text = "Page"
	p.Y.Label.Text = "TAC (%)"
	p.Y.Min = 0
	p.Y.Max = yMax(res, profile)

	lines := 0
	for i, br := range res.Ordered() {
		rep := br.FinalReport()
		if rep == nil || len(rep.Pages) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(rep.Pages))
		for j, s := range rep.Pages {
			pts[j] = plotter.XY{X: float64(s.Page), Y: s.TAC}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = plotutil.Color(i)
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(br.Backend, l)
		lines++
	}
	if lines == 0 {
		return nil
	}

	p.Add(threshold(profile.TACPass, color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}))
	p.Add(threshold(profile.TACFail, color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}))
	p.X.Min = 1
	if n := float64(maxPages(res)); n > 1 {
		p.X.Max = n
	} else {
		p.X.Max = 2
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

func threshold(y float64, c color.Color) *plotter.Function {
	f := plotter.NewFunction(func(float64) float64 { return y })
	f.Color = c
	f.Width = vg.Points(1)
	f.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	return f
}
