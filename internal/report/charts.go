package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/orchestrator"
)

// writeHTML renders a page with a per-page TAC line chart and, when a
// ranking exists, a score bar chart.
func writeHTML(path string, res *orchestrator.Result, profile compliance.Profile) error {
	page := components.NewPage()
	page.PageTitle = res.Project + " ink coverage"
	page.AddCharts(tacChart(res, profile))
	if res.Comparison != nil && res.Comparison.Ranking != nil {
		page.AddCharts(scoreChart(res))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func tacChart(res *orchestrator.Result, profile compliance.Profile) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "TAC per page", Subtitle: fmt.Sprintf("%s, limit %s%%", res.Project, num(profile.TACFail))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Page", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "TAC (%)", Min: 0, Max: yMax(res, profile)}),
	)

	pages := maxPages(res)
	xs := make([]string, pages)
	for i := range xs {
		xs[i] = fmt.Sprint(i + 1)
	}
	line.SetXAxis(xs)

	first := true
	for _, br := range res.Ordered() {
		rep := br.FinalReport()
		if rep == nil {
			continue
		}
		data := make([]opts.LineData, pages)
		for i := range data {
			data[i] = opts.LineData{Value: "-"}
		}
		for _, p := range rep.Pages {
			if p.Page >= 1 && p.Page <= pages {
				data[p.Page-1] = opts.LineData{Value: p.TAC}
			}
		}
		var so []charts.SeriesOpts
		if first {
			so = append(so,
				charts.WithMarkLineNameYAxisItemOpts(
					opts.MarkLineNameYAxisItem{Name: "pass", YAxis: profile.TACPass},
					opts.MarkLineNameYAxisItem{Name: "fail", YAxis: profile.TACFail},
				),
			)
			first = false
		}
		line.AddSeries(br.Backend, data, so...)
	}
	return line
}

func scoreChart(res *orchestrator.Result) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Backend score", Subtitle: "out of 10"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 10}),
	)
	r := res.Comparison.Ranking
	xs := make([]string, 0, len(r.Scores))
	data := make([]opts.BarData, 0, len(r.Scores))
	for _, s := range r.Scores {
		xs = append(xs, s.Backend)
		data = append(data, opts.BarData{Value: s.Score})
	}
	bar.SetXAxis(xs).AddSeries("score", data)
	return bar
}

func maxPages(res *orchestrator.Result) int {
	n := 0
	for _, br := range res.Ordered() {
		if rep := br.FinalReport(); rep != nil && len(rep.Pages) > n {
			n = len(rep.Pages)
		}
	}
	return n
}

func yMax(res *orchestrator.Result, profile compliance.Profile) float64 {
	m := profile.TACFail
	for _, br := range res.Ordered() {
		if rep := br.FinalReport(); rep != nil && rep.MaxTAC > m {
			m = rep.MaxTAC
		}
	}
	m += 20
	if m > compliance.MaxTAC {
		m = compliance.MaxTAC
	}
	return m
}
