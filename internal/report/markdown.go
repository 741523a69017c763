package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/local/inkbench/internal/backend"
	"github.com/local/inkbench/internal/compare"
	"github.com/local/inkbench/internal/compliance"
	"github.com/local/inkbench/internal/orchestrator"
)

// Markdown renders a project report.
func Markdown(res *orchestrator.Result, profile compliance.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", res.Project)
	fmt.Fprintf(&b, "- Run: `%s`\n", res.RunID)
	fmt.Fprintf(&b, "- Source: `%s`\n", res.Source)
	fmt.Fprintf(&b, "- Target: %s x %s, bleed %s, %d dpi\n", profile.TrimWidth, profile.TrimHeight, profile.Bleed, profile.DPI)
	fmt.Fprintf(&b, "- TAC limits: pass ≤ %s%%, warn ≤ %s%%, fail > %s%%\n", num(profile.TACPass), num(profile.TACWarn), num(profile.TACFail))
	fmt.Fprintf(&b, "- Outcome: %s (%s)\n\n", outcome(res.Success), res.Duration.Round(time.Millisecond))

	b.WriteString("## Backends\n\n")
	b.WriteString("| Backend | State | Max TAC | Avg TAC | Remediated | Artifact | Note |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, br := range res.Ordered() {
		maxTAC, avgTAC := "n/a", "n/a"
		if rep := br.FinalReport(); rep != nil {
			maxTAC, avgTAC = num(rep.MaxTAC), num(rep.AverageTAC)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			br.Backend, br.State, maxTAC, avgTAC, yesNo(br.Remediated), code(br.Artifact()), cell(br.Reason()))
	}
	b.WriteString("\n")

	for _, br := range res.Ordered() {
		writePages(&b, br)
	}

	if c := res.Comparison; c != nil {
		writeComparison(&b, c)
	}
	return b.String()
}

func writePages(b *strings.Builder, br *backend.Result) {
	rep := br.FinalReport()
	if rep == nil || len(rep.FailPages)+len(rep.WarnPages) == 0 && br.Remediation == nil {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", br.Backend)
	if len(rep.FailPages) > 0 {
		fmt.Fprintf(b, "- Pages over the limit: %s\n", pageList(rep.FailPages))
	}
	if len(rep.WarnPages) > 0 {
		fmt.Fprintf(b, "- Pages in the warn band: %s\n", pageList(rep.WarnPages))
	}
	for _, r := range rep.Recommendations {
		fmt.Fprintf(b, "- Recommendation: %s\n", r)
	}
	if o := br.Remediation; o != nil {
		fmt.Fprintf(b, "- Remediation at %s%%: max TAC %s%% → %s%%\n", num(o.Ceiling), num(o.BeforeTAC), num(o.AfterTAC))
		counts := map[string]int{}
		for _, p := range o.Pages {
			counts[p.Outcome]++
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "  - %s: %d\n", k, counts[k])
		}
	}
	for _, w := range br.Warnings {
		fmt.Fprintf(b, "- Warning: %s\n", w)
	}
	b.WriteString("\n")
}

func writeComparison(b *strings.Builder, c *compare.Result) {
	b.WriteString("## Comparison\n\n")
	b.WriteString("| Feature | " + strings.Join(c.Columns, " | ") + " | Verdict |\n")
	b.WriteString("|---|" + strings.Repeat("---|", len(c.Columns)) + "---|\n")
	for _, row := range c.Rows {
		vals := make([]string, len(row.Values))
		for i, v := range row.Values {
			vals[i] = cell(v)
		}
		fmt.Fprintf(b, "| %s | %s | %s |\n", row.Feature, strings.Join(vals, " | "), row.Verdict)
	}
	b.WriteString("\n")

	if len(c.Visual) > 0 {
		b.WriteString("### Visual difference\n\n")
		for _, d := range c.Visual {
			switch {
			case d.Error != "":
				fmt.Fprintf(b, "- %s vs %s: not compared (%s)\n", d.A, d.B, cell(d.Error))
			case d.Identical:
				fmt.Fprintf(b, "- %s vs %s: identical\n", d.A, d.B)
			default:
				fmt.Fprintf(b, "- %s vs %s: %d of %d pages differ\n", d.A, d.B, d.PagesDiffering, d.PagesCompared)
			}
		}
		b.WriteString("\n")
	}

	r := c.Ranking
	if r == nil {
		return
	}
	b.WriteString("## Ranking\n\n")
	b.WriteString("| Backend | Score | Passed | Failed |\n|---|---|---|---|\n")
	for _, s := range r.Scores {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", s.Backend, num(s.Score), strings.Join(s.Passed, ", "), strings.Join(s.Failed, ", "))
	}
	b.WriteString("\n")
	switch {
	case r.Tie:
		fmt.Fprintf(b, "**Tie** between %s.\n", strings.Join(r.Tied, ", "))
	case r.Winner != "":
		fmt.Fprintf(b, "**Recommended backend: %s**\n", r.Winner)
	}
}

// Summary renders the batch summary.
func Summary(sum *orchestrator.Summary) string {
	var b strings.Builder
	b.WriteString("# Batch summary\n\n")
	fmt.Fprintf(&b, "- Root: `%s`\n", sum.Root)
	fmt.Fprintf(&b, "- Projects: %d (%d succeeded, %d failed)\n", len(sum.Projects), sum.Succeeded, sum.Failed)
	fmt.Fprintf(&b, "- Duration: %s\n\n", sum.Duration.Round(time.Millisecond))

	b.WriteString("| Project | Outcome | Winner | Backends | Note |\n|---|---|---|---|---|\n")
	for _, p := range sum.Projects {
		winner := p.Winner
		if len(p.Tied) > 0 {
			winner = "tie: " + strings.Join(p.Tied, ", ")
		}
		var parts []string
		for _, bs := range p.Backends {
			part := bs.Backend + " " + bs.State
			if bs.MaxTAC > 0 {
				part += " (" + num(bs.MaxTAC) + "%)"
			}
			parts = append(parts, part)
		}
		note := p.Error
		if note == "" && len(p.Warnings) > 0 {
			note = strings.Join(p.Warnings, "; ")
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", p.Name, outcome(p.Success), winner, strings.Join(parts, "<br>"), cell(note))
	}
	return b.String()
}

func num(v float64) string { return fmt.Sprintf("%.1f", v) }

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func code(s string) string {
	if s == "" {
		return ""
	}
	return "`" + s + "`"
}

// cell keeps a value on one table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func pageList(pages []int) string {
	s := make([]string, len(pages))
	for i, p := range pages {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ", ")
}
