package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/core"
	"zebrabmd/ports"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"
)

// Renderer produces a Markdown run summary and its HTML rendering
type Renderer struct {
	title string
}

var _ ports.ReportRenderer = (*Renderer)(nil)

// NewRenderer creates a report renderer
func NewRenderer(title string) *Renderer {
	if title == "" {
		title = "Benchmark dose analysis"
	}
	return &Renderer{title: title}
}

// RenderReport implements ports.ReportRenderer, writing a complete HTML page
func (r *Renderer) RenderReport(runID core.RunID, results []*bmd.UnitResult, w io.Writer) error {
	md := r.Markdown(runID, results)

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: r.title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	_, err := w.Write(markdown.Render(doc, renderer))
	return err
}

// Markdown builds the report source
func (r *Renderer) Markdown(runID core.RunID, results []*bmd.UnitResult) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", r.title)
	fmt.Fprintf(&b, "Run `%s`: %d units.\n\n", runID, len(results))

	writeCounts(&b, "Analysis outcome", countBy(results, func(u *bmd.UnitResult) string {
		return string(u.Summary.AnalysisCode)
	}))
	writeCounts(&b, "Feasibility", countBy(results, func(u *bmd.UnitResult) string {
		return fmt.Sprintf("%d (%s)", u.QCFlag, u.QCFlag)
	}))

	var selected []*bmd.UnitResult
	var tied []*bmd.UnitResult
	for _, u := range results {
		switch {
		case u.Selection.HasSelection():
			selected = append(selected, u)
		case len(u.Selection.TiedModels) > 0:
			tied = append(tied, u)
		}
	}

	if len(selected) > 0 {
		b.WriteString("## Selected models\n\n")
		if med, ok := medianBMD(selected); ok {
			fmt.Fprintf(&b, "Median BMD10 across selected units: %s.\n\n", formatDose(med))
		}
		b.WriteString("| Chemical | Endpoint | Model | BMD10 | BMDL | BMD50 | Range |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, u := range selected {
			s := u.Summary
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				escape(s.ChemicalID), escape(s.Endpoint), s.Model,
				formatDose(s.BMD10), formatDose(s.BMDL), formatDose(s.BMD50), s.BMD10Flag)
		}
		b.WriteString("\n")
	}

	if len(tied) > 0 {
		b.WriteString("## Unresolved ties\n\n")
		for _, u := range tied {
			fmt.Fprintf(&b, "- %s / %s: %s (%s)\n",
				escape(u.Key.ChemicalID), escape(u.Key.Endpoint),
				strings.Join(u.Selection.TiedModels, ", "), u.Selection.Reason)
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

func countBy(results []*bmd.UnitResult, key func(*bmd.UnitResult) string) map[string]int {
	counts := make(map[string]int)
	for _, u := range results {
		counts[key(u)]++
	}
	return counts
}

func writeCounts(b *bytes.Buffer, heading string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "## %s\n\n| Code | Units |\n|---|---|\n", heading)
	for _, k := range keys {
		fmt.Fprintf(b, "| %s | %d |\n", k, counts[k])
	}
	b.WriteString("\n")
}

func medianBMD(results []*bmd.UnitResult) (float64, bool) {
	var values stats.Float64Data
	for _, u := range results {
		if v := u.Summary.BMD10; !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	}
	med, err := stats.Median(values)
	if err != nil {
		return 0, false
	}
	return med, true
}

func formatDose(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NA"
	}
	return fmt.Sprintf("%.4g", v)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
