package report

import (
	"bytes"
	"math"
	"testing"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/core"
	"zebrabmd/domain/doseresponse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtures() []*bmd.UnitResult {
	return []*bmd.UnitResult{
		{
			Key:       doseresponse.UnitKey{ChemicalID: "C1", Endpoint: "MO24"},
			QCFlag:    bmd.QCGood,
			Selection: bmd.SelectionResult{SelectedModel: "logistic", Reason: bmd.ReasonSelected},
			Summary: bmd.Summary{ChemicalID: "C1", Endpoint: "MO24", Model: "logistic",
				BMD10: 0.5, BMDL: 0.3, BMD50: 2, AnalysisCode: bmd.AnalysisSelected},
		},
		{
			Key:       doseresponse.UnitKey{ChemicalID: "C2", Endpoint: "MO24"},
			QCFlag:    bmd.QCSatisfactory,
			Selection: bmd.SelectionResult{SelectedModel: "gamma", Reason: bmd.ReasonSelected},
			Summary: bmd.Summary{ChemicalID: "C2", Endpoint: "MO24", Model: "gamma",
				BMD10: 1.5, BMDL: math.NaN(), BMD50: 4, AnalysisCode: bmd.AnalysisSelected},
		},
		{
			Key:    doseresponse.UnitKey{ChemicalID: "C3", Endpoint: "YSE"},
			QCFlag: bmd.QCGood,
			Selection: bmd.SelectionResult{Reason: bmd.ReasonTied, Ambiguity: bmd.AmbiguityMultipleTied,
				TiedModels: []string{"logistic", "probit"}},
			Summary: bmd.Summary{ChemicalID: "C3", Endpoint: "YSE", BMD10: math.NaN(), AnalysisCode: bmd.AnalysisTied},
		},
		{
			Key:     doseresponse.UnitKey{ChemicalID: "C4", Endpoint: "AXIS"},
			QCFlag:  bmd.QCNoTrend,
			Summary: bmd.Summary{ChemicalID: "C4", Endpoint: "AXIS", BMD10: math.NaN(), AnalysisCode: bmd.AnalysisPoorData},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := string(NewRenderer("").Markdown(core.RunID("run-7"), fixtures()))

	assert.Contains(t, md, "# Benchmark dose analysis")
	assert.Contains(t, md, "Run `run-7`: 4 units.")
	assert.Contains(t, md, "| SELECTED | 2 |")
	assert.Contains(t, md, "| POOR_DATA | 1 |")
	assert.Contains(t, md, "| 1 (no_trend) | 1 |")
	assert.Contains(t, md, "Median BMD10 across selected units: 1.")
	assert.Contains(t, md, "| C2 | MO24 | gamma | 1.5 | NA | 4 | inside |")
	assert.Contains(t, md, "- C3 / YSE: logistic, probit (TIED_NO_UNIQUE_MODEL)")
}

func TestRenderReport_HTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer("Zebrafish BMD").RenderReport(core.RunID("run-7"), fixtures(), &buf))

	out := buf.String()
	assert.Contains(t, out, "<title>Zebrafish BMD</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "gamma")
}
