package benchmark

import (
	"math"

	"zebrabmd/domain/bmd"
)

// SelectModel picks the best-supported model from a prediction table.
//
// Converged rows are filtered to p-value > threshold (all converged rows are
// kept when none pass), then ranked by AIC. Rows tied at the minimum AIC are
// narrowed to those with a converged BMDL; anything other than exactly one
// survivor is reported as a tie. The result depends only on the table.
func SelectModel(table []bmd.ModelPrediction, pValueThreshold float64) bmd.SelectionResult {
	var converged []bmd.ModelPrediction
	for _, row := range table {
		if row.ModelConverged {
			converged = append(converged, row)
		}
	}
	if len(converged) == 0 {
		return bmd.SelectionResult{
			Ambiguity: bmd.AmbiguityNoConvergence,
			Reason:    bmd.ReasonNoConvergence,
		}
	}

	var retained []bmd.ModelPrediction
	for _, row := range converged {
		if row.PValue > pValueThreshold {
			retained = append(retained, row)
		}
	}
	relaxed := len(retained) == 0
	if relaxed {
		retained = converged
	}

	tied := minimumAIC(retained)
	if len(tied) == 0 {
		return bmd.SelectionResult{
			Ambiguity:           bmd.AmbiguityNoConvergence,
			Reason:              bmd.ReasonNoConvergence,
			PValueThresholdUsed: relaxed,
		}
	}
	if len(tied) == 1 {
		return selected(tied[0].Model, relaxed)
	}

	var withBMDL []bmd.ModelPrediction
	for _, row := range tied {
		if row.BMDLConverged {
			withBMDL = append(withBMDL, row)
		}
	}

	switch len(withBMDL) {
	case 1:
		return selected(withBMDL[0].Model, relaxed)
	case 0:
		return bmd.SelectionResult{
			Ambiguity:           bmd.AmbiguityMultipleTied,
			Reason:              bmd.ReasonTiedNoBMDL,
			PValueThresholdUsed: relaxed,
			TiedModels:          modelNames(tied),
		}
	}
	return bmd.SelectionResult{
		Ambiguity:           bmd.AmbiguityMultipleTied,
		Reason:              bmd.ReasonTied,
		PValueThresholdUsed: relaxed,
		TiedModels:          modelNames(withBMDL),
	}
}

func selected(model string, relaxed bool) bmd.SelectionResult {
	reason := bmd.ReasonSelected
	if relaxed {
		reason = bmd.ReasonNoPValuePass
	}
	return bmd.SelectionResult{
		SelectedModel:       model,
		Ambiguity:           bmd.AmbiguityNone,
		Reason:              reason,
		PValueThresholdUsed: relaxed,
	}
}

// minimumAIC returns the rows sharing the smallest finite AIC, in table order.
// Ties are exact: near-saturated fits whose AICs differ only by optimizer
// noise split on that noise instead of reaching the BMDL tie-break.
func minimumAIC(rows []bmd.ModelPrediction) []bmd.ModelPrediction {
	best := math.Inf(1)
	for _, row := range rows {
		if !math.IsNaN(row.AIC) && row.AIC < best {
			best = row.AIC
		}
	}
	if math.IsInf(best, 1) {
		return nil
	}

	var out []bmd.ModelPrediction
	for _, row := range rows {
		if row.AIC == best {
			out = append(out, row)
		}
	}
	return out
}

func modelNames(rows []bmd.ModelPrediction) []string {
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Model
	}
	return names
}

// AnalysisCodeFor maps a selection outcome onto the summary analysis code
func AnalysisCodeFor(sel bmd.SelectionResult) bmd.AnalysisCode {
	switch sel.Reason {
	case bmd.ReasonSelected:
		return bmd.AnalysisSelected
	case bmd.ReasonNoPValuePass:
		return bmd.AnalysisNoPValuePass
	case bmd.ReasonTiedNoBMDL:
		return bmd.AnalysisTiedNoBMDL
	case bmd.ReasonTied:
		return bmd.AnalysisTied
	}
	return bmd.AnalysisNoConvergence
}
