package benchmark

import (
	"math"

	"zebrabmd/adapters/stats/models"
	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal/analysis/brief"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// doseResponseConfidence is the coverage of the per-group Wilson intervals
const doseResponseConfidence = 0.95

// GoodnessOfFit holds the fit statistics of one model over one series
type GoodnessOfFit struct {
	ScaledResiduals []float64
	ChiSquared      float64
	PValue          float64
	AIC             float64
}

// Aggregator assembles the per-unit output records
type Aggregator struct {
	dist *brief.StatisticalDistributions
}

// NewAggregator creates an aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{dist: brief.NewDistributions()}
}

// GoodnessOfFit computes scaled residuals, Pearson chi-square, its p-value
// on n_groups - n_params degrees of freedom and AIC
func (a *Aggregator) GoodnessOfFit(m models.DoseResponseModel, params []float64, logLikelihood float64, series doseresponse.Series) GoodnessOfFit {
	residuals := make([]float64, series.Len())
	chi2 := 0.0
	for i, g := range series.Groups {
		residuals[i] = scaledResidual(m.Response(g.Dose, params), g)
		chi2 += residuals[i] * residuals[i]
	}

	k := len(params)
	return GoodnessOfFit{
		ScaledResiduals: residuals,
		ChiSquared:      chi2,
		PValue:          a.dist.ChiSquarePValue(chi2, series.Len()-k),
		AIC:             -2*logLikelihood + 2*float64(k),
	}
}

// scaledResidual is (predicted - observed) / sqrt(p(1-p)/n). A zero variance
// contributes nothing when prediction and observation agree.
func scaledResidual(predicted float64, g doseresponse.DoseGroup) float64 {
	if math.IsNaN(predicted) {
		return math.NaN()
	}
	observed := g.Fraction()
	variance := predicted * (1 - predicted) / float64(g.NumTotal)
	if variance <= 0 {
		if predicted == observed {
			return 0
		}
		return math.NaN()
	}
	return (predicted - observed) / math.Sqrt(variance)
}

// DoseResponseTable lists the observed fraction with Wilson bounds per dose group
func (a *Aggregator) DoseResponseTable(series doseresponse.Series) []doseresponse.Row {
	rows := make([]doseresponse.Row, series.Len())
	for i, g := range series.Groups {
		lo, hi := a.dist.WilsonInterval(g.NumAffected, g.NumTotal, doseResponseConfidence)
		rows[i] = doseresponse.Row{
			Dose:        g.Dose,
			NumAffected: g.NumAffected,
			NumTotal:    g.NumTotal,
			Response:    g.Fraction(),
			CILower:     lo,
			CIUpper:     hi,
		}
	}
	return rows
}

// AUC is the trapezoidal area under (dose, fraction affected) and that area
// divided by the dose range
func AUC(series doseresponse.Series) (auc, normalized float64) {
	if series.Len() < 2 {
		return bmd.Undefined(), bmd.Undefined()
	}
	auc = integrate.Trapezoidal(series.Doses(), series.Fractions())
	span := series.MaxDose() - series.MinDose()
	if span <= 0 {
		return auc, bmd.Undefined()
	}
	return auc, auc / span
}

// RangeFlagFor reports extrapolation of a benchmark dose outside the tested doses
func RangeFlagFor(dose float64, series doseresponse.Series) bmd.RangeFlag {
	if math.IsNaN(dose) || math.IsInf(dose, 0) {
		return bmd.RangeUndefined
	}
	if lowest, ok := lowestNonZeroDose(series); ok && dose < lowest {
		return bmd.RangeBelow
	}
	if dose > series.MaxDose() {
		return bmd.RangeAbove
	}
	return bmd.RangeInside
}

func lowestNonZeroDose(series doseresponse.Series) (float64, bool) {
	for _, g := range series.Groups {
		if g.Dose > 0 {
			return g.Dose, true
		}
	}
	return 0, false
}

// Curve samples m on an evenly spaced grid over the tested dose range
func Curve(m models.DoseResponseModel, params []float64, series doseresponse.Series, points int) []bmd.CurvePoint {
	if points < 2 || series.Len() == 0 {
		return nil
	}
	doses := floats.Span(make([]float64, points), series.MinDose(), series.MaxDose())
	curve := make([]bmd.CurvePoint, points)
	for i, d := range doses {
		curve[i] = bmd.CurvePoint{Dose: d, Response: m.Response(d, params)}
	}
	return curve
}

// Summarize builds the BMD summary record. A nil selected row produces the
// record with undefined benchmark doses.
func Summarize(series doseresponse.Series, qc bmd.QCFlag, code bmd.AnalysisCode, selected *bmd.ModelPrediction, relaxed bool) bmd.Summary {
	auc, aucNorm := AUC(series)
	s := bmd.Summary{
		ChemicalID:          series.Key.ChemicalID,
		Endpoint:            series.Key.Endpoint,
		BMD10:               bmd.Undefined(),
		BMDL:                bmd.Undefined(),
		BMD50:               bmd.Undefined(),
		AUC:                 auc,
		AUCNorm:             aucNorm,
		MinDose:             series.MinDose(),
		MaxDose:             series.MaxDose(),
		QCFlag:              qc,
		AnalysisCode:        code,
		BMD10Flag:           bmd.RangeUndefined,
		BMD50Flag:           bmd.RangeUndefined,
		PValueThresholdUsed: relaxed,
	}
	if selected == nil {
		return s
	}

	s.Model = selected.Model
	s.BMD10 = selected.BMD10
	s.BMDL = selected.BMDL10
	s.BMD50 = selected.BMD50
	s.BMD10Flag = RangeFlagFor(selected.BMD10, series)
	s.BMD50Flag = RangeFlagFor(selected.BMD50, series)
	return s
}
