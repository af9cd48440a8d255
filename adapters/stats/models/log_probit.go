package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"

	"gonum.org/v1/gonum/stat/distuv"
)

// LogProbitModel is P(d) = g + (1-g) * Phi(alpha + beta*ln d)
type LogProbitModel struct{}

// NewLogProbitModel creates the three-parameter log-probit model
func NewLogProbitModel() *LogProbitModel {
	return &LogProbitModel{}
}

func (m *LogProbitModel) Name() string { return "log_probit" }

func (m *LogProbitModel) Description() string {
	return "Normal CDF in log dose above a fitted background"
}

func (m *LogProbitModel) ParamNames() []string { return []string{"g", "alpha", "beta"} }

func (m *LogProbitModel) Bounds() []bmd.Bound {
	return []bmd.Bound{backgroundBnd, unbounded, logSlopeBnd}
}

func (m *LogProbitModel) Response(dose float64, params []float64) float64 {
	g, alpha, beta := params[0], params[1], params[2]
	if dose <= 0 {
		return g
	}
	return g + (1-g)*distuv.UnitNormal.CDF(alpha+beta*math.Log(dose))
}

// InitialParams regresses probit(extra risk) on log dose
func (m *LogProbitModel) InitialParams(series doseresponse.Series) []float64 {
	g := backgroundEstimate(series)
	doses, risks, weights := extraRiskPoints(series, g)

	alpha, beta, ok := linkRegression(logDoses(doses), risks, weights, distuv.UnitNormal.Quantile)
	if !ok || beta <= 0 {
		beta = 1
		alpha = -math.Log(math.Max(series.MaxDose(), 1e-12) / 2)
	}
	return clampAll([]float64{g, alpha, beta}, m.Bounds())
}

func (m *LogProbitModel) BMD(params []float64, bmr float64) float64 {
	alpha, beta := params[1], params[2]
	if beta <= 0 {
		return math.NaN()
	}
	return validDose(math.Exp((distuv.UnitNormal.Quantile(bmr) - alpha) / beta))
}

func (m *LogProbitModel) ProfileIndex() int { return 1 }

func (m *LogProbitModel) Reparameterize(profile []float64, bmr float64) []float64 {
	g, bmdValue, beta := profile[0], profile[1], profile[2]
	return []float64{g, distuv.UnitNormal.Quantile(bmr) - beta*math.Log(bmdValue), beta}
}
