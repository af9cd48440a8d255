package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
)

// LogLogisticModel is P(d) = g + (1-g) / (1 + exp(-alpha - beta*ln d))
type LogLogisticModel struct{}

// NewLogLogisticModel creates the three-parameter log-logistic model
func NewLogLogisticModel() *LogLogisticModel {
	return &LogLogisticModel{}
}

func (m *LogLogisticModel) Name() string { return "log_logistic" }

func (m *LogLogisticModel) Description() string {
	return "Logistic curve in log dose above a fitted background"
}

func (m *LogLogisticModel) ParamNames() []string { return []string{"g", "alpha", "beta"} }

func (m *LogLogisticModel) Bounds() []bmd.Bound {
	return []bmd.Bound{backgroundBnd, unbounded, logSlopeBnd}
}

// Response uses the d -> 0 limit (pure background) for the control group
func (m *LogLogisticModel) Response(dose float64, params []float64) float64 {
	g, alpha, beta := params[0], params[1], params[2]
	if dose <= 0 {
		return g
	}
	return g + (1-g)*sigmoid(alpha+beta*math.Log(dose))
}

// InitialParams regresses logit(extra risk) on log dose
func (m *LogLogisticModel) InitialParams(series doseresponse.Series) []float64 {
	g := backgroundEstimate(series)
	doses, risks, weights := extraRiskPoints(series, g)

	alpha, beta, ok := linkRegression(logDoses(doses), risks, weights, logit)
	if !ok || beta <= 0 {
		beta = 1
		alpha = -math.Log(math.Max(series.MaxDose(), 1e-12) / 2)
	}
	return clampAll([]float64{g, alpha, beta}, m.Bounds())
}

func (m *LogLogisticModel) BMD(params []float64, bmr float64) float64 {
	alpha, beta := params[1], params[2]
	if beta <= 0 {
		return math.NaN()
	}
	return validDose(math.Exp((logit(bmr) - alpha) / beta))
}

func (m *LogLogisticModel) ProfileIndex() int { return 1 }

func (m *LogLogisticModel) Reparameterize(profile []float64, bmr float64) []float64 {
	g, bmdValue, beta := profile[0], profile[1], profile[2]
	return []float64{g, logit(bmr) - beta*math.Log(bmdValue), beta}
}
