package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
)

// QuantalLinearModel is P(d) = g + (1-g) * (1 - exp(-beta*d))
type QuantalLinearModel struct{}

// NewQuantalLinearModel creates the two-parameter quantal-linear model
func NewQuantalLinearModel() *QuantalLinearModel {
	return &QuantalLinearModel{}
}

func (m *QuantalLinearModel) Name() string { return "quantal_linear" }

func (m *QuantalLinearModel) Description() string {
	return "One-hit exponential model above a fitted background"
}

func (m *QuantalLinearModel) ParamNames() []string { return []string{"g", "beta"} }

func (m *QuantalLinearModel) Bounds() []bmd.Bound {
	return []bmd.Bound{backgroundBnd, positive}
}

func (m *QuantalLinearModel) Response(dose float64, params []float64) float64 {
	g, beta := params[0], params[1]
	if dose <= 0 {
		return g
	}
	return g + (1-g)*(1-math.Exp(-beta*dose))
}

func (m *QuantalLinearModel) InitialParams(series doseresponse.Series) []float64 {
	g := backgroundEstimate(series)
	return clampAll([]float64{g, quantalLinearRate(series, g)}, m.Bounds())
}

func (m *QuantalLinearModel) BMD(params []float64, bmr float64) float64 {
	beta := params[1]
	if beta <= 0 {
		return math.NaN()
	}
	return validDose(-math.Log(1-bmr) / beta)
}

func (m *QuantalLinearModel) ProfileIndex() int { return 1 }

func (m *QuantalLinearModel) Reparameterize(profile []float64, bmr float64) []float64 {
	g, bmdValue := profile[0], profile[1]
	return []float64{g, -math.Log(1-bmr) / bmdValue}
}
