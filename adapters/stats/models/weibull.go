package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
)

// WeibullModel is P(d) = g + (1-g) * (1 - exp(-beta * d^alpha))
type WeibullModel struct{}

// NewWeibullModel creates the three-parameter Weibull model
func NewWeibullModel() *WeibullModel {
	return &WeibullModel{}
}

func (m *WeibullModel) Name() string { return "weibull" }

func (m *WeibullModel) Description() string {
	return "Weibull CDF in dose above a fitted background"
}

func (m *WeibullModel) ParamNames() []string { return []string{"g", "alpha", "beta"} }

func (m *WeibullModel) Bounds() []bmd.Bound {
	return []bmd.Bound{backgroundBnd, powerShapeBnd, positive}
}

func (m *WeibullModel) Response(dose float64, params []float64) float64 {
	g, alpha, beta := params[0], params[1], params[2]
	if dose <= 0 {
		return g
	}
	return g + (1-g)*(1-math.Exp(-beta*math.Pow(dose, alpha)))
}

// InitialParams regresses the complementary log-log of extra risk on log dose
func (m *WeibullModel) InitialParams(series doseresponse.Series) []float64 {
	g := backgroundEstimate(series)
	doses, risks, weights := extraRiskPoints(series, g)

	intercept, slope, ok := linkRegression(logDoses(doses), risks, weights, func(e float64) float64 {
		return math.Log(-math.Log(1 - e))
	})
	alpha, beta := slope, math.Exp(intercept)
	if !ok || alpha <= 0 {
		alpha, beta = 1, quantalLinearRate(series, g)
	}
	return clampAll([]float64{g, alpha, beta}, m.Bounds())
}

func (m *WeibullModel) BMD(params []float64, bmr float64) float64 {
	alpha, beta := params[1], params[2]
	if beta <= 0 || alpha <= 0 {
		return math.NaN()
	}
	return validDose(math.Pow(-math.Log(1-bmr)/beta, 1/alpha))
}

func (m *WeibullModel) ProfileIndex() int { return 2 }

func (m *WeibullModel) Reparameterize(profile []float64, bmr float64) []float64 {
	g, alpha, bmdValue := profile[0], profile[1], profile[2]
	return []float64{g, alpha, -math.Log(1-bmr) / math.Pow(bmdValue, alpha)}
}
