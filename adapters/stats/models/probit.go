package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"

	"gonum.org/v1/gonum/stat/distuv"
)

// ProbitModel is P(d) = Phi(alpha + beta*d)
type ProbitModel struct{}

// NewProbitModel creates the two-parameter probit model
func NewProbitModel() *ProbitModel {
	return &ProbitModel{}
}

func (m *ProbitModel) Name() string { return "probit" }

func (m *ProbitModel) Description() string {
	return "Normal CDF in dose; background is implied by the intercept"
}

func (m *ProbitModel) ParamNames() []string { return []string{"alpha", "beta"} }

func (m *ProbitModel) Bounds() []bmd.Bound { return []bmd.Bound{unbounded, positive} }

func (m *ProbitModel) Response(dose float64, params []float64) float64 {
	return distuv.UnitNormal.CDF(params[0] + params[1]*dose)
}

// InitialParams regresses probit(fraction) on dose
func (m *ProbitModel) InitialParams(series doseresponse.Series) []float64 {
	fractions := make([]float64, series.Len())
	weights := make([]float64, series.Len())
	for i, g := range series.Groups {
		fractions[i] = adjustedFraction(g)
		weights[i] = float64(g.NumTotal)
	}

	alpha, beta, ok := linkRegression(series.Doses(), fractions, weights, distuv.UnitNormal.Quantile)
	if !ok || beta <= 0 {
		alpha = distuv.UnitNormal.Quantile(adjustedFraction(series.Groups[0]))
		beta = 1 / math.Max(series.MaxDose(), 1e-12)
	}
	return clampAll([]float64{alpha, beta}, m.Bounds())
}

// target is the probit of the response that sits bmr extra risk above background
func (m *ProbitModel) target(alpha, bmr float64) float64 {
	p0 := distuv.UnitNormal.CDF(alpha)
	return distuv.UnitNormal.Quantile(p0 + (1-p0)*bmr)
}

func (m *ProbitModel) BMD(params []float64, bmr float64) float64 {
	alpha, beta := params[0], params[1]
	if beta <= 0 {
		return math.NaN()
	}
	return validDose((m.target(alpha, bmr) - alpha) / beta)
}

func (m *ProbitModel) ProfileIndex() int { return 1 }

func (m *ProbitModel) Reparameterize(profile []float64, bmr float64) []float64 {
	alpha, bmdValue := profile[0], profile[1]
	beta := (m.target(alpha, bmr) - alpha) / bmdValue
	return []float64{alpha, beta}
}
