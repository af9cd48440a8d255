package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"

	"gonum.org/v1/gonum/mathext"
)

// GammaModel is P(d) = g + (1-g) * P(alpha, beta*d), with P the regularized
// lower incomplete gamma function
type GammaModel struct{}

// NewGammaModel creates the three-parameter gamma model
func NewGammaModel() *GammaModel {
	return &GammaModel{}
}

func (m *GammaModel) Name() string { return "gamma" }

func (m *GammaModel) Description() string {
	return "Gamma CDF in dose above a fitted background"
}

func (m *GammaModel) ParamNames() []string { return []string{"g", "alpha", "beta"} }

func (m *GammaModel) Bounds() []bmd.Bound {
	return []bmd.Bound{backgroundBnd, gammaShapeBnd, positive}
}

func (m *GammaModel) Response(dose float64, params []float64) float64 {
	g, alpha, beta := params[0], params[1], params[2]
	if dose <= 0 {
		return g
	}
	return g + (1-g)*mathext.GammaIncReg(alpha, beta*dose)
}

// InitialParams starts from the exponential special case (alpha = 1)
func (m *GammaModel) InitialParams(series doseresponse.Series) []float64 {
	g := backgroundEstimate(series)
	return clampAll([]float64{g, 1, quantalLinearRate(series, g)}, m.Bounds())
}

func (m *GammaModel) BMD(params []float64, bmr float64) float64 {
	alpha, beta := params[1], params[2]
	if beta <= 0 || alpha <= 0 {
		return math.NaN()
	}
	return validDose(mathext.GammaIncRegInv(alpha, bmr) / beta)
}

func (m *GammaModel) ProfileIndex() int { return 2 }

func (m *GammaModel) Reparameterize(profile []float64, bmr float64) []float64 {
	g, alpha, bmdValue := profile[0], profile[1], profile[2]
	return []float64{g, alpha, mathext.GammaIncRegInv(alpha, bmr) / bmdValue}
}
