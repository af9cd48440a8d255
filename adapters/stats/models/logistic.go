package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
)

// LogisticModel is P(d) = 1 / (1 + exp(-alpha - beta*d))
type LogisticModel struct{}

// NewLogisticModel creates the two-parameter logistic model
func NewLogisticModel() *LogisticModel {
	return &LogisticModel{}
}

func (m *LogisticModel) Name() string { return "logistic" }

func (m *LogisticModel) Description() string {
	return "Logistic curve in dose; background is implied by the intercept"
}

func (m *LogisticModel) ParamNames() []string { return []string{"alpha", "beta"} }

func (m *LogisticModel) Bounds() []bmd.Bound { return []bmd.Bound{unbounded, positive} }

func (m *LogisticModel) Response(dose float64, params []float64) float64 {
	return sigmoid(params[0] + params[1]*dose)
}

// InitialParams regresses logit(fraction) on dose
func (m *LogisticModel) InitialParams(series doseresponse.Series) []float64 {
	fractions := make([]float64, series.Len())
	weights := make([]float64, series.Len())
	for i, g := range series.Groups {
		fractions[i] = adjustedFraction(g)
		weights[i] = float64(g.NumTotal)
	}

	alpha, beta, ok := linkRegression(series.Doses(), fractions, weights, logit)
	if !ok || beta <= 0 {
		alpha = logit(adjustedFraction(series.Groups[0]))
		beta = 1 / math.Max(series.MaxDose(), 1e-12)
	}
	return clampAll([]float64{alpha, beta}, m.Bounds())
}

func (m *LogisticModel) BMD(params []float64, bmr float64) float64 {
	alpha, beta := params[0], params[1]
	if beta <= 0 {
		return math.NaN()
	}
	return validDose(math.Log((1+math.Exp(-alpha)*bmr)/(1-bmr)) / beta)
}

func (m *LogisticModel) ProfileIndex() int { return 1 }

func (m *LogisticModel) Reparameterize(profile []float64, bmr float64) []float64 {
	alpha, bmdValue := profile[0], profile[1]
	beta := math.Log((1+math.Exp(-alpha)*bmr)/(1-bmr)) / bmdValue
	return []float64{alpha, beta}
}
