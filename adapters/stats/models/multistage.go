package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
)

// MultistageModel is the degree-2 multistage model
// P(d) = g + (1-g) * (1 - exp(-beta1*d - beta2*d^2))
type MultistageModel struct{}

// NewMultistageModel creates the second-degree multistage model
func NewMultistageModel() *MultistageModel {
	return &MultistageModel{}
}

func (m *MultistageModel) Name() string { return "multistage_2" }

func (m *MultistageModel) Description() string {
	return "Second-degree multistage polynomial hazard above a fitted background"
}

func (m *MultistageModel) ParamNames() []string { return []string{"g", "beta1", "beta2"} }

func (m *MultistageModel) Bounds() []bmd.Bound {
	return []bmd.Bound{backgroundBnd, positive, positive}
}

func (m *MultistageModel) Response(dose float64, params []float64) float64 {
	g, b1, b2 := params[0], params[1], params[2]
	if dose <= 0 {
		return g
	}
	return g + (1-g)*(1-math.Exp(-b1*dose-b2*dose*dose))
}

// InitialParams solves the weighted normal equations of -ln(1-e) = b1*d + b2*d^2
func (m *MultistageModel) InitialParams(series doseresponse.Series) []float64 {
	g := backgroundEstimate(series)
	doses, risks, weights := extraRiskPoints(series, g)

	var s2, s3, s4, t1, t2 float64
	for i, d := range doses {
		w, y := weights[i], -math.Log(1-risks[i])
		s2 += w * d * d
		s3 += w * d * d * d
		s4 += w * d * d * d * d
		t1 += w * d * y
		t2 += w * d * d * y
	}

	det := s2*s4 - s3*s3
	b1, b2 := math.NaN(), math.NaN()
	if det > 0 {
		b1 = (t1*s4 - t2*s3) / det
		b2 = (s2*t2 - s3*t1) / det
	}
	if !(b1 > 0) || !(b2 > 0) {
		rate := quantalLinearRate(series, g)
		b1 = rate
		b2 = 0.1 * rate / math.Max(series.MaxDose(), 1e-12)
	}
	return clampAll([]float64{g, b1, b2}, m.Bounds())
}

// BMD returns the positive root of b2*x^2 + b1*x + ln(1-bmr) = 0
func (m *MultistageModel) BMD(params []float64, bmr float64) float64 {
	b1, b2 := params[1], params[2]
	c := math.Log(1 - bmr)
	if b1 < 0 || b2 < 0 {
		return math.NaN()
	}
	if b2 == 0 {
		if b1 == 0 {
			return math.NaN()
		}
		return validDose(-c / b1)
	}
	disc := b1*b1 - 4*b2*c
	if disc < 0 {
		return math.NaN()
	}
	return validDose((-b1 + math.Sqrt(disc)) / (2 * b2))
}

func (m *MultistageModel) ProfileIndex() int { return 1 }

func (m *MultistageModel) Reparameterize(profile []float64, bmr float64) []float64 {
	g, bmdValue, b2 := profile[0], profile[1], profile[2]
	b1 := (-math.Log(1-bmr) - b2*bmdValue*bmdValue) / bmdValue
	return []float64{g, b1, b2}
}
