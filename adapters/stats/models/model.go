package models

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"

	"gonum.org/v1/gonum/stat"
)

// DoseResponseModel is one parametric family of dichotomous dose-response curves
type DoseResponseModel interface {
	Name() string
	Description() string
	ParamNames() []string
	Bounds() []bmd.Bound

	// Response returns the probability of effect at dose, in [0, 1] for valid params
	Response(dose float64, params []float64) float64

	// InitialParams seeds the optimizer from the observed series
	InitialParams(series doseresponse.Series) []float64

	// BMD inverts the extra-risk equation at bmr; NaN when the inversion is undefined
	BMD(params []float64, bmr float64) float64

	// ProfileIndex is the native parameter re-derived from a fixed BMD
	ProfileIndex() int

	// Reparameterize maps a profile vector (native params with the BMD stored at
	// ProfileIndex) back to native params
	Reparameterize(profile []float64, bmr float64) []float64
}

const (
	// probEpsilon keeps log-likelihood terms finite at the edges of [0, 1]
	probEpsilon = 1e-15

	// background bounds shared by every model with a g parameter
	backgroundLower = 1e-5
	backgroundUpper = 0.99

	shapeUpper = 18.0
)

var (
	unbounded     = bmd.Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
	positive      = bmd.Bound{Lower: 0, Upper: math.Inf(1)}
	backgroundBnd = bmd.Bound{Lower: backgroundLower, Upper: backgroundUpper}
	gammaShapeBnd = bmd.Bound{Lower: 0.2, Upper: shapeUpper}
	powerShapeBnd = bmd.Bound{Lower: 0.05, Upper: shapeUpper}
	logSlopeBnd   = bmd.Bound{Lower: 0.05, Upper: shapeUpper}
)

// LogLikelihood is the binomial log-likelihood of params over the dose groups
func LogLikelihood(m DoseResponseModel, params []float64, groups []doseresponse.DoseGroup) float64 {
	ll := 0.0
	for _, g := range groups {
		p := m.Response(g.Dose, params)
		if math.IsNaN(p) {
			return math.Inf(-1)
		}
		p = clipProbability(p)

		affected := float64(g.NumAffected)
		unaffected := float64(g.NumTotal - g.NumAffected)
		if affected > 0 {
			ll += affected * math.Log(p)
		}
		if unaffected > 0 {
			ll += unaffected * math.Log(1-p)
		}
	}
	return ll
}

// NegativeLogLikelihood is the objective minimized by the fitter
func NegativeLogLikelihood(m DoseResponseModel, params []float64, groups []doseresponse.DoseGroup) float64 {
	return -LogLikelihood(m, params, groups)
}

// ExtraRisk returns (P(d) - P(0)) / (1 - P(0))
func ExtraRisk(m DoseResponseModel, dose float64, params []float64) float64 {
	p0 := m.Response(0, params)
	if p0 >= 1 {
		return math.NaN()
	}
	return (m.Response(dose, params) - p0) / (1 - p0)
}

// ProfileBounds returns the model bounds with the profiled coordinate pinned at bmdValue
func ProfileBounds(m DoseResponseModel, bmdValue float64) []bmd.Bound {
	bounds := append([]bmd.Bound(nil), m.Bounds()...)
	bounds[m.ProfileIndex()] = bmd.Bound{Lower: bmdValue, Upper: bmdValue}
	return bounds
}

// ProfileStart builds the profile vector from point estimates and a candidate BMD
func ProfileStart(m DoseResponseModel, params []float64, bmdValue float64) []float64 {
	start := append([]float64(nil), params...)
	start[m.ProfileIndex()] = bmdValue
	return start
}

func clipProbability(p float64) float64 {
	return math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
}

// validDose returns x when it is a usable benchmark dose, NaN otherwise
func validDose(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return math.NaN()
	}
	return x
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// ============================================================================
// Initial-parameter heuristics
// ============================================================================

// adjustedFraction shrinks k/n towards 1/2 so that link transforms stay finite
func adjustedFraction(g doseresponse.DoseGroup) float64 {
	return (float64(g.NumAffected) + 0.5) / (float64(g.NumTotal) + 1)
}

// backgroundEstimate seeds g from the control group
func backgroundEstimate(series doseresponse.Series) float64 {
	return interior(adjustedFraction(series.Groups[0]), backgroundBnd)
}

// extraRiskPoints returns dose, clamped extra risk and weight for every non-zero dose
func extraRiskPoints(series doseresponse.Series, background float64) (doses, risks, weights []float64) {
	for _, g := range series.Groups {
		if g.Dose <= 0 {
			continue
		}
		e := (adjustedFraction(g) - background) / (1 - background)
		doses = append(doses, g.Dose)
		risks = append(risks, math.Min(math.Max(e, 0.005), 0.995))
		weights = append(weights, float64(g.NumTotal))
	}
	return doses, risks, weights
}

// linkRegression fits link(y) = a + b*x by weighted least squares
func linkRegression(x, y, w []float64, link func(float64) float64) (intercept, slope float64, ok bool) {
	if len(x) < 2 {
		return 0, 0, false
	}
	ty := make([]float64, len(y))
	for i, v := range y {
		ty[i] = link(v)
	}
	intercept, slope = stat.LinearRegression(x, ty, w, false)
	if math.IsNaN(intercept) || math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, 0, false
	}
	return intercept, slope, true
}

// quantalLinearRate fits -ln(1-e) = beta*d through the origin
func quantalLinearRate(series doseresponse.Series, background float64) float64 {
	doses, risks, weights := extraRiskPoints(series, background)
	var num, den float64
	for i, d := range doses {
		num += weights[i] * d * -math.Log(1-risks[i])
		den += weights[i] * d * d
	}
	if den > 0 && num > 0 {
		return num / den
	}
	return 1 / math.Max(series.MaxDose(), 1e-12)
}

func logDoses(doses []float64) []float64 {
	out := make([]float64, len(doses))
	for i, d := range doses {
		out[i] = math.Log(d)
	}
	return out
}

// interior moves v strictly inside b so the fitter's bound transform is finite
func interior(v float64, b bmd.Bound) float64 {
	if b.Fixed() {
		return b.Lower
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		switch {
		case !math.IsInf(b.Lower, 0) && !math.IsInf(b.Upper, 0):
			v = (b.Lower + b.Upper) / 2
		case !math.IsInf(b.Lower, 0):
			v = b.Lower + 1
		case !math.IsInf(b.Upper, 0):
			v = b.Upper - 1
		default:
			v = 0
		}
	}
	if !math.IsInf(b.Lower, 0) && v <= b.Lower {
		v = b.Lower + 1e-6*math.Max(1, math.Abs(b.Lower))
	}
	if !math.IsInf(b.Upper, 0) && v >= b.Upper {
		v = b.Upper - 1e-6*math.Max(1, math.Abs(b.Upper))
	}
	return v
}

// clampAll applies interior to each parameter
func clampAll(params []float64, bounds []bmd.Bound) []float64 {
	out := make([]float64, len(params))
	for i := range params {
		out[i] = interior(params[i], bounds[i])
	}
	return out
}
