package benchmark

import (
	"math"

	"zebrabmd/adapters/stats/fitter"
	"zebrabmd/adapters/stats/models"
	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal/analysis/brief"
)

// boundPenalty scales the quadratic penalty applied when a derived native
// parameter leaves its box during a profile sub-fit
const boundPenalty = 1e6

// BMDLSolver finds the lower confidence bound of the BMD by bisection on the
// profile log-likelihood
type BMDLSolver struct {
	fitter        *fitter.Fitter
	bmr           float64
	confidence    float64
	maxIterations int
	tolerance     float64
	dist          *brief.StatisticalDistributions
}

// NewBMDLSolver creates a solver
func NewBMDLSolver(f *fitter.Fitter, bmr, confidence float64, maxIterations int, tolerance float64) *BMDLSolver {
	return &BMDLSolver{
		fitter:        f,
		bmr:           bmr,
		confidence:    confidence,
		maxIterations: maxIterations,
		tolerance:     tolerance,
		dist:          brief.NewDistributions(),
	}
}

// Threshold is the profile log-likelihood value defining the bound
func (s *BMDLSolver) Threshold(bestLogLikelihood float64) float64 {
	return bestLogLikelihood - s.dist.ChiSquareQuantile(s.confidence, 1)/2
}

// Solve runs the search for one model. It never returns an error: every
// failure is a terminal state on the result.
func (s *BMDLSolver) Solve(m models.DoseResponseModel, series doseresponse.Series, fit bmd.FitResult, bmdValue float64) bmd.BMDLResult {
	conv, ok := fit.(bmd.Converged)
	if !ok || math.IsNaN(bmdValue) || bmdValue <= 0 {
		return bmd.BMDLResult{BMDL: bmd.Undefined(), State: bmd.BMDLFailed}
	}

	threshold := s.Threshold(conv.LogLikelihood)
	low, high := bmdValue/10, bmdValue

	for iter := 1; iter <= s.maxIterations; iter++ {
		mid := (low + high) / 2

		ll, ok := s.profile(m, series, conv.Params, mid)
		if !ok {
			return bmd.BMDLResult{BMDL: bmd.Undefined(), State: bmd.BMDLFailed, Iterations: iter}
		}

		if math.Abs(ll-threshold) < s.tolerance {
			return bmd.BMDLResult{BMDL: mid, State: bmd.BMDLConverged, Iterations: iter}
		}

		if ll > threshold {
			high = mid
		} else {
			low = mid
		}

		// a collapsed bracket cannot move mid any further
		if high-low <= math.Abs(high)*1e-15 {
			return bmd.BMDLResult{BMDL: bmd.Undefined(), State: bmd.BMDLMaxIterExceeded, Iterations: iter}
		}
	}

	return bmd.BMDLResult{BMDL: bmd.Undefined(), State: bmd.BMDLMaxIterExceeded, Iterations: s.maxIterations}
}

// profile maximizes the likelihood with the BMD pinned at candidate. The
// remaining parameters are free, seeded from the point estimates.
func (s *BMDLSolver) profile(m models.DoseResponseModel, series doseresponse.Series, estimate []float64, candidate float64) (float64, bool) {
	native := m.Bounds()
	derived := m.ProfileIndex()

	objective := func(profile []float64) float64 {
		params := m.Reparameterize(profile, s.bmr)
		v := params[derived]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.NaN()
		}

		b := native[derived]
		excess := 0.0
		switch {
		case v < b.Lower:
			excess = b.Lower - v
			params[derived] = b.Lower
		case v > b.Upper:
			excess = v - b.Upper
			params[derived] = b.Upper
		}
		return models.NegativeLogLikelihood(m, params, series.Groups) + boundPenalty*excess*excess
	}

	start := models.ProfileStart(m, estimate, candidate)
	res := s.fitter.Minimize(objective, start, models.ProfileBounds(m, candidate))

	conv, ok := res.(bmd.Converged)
	if !ok {
		return math.NaN(), false
	}
	return conv.LogLikelihood, true
}
