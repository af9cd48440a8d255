package fitter

import (
	"math"

	"zebrabmd/adapters/stats/models"
	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// penalty replaces non-finite objective values so line searches can back off
const penalty = 1e100

// Objective is a function to minimize over the native parameter vector
type Objective func(params []float64) float64

// Settings caps the optimizer
type Settings struct {
	MaxIterations     int
	MaxEvaluations    int
	GradientThreshold float64
	// FunctionTolerance is the absolute/relative change below which the
	// objective is considered stationary
	FunctionTolerance float64
}

// DefaultSettings caps a fit at 10000 iterations and 5000 objective evaluations
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:     10000,
		MaxEvaluations:    5000,
		GradientThreshold: 1e-6,
		FunctionTolerance: 1e-10,
	}
}

// Fitter performs bounded maximum-likelihood estimation.
//
// Box constraints are enforced by optimizing in an unconstrained space:
// each bounded coordinate is mapped through a logistic (two-sided) or
// exponential (one-sided) transform and fixed coordinates (Lower == Upper)
// are removed from the search entirely. L-BFGS runs on the transformed
// coordinates with central finite-difference gradients.
type Fitter struct {
	settings Settings
}

// New creates a fitter
func New(settings Settings) *Fitter {
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = DefaultSettings().MaxIterations
	}
	if settings.MaxEvaluations <= 0 {
		settings.MaxEvaluations = DefaultSettings().MaxEvaluations
	}
	if settings.GradientThreshold <= 0 {
		settings.GradientThreshold = DefaultSettings().GradientThreshold
	}
	if settings.FunctionTolerance <= 0 {
		settings.FunctionTolerance = DefaultSettings().FunctionTolerance
	}
	return &Fitter{settings: settings}
}

// Fit maximizes the binomial likelihood of model over the series
func (f *Fitter) Fit(model models.DoseResponseModel, series doseresponse.Series) bmd.FitResult {
	objective := func(params []float64) float64 {
		return models.NegativeLogLikelihood(model, params, series.Groups)
	}
	return f.Minimize(objective, model.InitialParams(series), model.Bounds())
}

// Minimize minimizes objective from start under bounds. The reported
// LogLikelihood is the negated objective at the final location.
func (f *Fitter) Minimize(objective Objective, start []float64, bounds []bmd.Bound) bmd.FitResult {
	tr := newTransform(bounds, start)

	if len(tr.free) == 0 {
		x := tr.native(nil)
		value := objective(x)
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return bmd.NotConverged{Params: x, LogLikelihood: -value, Status: "non-finite objective"}
		}
		return bmd.Converged{Params: x, LogLikelihood: -value}
	}

	if v := objective(tr.native(tr.start())); math.IsNaN(v) || math.IsInf(v, 0) {
		x := tr.native(tr.start())
		return bmd.NotConverged{Params: x, LogLikelihood: -v, Status: "non-finite objective at start"}
	}

	inner := func(z []float64) float64 {
		v := objective(tr.native(z))
		if math.IsNaN(v) || math.IsInf(v, 1) {
			return penalty
		}
		return v
	}
	gradSettings := &fd.Settings{Formula: fd.Central}

	problem := optimize.Problem{
		Func: inner,
		Grad: func(grad, z []float64) {
			fd.Gradient(grad, inner, z, gradSettings)
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   f.settings.MaxIterations,
		FuncEvaluations:   f.settings.MaxEvaluations,
		GradientThreshold: f.settings.GradientThreshold,
		Converger: &optimize.FunctionConverge{
			Absolute:   f.settings.FunctionTolerance,
			Relative:   f.settings.FunctionTolerance,
			Iterations: 20,
		},
	}

	result, err := optimize.Minimize(problem, tr.start(), settings, &optimize.LBFGS{})
	if result == nil {
		x := tr.native(tr.start())
		return bmd.NotConverged{Params: x, LogLikelihood: -objective(x), Status: errorStatus(err)}
	}

	x := tr.native(result.X)
	logLik := -result.F
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return bmd.NotConverged{Params: x, LogLikelihood: logLik, Status: "non-finite objective"}
	}

	if err == nil && converged(result.Status) {
		return bmd.Converged{Params: x, LogLikelihood: logLik, Iterations: result.MajorIterations}
	}

	// A line search that cannot make progress at a stationary point is still an optimum
	if result.Status == optimize.Failure && f.stationary(inner, result.X, result.F) {
		return bmd.Converged{Params: x, LogLikelihood: logLik, Iterations: result.MajorIterations}
	}

	status := result.Status.String()
	if err != nil {
		status = err.Error()
	}
	return bmd.NotConverged{Params: x, LogLikelihood: logLik, Status: status}
}

// stationary checks the projected gradient at z relative to the objective scale
func (f *Fitter) stationary(inner func([]float64) float64, z []float64, value float64) bool {
	grad := fd.Gradient(nil, inner, z, &fd.Settings{Formula: fd.Central})
	norm := floats.Norm(grad, math.Inf(1))
	return norm <= 1e-4*math.Max(1, math.Abs(value))
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}

func errorStatus(err error) string {
	if err == nil {
		return "optimizer returned no result"
	}
	return err.Error()
}
