package benchmark

import (
	"fmt"

	"zebrabmd/adapters/stats/fitter"
	"zebrabmd/adapters/stats/models"
	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal/errors"
)

// Options parameterizes one engine. Every entry point receives it explicitly.
type Options struct {
	BMR               float64
	BMR50             float64
	PValueThreshold   float64
	Confidence        float64
	BMDLMaxIterations int
	BMDLTolerance     float64
	Fit               fitter.Settings
	CurvePoints       int
	// Models restricts the model library by name; empty means all eight
	Models []string
}

// DefaultOptions returns BMR 0.1, 90% BMDL confidence and a 0.1 p-value cut
func DefaultOptions() Options {
	return Options{
		BMR:               0.1,
		BMR50:             0.5,
		PValueThreshold:   0.1,
		Confidence:        0.9,
		BMDLMaxIterations: 1000,
		BMDLTolerance:     1e-4,
		Fit:               fitter.DefaultSettings(),
		CurvePoints:       100,
	}
}

// Validate rejects settings outside their mathematical domain
func (o Options) Validate() error {
	for name, v := range map[string]float64{"BMR": o.BMR, "BMR50": o.BMR50, "confidence": o.Confidence} {
		if !(v > 0 && v < 1) {
			return errors.ConfigInvalid(fmt.Sprintf("%s must lie in (0, 1), got %g", name, v))
		}
	}
	if o.PValueThreshold < 0 || o.PValueThreshold >= 1 {
		return errors.ConfigInvalid(fmt.Sprintf("p-value threshold must lie in [0, 1), got %g", o.PValueThreshold))
	}
	if o.BMDLMaxIterations <= 0 {
		return errors.ConfigInvalid("BMDL iteration cap must be positive")
	}
	if o.BMDLTolerance <= 0 {
		return errors.ConfigInvalid("BMDL tolerance must be positive")
	}
	return nil
}

// Engine runs the full estimation pipeline for one series at a time. It holds
// no mutable state, so one Engine may serve any number of goroutines.
type Engine struct {
	opts        Options
	models      []models.DoseResponseModel
	feasibility *Feasibility
	fitter      *fitter.Fitter
	calculator  *Calculator
	bmdl        *BMDLSolver
	aggregator  *Aggregator
}

// NewEngine validates opts and resolves the model list
func NewEngine(opts Options, registry *models.Registry) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = models.NewRegistry()
	}
	selected, err := registry.Select(opts.Models)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}

	f := fitter.New(opts.Fit)
	return &Engine{
		opts:        opts,
		models:      selected,
		feasibility: NewFeasibility(),
		fitter:      f,
		calculator:  NewCalculator(opts.BMR, opts.BMR50),
		bmdl:        NewBMDLSolver(f, opts.BMR, opts.Confidence, opts.BMDLMaxIterations, opts.BMDLTolerance),
		aggregator:  NewAggregator(),
	}, nil
}

// Options returns the engine settings
func (e *Engine) Options() Options { return e.opts }

// Models returns the model names the engine fits, in canonical order
func (e *Engine) Models() []string {
	names := make([]string, len(e.models))
	for i, m := range e.models {
		names[i] = m.Name()
	}
	return names
}

// Analyze classifies, fits, selects and aggregates one series. Only a
// malformed series is an error; every statistical failure is recorded in
// the result.
func (e *Engine) Analyze(series doseresponse.Series) (*bmd.UnitResult, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	result := &bmd.UnitResult{
		Key:          series.Key,
		Fingerprint:  series.Fingerprint(),
		QCFlag:       e.feasibility.Classify(series),
		DoseResponse: e.aggregator.DoseResponseTable(series),
	}

	if !result.QCFlag.Fittable() {
		result.Summary = Summarize(series, result.QCFlag, bmd.AnalysisPoorData, nil, false)
		return result, nil
	}

	result.Predictions = make([]bmd.ModelPrediction, len(e.models))
	for i, m := range e.models {
		result.Predictions[i] = e.predict(m, series)
	}

	result.Selection = SelectModel(result.Predictions, e.opts.PValueThreshold)
	code := AnalysisCodeFor(result.Selection)

	selected, ok := result.Selected()
	if !ok {
		result.Summary = Summarize(series, result.QCFlag, code, nil, result.Selection.PValueThresholdUsed)
		return result, nil
	}
	result.Summary = Summarize(series, result.QCFlag, code, &selected, result.Selection.PValueThresholdUsed)
	if m, ok := e.model(selected.Model); ok {
		result.Curve = Curve(m, selected.Params, series, e.opts.CurvePoints)
	}
	return result, nil
}

// predict produces one row of the model table
func (e *Engine) predict(m models.DoseResponseModel, series doseresponse.Series) bmd.ModelPrediction {
	fit := e.fitter.Fit(m, series)

	var (
		params    []float64
		ll        float64
		converged bool
	)
	switch r := fit.(type) {
	case bmd.Converged:
		params, ll, converged = r.Params, r.LogLikelihood, true
	case bmd.NotConverged:
		params, ll = r.Params, r.LogLikelihood
	}

	gof := e.aggregator.GoodnessOfFit(m, params, ll, series)
	bmd10, bmd50 := e.calculator.Doses(m, fit)
	bmdl := e.bmdl.Solve(m, series, fit, bmd10)

	return bmd.ModelPrediction{
		Model:           m.Name(),
		ChiSquared:      gof.ChiSquared,
		PValue:          gof.PValue,
		AIC:             gof.AIC,
		BMD10:           bmd10,
		BMDL10:          bmdl.BMDL,
		BMD50:           bmd50,
		ScaledResiduals: gof.ScaledResiduals,
		Params:          params,
		LogLikelihood:   ll,
		ModelConverged:  converged,
		BMDLConverged:   bmdl.Converged(),
		BMDLState:       bmdl.State,
	}
}

func (e *Engine) model(name string) (models.DoseResponseModel, bool) {
	for _, m := range e.models {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}
