package benchmark

import (
	"math"
	"testing"

	"zebrabmd/adapters/stats/fitter"
	"zebrabmd/adapters/stats/models"
	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal/testkit"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(t *testing.T, doses []float64, affected, total []int) doseresponse.Series {
	t.Helper()
	s, err := doseresponse.NewSeries(doseresponse.UnitKey{ChemicalID: "C1", Endpoint: "MO24"}, doses, affected, total)
	require.NoError(t, err)
	return s
}

func scenarioA(t *testing.T) doseresponse.Series {
	return series(t,
		[]float64{0, 0.1, 0.5, 1.5, 5},
		[]int{0, 1, 1, 10, 15},
		[]int{26, 31, 16, 18, 17},
	)
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(opts, nil)
	require.NoError(t, err)
	return e
}

// ============================================================================
// Feasibility
// ============================================================================

func TestClassify(t *testing.T) {
	f := NewFeasibility()

	tests := []struct {
		name     string
		doses    []float64
		affected []int
		total    []int
		want     bmd.QCFlag
	}{
		{"two groups", []float64{0, 1}, []int{0, 10}, []int{20, 20}, bmd.QCTooFewDoses},
		{"single group", []float64{0}, []int{3}, []int{20}, bmd.QCTooFewDoses},
		{"flat", []float64{0, 1, 2, 3}, []int{2, 2, 2, 2}, []int{20, 20, 20, 20}, bmd.QCNoTrend},
		{"decreasing", []float64{0, 1, 2, 3, 4}, []int{10, 8, 6, 4, 2}, []int{20, 20, 20, 20, 20}, bmd.QCNoTrend},
		{"even steps", []float64{0, 1, 2, 3, 4}, []int{0, 5, 10, 15, 20}, []int{20, 20, 20, 20, 20}, bmd.QCGood},
		{"scenario A", []float64{0, 0.1, 0.5, 1.5, 5}, []int{0, 1, 1, 10, 15}, []int{26, 31, 16, 18, 17}, bmd.QCSatisfactory},
		{"noisy", []float64{0, 1, 2, 3, 4}, []int{0, 10, 2, 12, 3}, []int{20, 20, 20, 20, 20}, bmd.QCPoorResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := series(t, tt.doses, tt.affected, tt.total)
			assert.Equal(t, tt.want, f.Classify(s))
			assert.Equal(t, f.Classify(s), f.Classify(s), "classification is idempotent")
		})
	}
}

func TestAverageRanks(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, []float64(averageRanks([]float64{0.1, 0.3, 0.3, 0.9})))
	assert.Equal(t, []float64{3, 1, 2}, []float64(averageRanks([]float64{5, -1, 2})))
}

func TestSpearman_ConstantIsUndefined(t *testing.T) {
	_, ok := spearman([]float64{1, 2, 3}, []float64{0.4, 0.4, 0.4})
	assert.False(t, ok)

	rho, ok := spearman([]float64{1, 2, 3}, []float64{0.1, 0.2, 0.9})
	require.True(t, ok)
	assert.InDelta(t, 1.0, rho, 1e-12)
}

// ============================================================================
// BMD and BMDL
// ============================================================================

func TestCalculator_NotConvergedIsUndefined(t *testing.T) {
	c := NewCalculator(0.1, 0.5)
	m := models.NewLogisticModel()

	b10, b50 := c.Doses(m, bmd.NotConverged{Params: []float64{-2, 1}})
	assert.True(t, math.IsNaN(b10))
	assert.True(t, math.IsNaN(b50))

	b10, b50 = c.Doses(m, bmd.Converged{Params: []float64{-2, 1}})
	assert.InDelta(t, m.BMD([]float64{-2, 1}, 0.1), b10, 0)
	assert.Greater(t, b50, b10)
}

func TestBMDLSolver_Threshold(t *testing.T) {
	s := NewBMDLSolver(fitter.New(fitter.DefaultSettings()), 0.1, 0.9, 1000, 1e-4)
	assert.InDelta(t, -10-2.705543/2, s.Threshold(-10), 1e-6)
}

func TestBMDLSolver_LogisticScenarioA(t *testing.T) {
	s := scenarioA(t)
	m := models.NewLogisticModel()
	f := fitter.New(fitter.DefaultSettings())

	fit := f.Fit(m, s)
	conv, ok := fit.(bmd.Converged)
	require.True(t, ok)
	bmd10 := m.BMD(conv.Params, 0.1)
	require.False(t, math.IsNaN(bmd10))

	solver := NewBMDLSolver(f, 0.1, 0.9, 1000, 1e-4)
	res := solver.Solve(m, s, fit, bmd10)

	require.Equal(t, bmd.BMDLConverged, res.State, "iterations=%d", res.Iterations)
	assert.True(t, res.Converged())
	assert.LessOrEqual(t, res.BMDL, bmd10)
	assert.GreaterOrEqual(t, res.BMDL, bmd10/10)
	t.Logf("bmd10=%.4f bmdl=%.4f iterations=%d", bmd10, res.BMDL, res.Iterations)
}

func TestBMDLSolver_TerminalStates(t *testing.T) {
	s := scenarioA(t)
	m := models.NewLogisticModel()
	f := fitter.New(fitter.DefaultSettings())

	t.Run("unconverged fit", func(t *testing.T) {
		solver := NewBMDLSolver(f, 0.1, 0.9, 1000, 1e-4)
		res := solver.Solve(m, s, bmd.NotConverged{Params: []float64{-2, 1}}, 1)
		assert.Equal(t, bmd.BMDLFailed, res.State)
		assert.True(t, math.IsNaN(res.BMDL))
	})

	t.Run("undefined bmd", func(t *testing.T) {
		solver := NewBMDLSolver(f, 0.1, 0.9, 1000, 1e-4)
		res := solver.Solve(m, s, bmd.Converged{Params: []float64{-2, 1}}, math.NaN())
		assert.Equal(t, bmd.BMDLFailed, res.State)
	})

	t.Run("iteration cap", func(t *testing.T) {
		fit := f.Fit(m, s)
		conv, ok := fit.(bmd.Converged)
		require.True(t, ok)

		solver := NewBMDLSolver(f, 0.1, 0.9, 1, 1e-300)
		res := solver.Solve(m, s, fit, m.BMD(conv.Params, 0.1))
		assert.Equal(t, bmd.BMDLMaxIterExceeded, res.State)
		assert.True(t, math.IsNaN(res.BMDL))
		assert.False(t, res.Converged())
	})

	t.Run("constrained sub-fit not converged", func(t *testing.T) {
		fit := f.Fit(m, s)
		conv, ok := fit.(bmd.Converged)
		require.True(t, ok)

		capped := fitter.New(fitter.Settings{MaxIterations: 1})
		solver := NewBMDLSolver(capped, 0.1, 0.9, 1000, 1e-4)
		res := solver.Solve(m, s, fit, m.BMD(conv.Params, 0.1))
		assert.Equal(t, bmd.BMDLFailed, res.State)
		assert.Equal(t, 1, res.Iterations)
		assert.True(t, math.IsNaN(res.BMDL))
		assert.False(t, res.Converged())
	})

	t.Run("separated series", func(t *testing.T) {
		sep := series(t, []float64{0, 1, 2, 3}, []int{0, 0, 20, 20}, []int{20, 20, 20, 20})
		fit := f.Fit(m, sep)
		bmd10 := math.NaN()
		if conv, ok := fit.(bmd.Converged); ok {
			bmd10 = m.BMD(conv.Params, 0.1)
		}

		solver := NewBMDLSolver(f, 0.1, 0.9, 1000, 1e-4)
		res := solver.Solve(m, sep, fit, bmd10)
		assert.Equal(t, bmd.BMDLFailed, res.State)
		assert.True(t, math.IsNaN(res.BMDL))
	})
}

// ============================================================================
// Selection
// ============================================================================

func row(name string, p, aic float64, converged, bmdlOK bool) bmd.ModelPrediction {
	return bmd.ModelPrediction{Model: name, PValue: p, AIC: aic, ModelConverged: converged, BMDLConverged: bmdlOK}
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		name    string
		table   []bmd.ModelPrediction
		model   string
		reason  bmd.SelectionReason
		amb     bmd.Ambiguity
		relaxed bool
		tied    []string
	}{
		{
			name:   "nothing converged",
			table:  []bmd.ModelPrediction{row("logistic", 0.5, 10, false, false), row("gamma", 0.5, 9, false, true)},
			reason: bmd.ReasonNoConvergence,
			amb:    bmd.AmbiguityNoConvergence,
		},
		{
			name:   "empty table",
			reason: bmd.ReasonNoConvergence,
			amb:    bmd.AmbiguityNoConvergence,
		},
		{
			name:   "unique minimum AIC",
			table:  []bmd.ModelPrediction{row("logistic", 0.5, 10, true, true), row("gamma", 0.4, 9, true, false), row("probit", 0.3, 8, false, true)},
			model:  "gamma",
			reason: bmd.ReasonSelected,
			amb:    bmd.AmbiguityNone,
		},
		{
			name:   "p-value filter applies before AIC",
			table:  []bmd.ModelPrediction{row("logistic", 0.5, 10, true, true), row("gamma", 0.05, 9, true, true)},
			model:  "logistic",
			reason: bmd.ReasonSelected,
			amb:    bmd.AmbiguityNone,
		},
		{
			name:    "no p-value pass relaxes filter",
			table:   []bmd.ModelPrediction{row("logistic", 0.01, 10, true, true), row("gamma", math.NaN(), 9, true, true)},
			model:   "gamma",
			reason:  bmd.ReasonNoPValuePass,
			amb:     bmd.AmbiguityNone,
			relaxed: true,
		},
		{
			name:   "tie broken by BMDL validity",
			table:  []bmd.ModelPrediction{row("logistic", 0.5, 9, true, false), row("gamma", 0.5, 9, true, true)},
			model:  "gamma",
			reason: bmd.ReasonSelected,
			amb:    bmd.AmbiguityNone,
		},
		{
			name:   "tie without valid BMDL",
			table:  []bmd.ModelPrediction{row("logistic", 0.5, 9, true, false), row("gamma", 0.5, 9, true, false)},
			reason: bmd.ReasonTiedNoBMDL,
			amb:    bmd.AmbiguityMultipleTied,
			tied:   []string{"logistic", "gamma"},
		},
		{
			name:   "AICs apart by rounding are not tied",
			table:  []bmd.ModelPrediction{row("logistic", 0.5, 9+1e-12, true, true), row("weibull", 0.5, 9, true, true)},
			model:  "weibull",
			reason: bmd.ReasonSelected,
			amb:    bmd.AmbiguityNone,
		},
		{
			name: "scenario D: tie with valid BMDLs",
			table: []bmd.ModelPrediction{
				row("logistic", 0.5, 9, true, true),
				row("gamma", 0.5, 9, true, true),
				row("weibull", 0.5, 11, true, true),
			},
			reason: bmd.ReasonTied,
			amb:    bmd.AmbiguityMultipleTied,
			tied:   []string{"logistic", "gamma"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectModel(tt.table, 0.1)
			assert.Equal(t, tt.model, got.SelectedModel)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.amb, got.Ambiguity)
			assert.Equal(t, tt.relaxed, got.PValueThresholdUsed)
			assert.Equal(t, tt.tied, got.TiedModels)
			assert.Equal(t, tt.model != "", got.HasSelection())

			again := SelectModel(tt.table, 0.1)
			assert.Empty(t, cmp.Diff(got, again), "selection is deterministic")
		})
	}
}

func TestAnalysisCodeFor(t *testing.T) {
	assert.Equal(t, bmd.AnalysisSelected, AnalysisCodeFor(bmd.SelectionResult{Reason: bmd.ReasonSelected}))
	assert.Equal(t, bmd.AnalysisNoPValuePass, AnalysisCodeFor(bmd.SelectionResult{Reason: bmd.ReasonNoPValuePass}))
	assert.Equal(t, bmd.AnalysisTiedNoBMDL, AnalysisCodeFor(bmd.SelectionResult{Reason: bmd.ReasonTiedNoBMDL}))
	assert.Equal(t, bmd.AnalysisTied, AnalysisCodeFor(bmd.SelectionResult{Reason: bmd.ReasonTied}))
	assert.Equal(t, bmd.AnalysisNoConvergence, AnalysisCodeFor(bmd.SelectionResult{Reason: bmd.ReasonNoConvergence}))
}

// ============================================================================
// Aggregation
// ============================================================================

func TestGoodnessOfFit(t *testing.T) {
	a := NewAggregator()
	m := models.NewQuantalLinearModel()
	s := series(t, []float64{0, 1, 2}, []int{1, 4, 9}, []int{10, 10, 10})
	params := []float64{0.1, 0.5}

	gof := a.GoodnessOfFit(m, params, -12, s)
	require.Len(t, gof.ScaledResiduals, 3)

	p0 := m.Response(0, params)
	assert.InDelta(t, 0.1, p0, 1e-12)
	assert.InDelta(t, 0, gof.ScaledResiduals[0], 1e-12, "prediction equals observation at control")

	p1 := m.Response(1, params)
	want := (p1 - 0.4) / math.Sqrt(p1*(1-p1)/10)
	assert.InDelta(t, want, gof.ScaledResiduals[1], 1e-12)

	sum := 0.0
	for _, r := range gof.ScaledResiduals {
		sum += r * r
	}
	assert.InDelta(t, sum, gof.ChiSquared, 1e-12)
	assert.InDelta(t, 24+4, gof.AIC, 1e-12)
	assert.False(t, math.IsNaN(gof.PValue), "one degree of freedom remains")

	saturated := a.GoodnessOfFit(models.NewGammaModel(), []float64{0.1, 1, 0.5}, -12, s)
	assert.True(t, math.IsNaN(saturated.PValue), "zero degrees of freedom")
}

func TestScaledResidual_ZeroVariance(t *testing.T) {
	g := doseresponse.DoseGroup{Dose: 0, NumAffected: 0, NumTotal: 10}
	assert.Equal(t, 0.0, scaledResidual(0, g))
	assert.True(t, math.IsNaN(scaledResidual(1, g)))
}

func TestAUC(t *testing.T) {
	s := series(t, []float64{0, 1, 2}, []int{0, 5, 10}, []int{10, 10, 10})
	auc, norm := AUC(s)
	assert.InDelta(t, 1.0, auc, 1e-12)
	assert.InDelta(t, 0.5, norm, 1e-12)

	one := series(t, []float64{0}, []int{0}, []int{10})
	auc, norm = AUC(one)
	assert.True(t, math.IsNaN(auc))
	assert.True(t, math.IsNaN(norm))
}

func TestRangeFlagFor(t *testing.T) {
	s := scenarioA(t)
	assert.Equal(t, bmd.RangeUndefined, RangeFlagFor(math.NaN(), s))
	assert.Equal(t, bmd.RangeBelow, RangeFlagFor(0.05, s))
	assert.Equal(t, bmd.RangeInside, RangeFlagFor(0.1, s))
	assert.Equal(t, bmd.RangeInside, RangeFlagFor(2, s))
	assert.Equal(t, bmd.RangeAbove, RangeFlagFor(7, s))
}

func TestDoseResponseTable(t *testing.T) {
	s := series(t, []float64{0, 1}, []int{0, 5}, []int{10, 10})
	rows := NewAggregator().DoseResponseTable(s)
	require.Len(t, rows, 2)

	assert.Equal(t, 0.0, rows[0].Response)
	assert.InDelta(t, 0.0, rows[0].CILower, 1e-12)
	assert.Greater(t, rows[0].CIUpper, 0.0)

	assert.Equal(t, 0.5, rows[1].Response)
	assert.InDelta(t, 0.2366, rows[1].CILower, 1e-4)
	assert.InDelta(t, 0.7634, rows[1].CIUpper, 1e-4)
}

func TestCurve(t *testing.T) {
	s := scenarioA(t)
	m := models.NewLogisticModel()
	params := []float64{-2, 1}

	curve := Curve(m, params, s, 11)
	require.Len(t, curve, 11)
	assert.Equal(t, 0.0, curve[0].Dose)
	assert.Equal(t, 5.0, curve[10].Dose)
	assert.InDelta(t, 2.5, curve[5].Dose, 1e-12)
	for i := 1; i < len(curve); i++ {
		assert.Greater(t, curve[i].Response, curve[i-1].Response)
	}

	assert.Nil(t, Curve(m, params, s, 1))
}

// ============================================================================
// Engine
// ============================================================================

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	bad := DefaultOptions()
	bad.BMR = 1
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.BMDLMaxIterations = 0
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.Models = []string{"hill"}
	_, err := NewEngine(bad, nil)
	assert.Error(t, err)
}

func TestEngine_ScenarioA(t *testing.T) {
	e := newEngine(t, DefaultOptions())
	res, err := e.Analyze(scenarioA(t))
	require.NoError(t, err)

	assert.Contains(t, []bmd.QCFlag{bmd.QCGood, bmd.QCSatisfactory}, res.QCFlag)
	require.Len(t, res.Predictions, 8)
	assert.Len(t, res.DoseResponse, 5)

	var logistic bmd.ModelPrediction
	for _, p := range res.Predictions {
		if p.Model == "logistic" {
			logistic = p
		}
		if p.ModelConverged && p.BMDLConverged {
			assert.LessOrEqual(t, p.BMDL10, p.BMD10, p.Model)
		}
		if !p.ModelConverged {
			assert.True(t, math.IsNaN(p.BMD10), p.Model)
		}
	}
	require.True(t, logistic.ModelConverged)
	require.True(t, logistic.BMDLConverged, "logistic BMDL state %s", logistic.BMDLState)
	assert.Equal(t, bmd.BMDLConverged, logistic.BMDLState)
	assert.LessOrEqual(t, logistic.BMDL10, logistic.BMD10)
	assert.GreaterOrEqual(t, logistic.BMDL10, logistic.BMD10/10)
	assert.Greater(t, logistic.BMD10, 0.1)
	assert.Less(t, logistic.BMD10, 5.0)
	assert.Len(t, logistic.ScaledResiduals, 5)

	assert.Equal(t, res.Selection.Reason != bmd.ReasonNoConvergence, res.Summary.AnalysisCode != bmd.AnalysisNoConvergence)
	if sel, ok := res.Selected(); ok {
		assert.Equal(t, sel.Model, res.Summary.Model)
		assert.Equal(t, sel.BMDL10, res.Summary.BMDL)
		assert.Len(t, res.Curve, DefaultOptions().CurvePoints)
	}
	assert.Equal(t, "C1", res.Summary.ChemicalID)
	assert.Equal(t, 0.0, res.Summary.MinDose)
	assert.Equal(t, 5.0, res.Summary.MaxDose)
}

func TestEngine_ScenarioB(t *testing.T) {
	e := newEngine(t, DefaultOptions())
	res, err := e.Analyze(series(t, []float64{0, 1}, []int{0, 8}, []int{20, 20}))
	require.NoError(t, err)

	assert.Equal(t, bmd.QCTooFewDoses, res.QCFlag)
	assert.Empty(t, res.Predictions)
	assert.Empty(t, res.Curve)
	assert.Equal(t, bmd.AnalysisPoorData, res.Summary.AnalysisCode)
	assert.True(t, math.IsNaN(res.Summary.BMD10))
	assert.True(t, math.IsNaN(res.Summary.BMDL))
	assert.True(t, math.IsNaN(res.Summary.BMD50))
	assert.Equal(t, bmd.RangeUndefined, res.Summary.BMD10Flag)
	assert.False(t, res.Selection.HasSelection())
}

func TestEngine_ScenarioC(t *testing.T) {
	e := newEngine(t, DefaultOptions())
	res, err := e.Analyze(series(t, []float64{0, 1, 2, 3}, []int{3, 3, 3, 3}, []int{20, 20, 20, 20}))
	require.NoError(t, err)

	assert.Equal(t, bmd.QCNoTrend, res.QCFlag)
	assert.Empty(t, res.Predictions)
	assert.Equal(t, bmd.AnalysisPoorData, res.Summary.AnalysisCode)
}

func TestEngine_InvalidSeries(t *testing.T) {
	e := newEngine(t, DefaultOptions())
	_, err := e.Analyze(doseresponse.Series{
		Groups: []doseresponse.DoseGroup{{Dose: 1, NumAffected: 0, NumTotal: 10}},
	})
	assert.Error(t, err)
}

func TestEngine_Deterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.Models = []string{"logistic", "quantal_linear"}
	e := newEngine(t, opts)
	assert.Equal(t, []string{"logistic", "quantal_linear"}, e.Models())

	first, err := e.Analyze(scenarioA(t))
	require.NoError(t, err)
	second, err := e.Analyze(scenarioA(t))
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second, cmpopts.EquateNaNs()))
}

func TestEngine_RecoversSyntheticBMD(t *testing.T) {
	cfg := testkit.DefaultGeneratorConfig()
	cfg.PerGroup = 1000
	gen := testkit.NewGenerator(cfg)

	opts := DefaultOptions()
	opts.Models = []string{"log_logistic"}
	engine, err := NewEngine(opts, nil)
	require.NoError(t, err)

	res, err := engine.Analyze(gen.Series("synthetic"))
	require.NoError(t, err)
	require.True(t, res.QCFlag.Fittable(), "qc flag %d", res.QCFlag)
	require.Len(t, res.Predictions, 1)

	p := res.Predictions[0]
	require.True(t, p.ModelConverged)
	truth := gen.TrueBMD(opts.BMR)
	t.Logf("true BMD10 %.4f, estimate %.4f, BMDL %.4f", truth, p.BMD10, p.BMDL10)
	assert.InEpsilon(t, truth, p.BMD10, 0.2)
	if p.BMDLConverged {
		assert.Less(t, p.BMDL10, p.BMD10)
	}
}
