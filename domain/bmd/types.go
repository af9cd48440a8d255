package bmd

import (
	"math"

	"zebrabmd/domain/core"
	"zebrabmd/domain/doseresponse"
)

// ============================================================================
// FEASIBILITY
// ============================================================================

// QCFlag classifies whether and how reliably a series can be fitted
type QCFlag int

const (
	QCTooFewDoses    QCFlag = 0 // fewer than 3 dose groups
	QCNoTrend        QCFlag = 1 // Spearman rho undefined or < 0.2
	QCGood           QCFlag = 2 // trend t-test p < 0.05
	QCSatisfactory   QCFlag = 3 // 0.05 <= p < 0.32
	QCPoorResolution QCFlag = 4 // p >= 0.32
)

// Fittable reports whether models should be fitted for this flag
func (f QCFlag) Fittable() bool {
	return f >= QCGood
}

func (f QCFlag) String() string {
	switch f {
	case QCTooFewDoses:
		return "too_few_doses"
	case QCNoTrend:
		return "no_trend"
	case QCGood:
		return "good"
	case QCSatisfactory:
		return "satisfactory"
	case QCPoorResolution:
		return "poor_resolution"
	}
	return "unknown"
}

// ============================================================================
// FITTING
// ============================================================================

// Bound is a closed box constraint on one parameter. Lower == Upper fixes it.
type Bound struct {
	Lower float64
	Upper float64
}

// Fixed reports whether the bound pins the parameter to a single value
func (b Bound) Fixed() bool {
	return b.Lower == b.Upper
}

// Contains reports whether v lies inside the bound
func (b Bound) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// FitResult is the outcome of one maximum-likelihood fit: Converged or NotConverged
type FitResult interface {
	fitResult()
}

// Converged carries the optimum of a fit that met the optimizer's convergence criterion
type Converged struct {
	Params        []float64
	LogLikelihood float64
	Iterations    int
}

// NotConverged carries the last location of a fit that stopped without converging
type NotConverged struct {
	Params        []float64
	LogLikelihood float64
	Status        string
}

func (Converged) fitResult()    {}
func (NotConverged) fitResult() {}

// BMDLState is the terminal state of the profile-likelihood bisection.
// The zero value is not a valid state.
type BMDLState int

const (
	BMDLConverged BMDLState = iota + 1
	BMDLFailed
	BMDLMaxIterExceeded
)

func (s BMDLState) String() string {
	switch s {
	case BMDLConverged:
		return "converged"
	case BMDLFailed:
		return "failed"
	case BMDLMaxIterExceeded:
		return "max_iter_exceeded"
	}
	return "unknown"
}

// BMDLResult is the terminal state of a BMDL search
type BMDLResult struct {
	BMDL       float64
	State      BMDLState
	Iterations int
}

// Converged reports whether the search met its tolerance
func (r BMDLResult) Converged() bool {
	return r.State == BMDLConverged
}

// ModelPrediction is one row of the per-unit model table. Never mutated after creation.
type ModelPrediction struct {
	Model           string    `json:"model"`
	ChiSquared      float64   `json:"chi_squared"`
	PValue          float64   `json:"p_value"`
	AIC             float64   `json:"aic"`
	BMD10           float64   `json:"bmd10"`
	BMDL10          float64   `json:"bmdl10"`
	BMD50           float64   `json:"bmd50"`
	ScaledResiduals []float64 `json:"scaled_residuals"`
	Params          []float64 `json:"optimized_params"`
	LogLikelihood   float64   `json:"log_likelihood"`
	ModelConverged  bool      `json:"model_converged"`
	BMDLConverged   bool      `json:"bmdl_converged"`
	BMDLState       BMDLState `json:"-"`
}

// ============================================================================
// SELECTION
// ============================================================================

// Ambiguity describes whether selection produced a unique model
type Ambiguity string

const (
	AmbiguityNone          Ambiguity = "NONE"
	AmbiguityNoConvergence Ambiguity = "NO_CONVERGENCE"
	AmbiguityMultipleTied  Ambiguity = "MULTIPLE_MODELS_TIED"
)

// SelectionReason distinguishes how selection terminated
type SelectionReason string

const (
	ReasonSelected      SelectionReason = "SELECTED"
	ReasonNoConvergence SelectionReason = "NO_CONVERGENCE"
	ReasonNoPValuePass  SelectionReason = "NO_PVALUE_PASS" // selected after relaxing the p-value filter
	ReasonTiedNoBMDL    SelectionReason = "TIED_NO_VALID_BMDL"
	ReasonTied          SelectionReason = "TIED_NO_UNIQUE_MODEL"
)

// SelectionResult is the terminal output of the model selector
type SelectionResult struct {
	SelectedModel       string          `json:"selected_model,omitempty"`
	Ambiguity           Ambiguity       `json:"ambiguity"`
	Reason              SelectionReason `json:"reason"`
	PValueThresholdUsed bool            `json:"pvalue_threshold_used"`
	TiedModels          []string        `json:"tied_models,omitempty"`
}

// HasSelection reports whether a unique model was selected
func (r SelectionResult) HasSelection() bool {
	return r.SelectedModel != ""
}

// ============================================================================
// OUTPUT RECORDS
// ============================================================================

// AnalysisCode summarises the pipeline outcome on the BMD summary record
type AnalysisCode string

const (
	AnalysisPoorData      AnalysisCode = "POOR_DATA"
	AnalysisSelected      AnalysisCode = "SELECTED"
	AnalysisNoPValuePass  AnalysisCode = "NO_PVALUE_PASS"
	AnalysisNoConvergence AnalysisCode = "NO_CONVERGENCE"
	AnalysisTiedNoBMDL    AnalysisCode = "TIED_NO_BMDL"
	AnalysisTied          AnalysisCode = "TIED"
)

// RangeFlag warns when a benchmark dose is extrapolated outside the tested doses
type RangeFlag int

const (
	RangeInside    RangeFlag = 0
	RangeBelow     RangeFlag = 1 // below the lowest non-zero dose
	RangeAbove     RangeFlag = 2 // above the maximum dose
	RangeUndefined RangeFlag = 3 // BMD not available
)

func (f RangeFlag) String() string {
	switch f {
	case RangeInside:
		return "inside"
	case RangeBelow:
		return "below"
	case RangeAbove:
		return "above"
	}
	return "undefined"
}

// Summary is the BMD summary record for one unit
type Summary struct {
	ChemicalID          string       `json:"chemical_id"`
	Endpoint            string       `json:"endpoint"`
	Model               string       `json:"model"`
	BMD10               float64      `json:"bmd10"`
	BMDL                float64      `json:"bmdl"`
	BMD50               float64      `json:"bmd50"`
	AUC                 float64      `json:"auc"`
	AUCNorm             float64      `json:"auc_norm"`
	MinDose             float64      `json:"min_dose"`
	MaxDose             float64      `json:"max_dose"`
	QCFlag              QCFlag       `json:"qc_flag"`
	AnalysisCode        AnalysisCode `json:"analysis_code"`
	BMD10Flag           RangeFlag    `json:"bmd10_flag"`
	BMD50Flag           RangeFlag    `json:"bmd50_flag"`
	PValueThresholdUsed bool         `json:"pvalue_threshold_used"`
}

// CurvePoint is one sample of the selected model's fitted curve
type CurvePoint struct {
	Dose     float64 `json:"dose"`
	Response float64 `json:"response"`
}

// UnitResult is the complete, self-contained output for one (chemical, endpoint)
type UnitResult struct {
	Key          doseresponse.UnitKey `json:"key"`
	Fingerprint  core.Hash            `json:"fingerprint"`
	QCFlag       QCFlag               `json:"qc_flag"`
	Predictions  []ModelPrediction    `json:"predictions"`
	Selection    SelectionResult      `json:"selection"`
	Summary      Summary              `json:"summary"`
	DoseResponse []doseresponse.Row   `json:"dose_response"`
	Curve        []CurvePoint         `json:"curve,omitempty"`
}

// Selected returns the prediction row of the selected model, if any
func (r *UnitResult) Selected() (ModelPrediction, bool) {
	if !r.Selection.HasSelection() {
		return ModelPrediction{}, false
	}
	for _, p := range r.Predictions {
		if p.Model == r.Selection.SelectedModel {
			return p, true
		}
	}
	return ModelPrediction{}, false
}

// Undefined is the value used for BMD/BMDL fields that could not be computed
func Undefined() float64 {
	return math.NaN()
}
