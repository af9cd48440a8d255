package api

import (
	"math"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
)

// FitRequest carries one unit as parallel columns
type FitRequest struct {
	ChemicalID  string    `json:"chemical_id"`
	Endpoint    string    `json:"endpoint"`
	Doses       []float64 `json:"doses"`
	NumAffected []int     `json:"num_affected"`
	NumTotal    []int     `json:"num_total"`
}

// Series validates the request into a dose-response series
func (r FitRequest) Series() (doseresponse.Series, error) {
	key := doseresponse.UnitKey{ChemicalID: r.ChemicalID, Endpoint: r.Endpoint}
	return doseresponse.NewSeries(key, r.Doses, r.NumAffected, r.NumTotal)
}

// Undefined values (NaN) are encoded as JSON null, which encoding/json cannot do for float64.

type predictionDTO struct {
	Model           string     `json:"model"`
	ChiSquared      *float64   `json:"chi_squared"`
	PValue          *float64   `json:"p_value"`
	AIC             *float64   `json:"aic"`
	BMD10           *float64   `json:"bmd10"`
	BMDL10          *float64   `json:"bmdl10"`
	BMD50           *float64   `json:"bmd50"`
	ScaledResiduals []*float64 `json:"scaled_residuals"`
	Params          []*float64 `json:"optimized_params"`
	LogLikelihood   *float64   `json:"log_likelihood"`
	ModelConverged  bool       `json:"model_converged"`
	BMDLConverged   bool       `json:"bmdl_converged"`
	BMDLState       string     `json:"bmdl_state"`
}

type summaryDTO struct {
	ChemicalID          string   `json:"chemical_id"`
	Endpoint            string   `json:"endpoint"`
	Model               string   `json:"model"`
	BMD10               *float64 `json:"bmd10"`
	BMDL                *float64 `json:"bmdl"`
	BMD50               *float64 `json:"bmd50"`
	AUC                 *float64 `json:"auc"`
	AUCNorm             *float64 `json:"auc_norm"`
	MinDose             *float64 `json:"min_dose"`
	MaxDose             *float64 `json:"max_dose"`
	QCFlag              int      `json:"qc_flag"`
	AnalysisCode        string   `json:"analysis_code"`
	BMD10Flag           int      `json:"bmd10_flag"`
	BMD50Flag           int      `json:"bmd50_flag"`
	PValueThresholdUsed bool     `json:"pvalue_threshold_used"`
}

type rowDTO struct {
	Dose        float64  `json:"dose"`
	NumAffected int      `json:"num_affected"`
	NumTotal    int      `json:"num_total"`
	Response    float64  `json:"response"`
	CILower     *float64 `json:"ci_lower"`
	CIUpper     *float64 `json:"ci_upper"`
}

type curveDTO struct {
	Dose     float64  `json:"dose"`
	Response *float64 `json:"response"`
}

// UnitResponse is the JSON form of one unit result
type UnitResponse struct {
	ChemicalID   string              `json:"chemical_id"`
	Endpoint     string              `json:"endpoint"`
	Fingerprint  string              `json:"fingerprint"`
	QCFlag       int                 `json:"qc_flag"`
	QCLabel      string              `json:"qc_label"`
	Predictions  []predictionDTO     `json:"predictions"`
	Selection    bmd.SelectionResult `json:"selection"`
	Summary      summaryDTO          `json:"summary"`
	DoseResponse []rowDTO            `json:"dose_response"`
	Curve        []curveDTO          `json:"curve,omitempty"`
}

// NewUnitResponse converts a unit result for encoding
func NewUnitResponse(r *bmd.UnitResult) UnitResponse {
	out := UnitResponse{
		ChemicalID:   r.Key.ChemicalID,
		Endpoint:     r.Key.Endpoint,
		Fingerprint:  r.Fingerprint.String(),
		QCFlag:       int(r.QCFlag),
		QCLabel:      r.QCFlag.String(),
		Predictions:  make([]predictionDTO, len(r.Predictions)),
		Selection:    r.Selection,
		DoseResponse: make([]rowDTO, len(r.DoseResponse)),
	}
	for i, p := range r.Predictions {
		out.Predictions[i] = predictionDTO{
			Model:           p.Model,
			ChiSquared:      number(p.ChiSquared),
			PValue:          number(p.PValue),
			AIC:             number(p.AIC),
			BMD10:           number(p.BMD10),
			BMDL10:          number(p.BMDL10),
			BMD50:           number(p.BMD50),
			ScaledResiduals: numbers(p.ScaledResiduals),
			Params:          numbers(p.Params),
			LogLikelihood:   number(p.LogLikelihood),
			ModelConverged:  p.ModelConverged,
			BMDLConverged:   p.BMDLConverged,
			BMDLState:       p.BMDLState.String(),
		}
	}

	s := r.Summary
	out.Summary = summaryDTO{
		ChemicalID:          s.ChemicalID,
		Endpoint:            s.Endpoint,
		Model:               s.Model,
		BMD10:               number(s.BMD10),
		BMDL:                number(s.BMDL),
		BMD50:               number(s.BMD50),
		AUC:                 number(s.AUC),
		AUCNorm:             number(s.AUCNorm),
		MinDose:             number(s.MinDose),
		MaxDose:             number(s.MaxDose),
		QCFlag:              int(s.QCFlag),
		AnalysisCode:        string(s.AnalysisCode),
		BMD10Flag:           int(s.BMD10Flag),
		BMD50Flag:           int(s.BMD50Flag),
		PValueThresholdUsed: s.PValueThresholdUsed,
	}

	for i, row := range r.DoseResponse {
		out.DoseResponse[i] = rowDTO{
			Dose:        row.Dose,
			NumAffected: row.NumAffected,
			NumTotal:    row.NumTotal,
			Response:    row.Response,
			CILower:     number(row.CILower),
			CIUpper:     number(row.CIUpper),
		}
	}
	for _, c := range r.Curve {
		out.Curve = append(out.Curve, curveDTO{Dose: c.Dose, Response: number(c.Response)})
	}
	return out
}

// ModelInfo describes one model of the library
type ModelInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}

func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func numbers(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = number(v)
	}
	return out
}
