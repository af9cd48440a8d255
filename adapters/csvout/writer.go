package csvout

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/core"
	"zebrabmd/internal/errors"
	"zebrabmd/ports"
)

// Output file names
const (
	SummaryFile      = "bmd_summary.csv"
	PredictionsFile  = "model_predictions.csv"
	DoseResponseFile = "dose_response.csv"
	CurveFile        = "fitted_curve.csv"
)

var (
	summaryHeader = []string{
		"run_id", "chemical_id", "endpoint", "model", "bmd10", "bmdl", "bmd50",
		"auc", "auc_norm", "min_dose", "max_dose", "qc_flag", "analysis_code",
		"bmd10_flag", "bmd50_flag", "pvalue_threshold_used",
	}
	predictionsHeader = []string{
		"run_id", "chemical_id", "endpoint", "model", "chi_squared", "p_value", "aic",
		"bmd10", "bmdl10", "bmd50", "log_likelihood", "optimized_params", "scaled_residuals",
		"model_converged", "bmdl_converged", "bmdl_state",
	}
	doseResponseHeader = []string{
		"run_id", "chemical_id", "endpoint", "dose", "num_affected", "num_total",
		"response", "ci_lower", "ci_upper",
	}
	curveHeader = []string{"run_id", "chemical_id", "endpoint", "model", "dose", "response"}
)

// Sink writes the output records of a run as four CSV files in one directory.
// Undefined values are written as empty cells.
type Sink struct {
	dir string
}

var _ ports.ResultSink = (*Sink)(nil)

// NewSink creates the output directory if needed
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IOError(dir, err)
	}
	return &Sink{dir: dir}, nil
}

// WriteResults implements ports.ResultSink. Existing files are replaced.
func (s *Sink) WriteResults(ctx context.Context, runID core.RunID, results []*bmd.UnitResult) error {
	writers := []struct {
		name   string
		header []string
		rows   func(*bmd.UnitResult) [][]string
	}{
		{SummaryFile, summaryHeader, summaryRows},
		{PredictionsFile, predictionsHeader, predictionRows},
		{DoseResponseFile, doseResponseHeader, doseResponseRows},
		{CurveFile, curveHeader, curveRows},
	}

	for _, w := range writers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeFile(w.name, w.header, runID, results, w.rows); err != nil {
			return err
		}
	}
	return nil
}

// Close implements ports.ResultSink
func (s *Sink) Close() error { return nil }

func (s *Sink) writeFile(name string, header []string, runID core.RunID, results []*bmd.UnitResult, rows func(*bmd.UnitResult) [][]string) error {
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return errors.IOError(path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.IOError(path, err)
	}
	for _, r := range results {
		for _, row := range rows(r) {
			if err := w.Write(append([]string{runID.String()}, row...)); err != nil {
				return errors.IOError(path, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.IOError(path, err)
	}
	return f.Close()
}

func summaryRows(r *bmd.UnitResult) [][]string {
	s := r.Summary
	return [][]string{{
		s.ChemicalID, s.Endpoint, s.Model,
		formatFloat(s.BMD10), formatFloat(s.BMDL), formatFloat(s.BMD50),
		formatFloat(s.AUC), formatFloat(s.AUCNorm), formatFloat(s.MinDose), formatFloat(s.MaxDose),
		strconv.Itoa(int(s.QCFlag)), string(s.AnalysisCode),
		strconv.Itoa(int(s.BMD10Flag)), strconv.Itoa(int(s.BMD50Flag)),
		strconv.FormatBool(s.PValueThresholdUsed),
	}}
}

func predictionRows(r *bmd.UnitResult) [][]string {
	rows := make([][]string, 0, len(r.Predictions))
	for _, p := range r.Predictions {
		rows = append(rows, []string{
			r.Key.ChemicalID, r.Key.Endpoint, p.Model,
			formatFloat(p.ChiSquared), formatFloat(p.PValue), formatFloat(p.AIC),
			formatFloat(p.BMD10), formatFloat(p.BMDL10), formatFloat(p.BMD50),
			formatFloat(p.LogLikelihood), FormatVector(p.Params), FormatVector(p.ScaledResiduals),
			strconv.FormatBool(p.ModelConverged), strconv.FormatBool(p.BMDLConverged),
			p.BMDLState.String(),
		})
	}
	return rows
}

func doseResponseRows(r *bmd.UnitResult) [][]string {
	rows := make([][]string, 0, len(r.DoseResponse))
	for _, d := range r.DoseResponse {
		rows = append(rows, []string{
			r.Key.ChemicalID, r.Key.Endpoint,
			formatFloat(d.Dose), strconv.Itoa(d.NumAffected), strconv.Itoa(d.NumTotal),
			formatFloat(d.Response), formatFloat(d.CILower), formatFloat(d.CIUpper),
		})
	}
	return rows
}

func curveRows(r *bmd.UnitResult) [][]string {
	rows := make([][]string, 0, len(r.Curve))
	for _, c := range r.Curve {
		rows = append(rows, []string{
			r.Key.ChemicalID, r.Key.Endpoint, r.Selection.SelectedModel,
			formatFloat(c.Dose), formatFloat(c.Response),
		})
	}
	return rows
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FormatVector renders a parameter or residual vector as "a;b;c"
func FormatVector(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ";")
}
