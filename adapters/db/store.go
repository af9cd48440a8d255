package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"zebrabmd/adapters/csvout"
	"zebrabmd/domain/bmd"
	"zebrabmd/domain/core"
	"zebrabmd/internal/errors"
	"zebrabmd/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SummaryRow is one persisted BMD summary record
type SummaryRow struct {
	RunID               string          `db:"run_id"`
	ChemicalID          string          `db:"chemical_id"`
	Endpoint            string          `db:"endpoint"`
	Fingerprint         string          `db:"fingerprint"`
	Model               string          `db:"model"`
	BMD10               sql.NullFloat64 `db:"bmd10"`
	BMDL                sql.NullFloat64 `db:"bmdl"`
	BMD50               sql.NullFloat64 `db:"bmd50"`
	AUC                 sql.NullFloat64 `db:"auc"`
	AUCNorm             sql.NullFloat64 `db:"auc_norm"`
	MinDose             sql.NullFloat64 `db:"min_dose"`
	MaxDose             sql.NullFloat64 `db:"max_dose"`
	QCFlag              int             `db:"qc_flag"`
	AnalysisCode        string          `db:"analysis_code"`
	BMD10Flag           int             `db:"bmd10_flag"`
	BMD50Flag           int             `db:"bmd50_flag"`
	PValueThresholdUsed bool            `db:"pvalue_threshold_used"`
}

type predictionRow struct {
	RunID           string          `db:"run_id"`
	ChemicalID      string          `db:"chemical_id"`
	Endpoint        string          `db:"endpoint"`
	Model           string          `db:"model"`
	ChiSquared      sql.NullFloat64 `db:"chi_squared"`
	PValue          sql.NullFloat64 `db:"p_value"`
	AIC             sql.NullFloat64 `db:"aic"`
	BMD10           sql.NullFloat64 `db:"bmd10"`
	BMDL10          sql.NullFloat64 `db:"bmdl10"`
	BMD50           sql.NullFloat64 `db:"bmd50"`
	LogLikelihood   sql.NullFloat64 `db:"log_likelihood"`
	Params          string          `db:"optimized_params"`
	ScaledResiduals string          `db:"scaled_residuals"`
	ModelConverged  bool            `db:"model_converged"`
	BMDLConverged   bool            `db:"bmdl_converged"`
}

type doseResponseRow struct {
	RunID       string          `db:"run_id"`
	ChemicalID  string          `db:"chemical_id"`
	Endpoint    string          `db:"endpoint"`
	Dose        float64         `db:"dose"`
	NumAffected int             `db:"num_affected"`
	NumTotal    int             `db:"num_total"`
	Response    float64         `db:"response"`
	CILower     sql.NullFloat64 `db:"ci_lower"`
	CIUpper     sql.NullFloat64 `db:"ci_upper"`
}

type curveRow struct {
	RunID      string          `db:"run_id"`
	ChemicalID string          `db:"chemical_id"`
	Endpoint   string          `db:"endpoint"`
	Model      string          `db:"model"`
	Seq        int             `db:"seq"`
	Dose       float64         `db:"dose"`
	Response   sql.NullFloat64 `db:"response"`
}

const (
	insertRun = `INSERT INTO runs (run_id, unit_count, created_at) VALUES (:run_id, :unit_count, :created_at)`

	insertSummary = `INSERT INTO bmd_summary (
		run_id, chemical_id, endpoint, fingerprint, model, bmd10, bmdl, bmd50, auc, auc_norm,
		min_dose, max_dose, qc_flag, analysis_code, bmd10_flag, bmd50_flag, pvalue_threshold_used
	) VALUES (
		:run_id, :chemical_id, :endpoint, :fingerprint, :model, :bmd10, :bmdl, :bmd50, :auc, :auc_norm,
		:min_dose, :max_dose, :qc_flag, :analysis_code, :bmd10_flag, :bmd50_flag, :pvalue_threshold_used
	)`

	insertPrediction = `INSERT INTO model_predictions (
		run_id, chemical_id, endpoint, model, chi_squared, p_value, aic, bmd10, bmdl10, bmd50,
		log_likelihood, optimized_params, scaled_residuals, model_converged, bmdl_converged
	) VALUES (
		:run_id, :chemical_id, :endpoint, :model, :chi_squared, :p_value, :aic, :bmd10, :bmdl10, :bmd50,
		:log_likelihood, :optimized_params, :scaled_residuals, :model_converged, :bmdl_converged
	)`

	insertDoseResponse = `INSERT INTO dose_response (
		run_id, chemical_id, endpoint, dose, num_affected, num_total, response, ci_lower, ci_upper
	) VALUES (
		:run_id, :chemical_id, :endpoint, :dose, :num_affected, :num_total, :response, :ci_lower, :ci_upper
	)`

	insertCurve = `INSERT INTO fitted_curve (run_id, chemical_id, endpoint, model, seq, dose, response)
		VALUES (:run_id, :chemical_id, :endpoint, :model, :seq, :dose, :response)`
)

// Store is a SQL result sink over sqlite or postgres
type Store struct {
	db *sqlx.DB
}

var _ ports.ResultSink = (*Store)(nil)

// Open connects with driver ("sqlite" or "postgres") and applies migrations
func Open(ctx context.Context, driver, url string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY on file databases
		db.SetMaxOpenConns(1)
	}

	if err := NewMigrator(db).Up(ctx); err != nil {
		db.Close()
		return nil, errors.DatabaseError("database migration failed", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already migrated connection
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close implements ports.ResultSink
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteResults implements ports.ResultSink. The run is written atomically.
func (s *Store) WriteResults(ctx context.Context, runID core.RunID, results []*bmd.UnitResult) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	run := map[string]interface{}{
		"run_id":     runID.String(),
		"unit_count": len(results),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return errors.DatabaseError("failed to insert run", err)
	}

	for _, r := range results {
		if err := insertUnit(ctx, tx, runID.String(), r); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert unit %s", r.Key), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run", err)
	}
	return nil
}

func insertUnit(ctx context.Context, tx *sqlx.Tx, runID string, r *bmd.UnitResult) error {
	s := r.Summary
	summary := SummaryRow{
		RunID: runID, ChemicalID: r.Key.ChemicalID, Endpoint: r.Key.Endpoint,
		Fingerprint: string(r.Fingerprint), Model: s.Model,
		BMD10: nullable(s.BMD10), BMDL: nullable(s.BMDL), BMD50: nullable(s.BMD50),
		AUC: nullable(s.AUC), AUCNorm: nullable(s.AUCNorm),
		MinDose: nullable(s.MinDose), MaxDose: nullable(s.MaxDose),
		QCFlag: int(s.QCFlag), AnalysisCode: string(s.AnalysisCode),
		BMD10Flag: int(s.BMD10Flag), BMD50Flag: int(s.BMD50Flag),
		PValueThresholdUsed: s.PValueThresholdUsed,
	}
	if _, err := tx.NamedExecContext(ctx, insertSummary, summary); err != nil {
		return err
	}

	for _, p := range r.Predictions {
		row := predictionRow{
			RunID: runID, ChemicalID: r.Key.ChemicalID, Endpoint: r.Key.Endpoint, Model: p.Model,
			ChiSquared: nullable(p.ChiSquared), PValue: nullable(p.PValue), AIC: nullable(p.AIC),
			BMD10: nullable(p.BMD10), BMDL10: nullable(p.BMDL10), BMD50: nullable(p.BMD50),
			LogLikelihood:   nullable(p.LogLikelihood),
			Params:          csvout.FormatVector(p.Params),
			ScaledResiduals: csvout.FormatVector(p.ScaledResiduals),
			ModelConverged:  p.ModelConverged,
			BMDLConverged:   p.BMDLConverged,
		}
		if _, err := tx.NamedExecContext(ctx, insertPrediction, row); err != nil {
			return err
		}
	}

	for _, d := range r.DoseResponse {
		row := doseResponseRow{
			RunID: runID, ChemicalID: r.Key.ChemicalID, Endpoint: r.Key.Endpoint,
			Dose: d.Dose, NumAffected: d.NumAffected, NumTotal: d.NumTotal, Response: d.Response,
			CILower: nullable(d.CILower), CIUpper: nullable(d.CIUpper),
		}
		if _, err := tx.NamedExecContext(ctx, insertDoseResponse, row); err != nil {
			return err
		}
	}

	for i, c := range r.Curve {
		row := curveRow{
			RunID: runID, ChemicalID: r.Key.ChemicalID, Endpoint: r.Key.Endpoint,
			Model: r.Selection.SelectedModel, Seq: i, Dose: c.Dose, Response: nullable(c.Response),
		}
		if _, err := tx.NamedExecContext(ctx, insertCurve, row); err != nil {
			return err
		}
	}
	return nil
}

// Summaries returns the summary records of a run ordered by unit
func (s *Store) Summaries(ctx context.Context, runID core.RunID) ([]SummaryRow, error) {
	query := s.db.Rebind(`SELECT run_id, chemical_id, endpoint, fingerprint, model, bmd10, bmdl, bmd50,
		auc, auc_norm, min_dose, max_dose, qc_flag, analysis_code, bmd10_flag, bmd50_flag,
		pvalue_threshold_used
	FROM bmd_summary WHERE run_id = ? ORDER BY chemical_id, endpoint`)

	var rows []SummaryRow
	if err := s.db.SelectContext(ctx, &rows, query, runID.String()); err != nil {
		return nil, errors.DatabaseError("failed to query summaries", err)
	}
	return rows, nil
}

// PredictionCount returns how many model rows a run stored
func (s *Store) PredictionCount(ctx context.Context, runID core.RunID) (int, error) {
	var n int
	query := s.db.Rebind("SELECT COUNT(*) FROM model_predictions WHERE run_id = ?")
	if err := s.db.GetContext(ctx, &n, query, runID.String()); err != nil {
		return 0, errors.DatabaseError("failed to count predictions", err)
	}
	return n, nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
