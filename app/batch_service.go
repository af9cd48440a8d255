package app

import (
	"context"
	"runtime"
	"time"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/core"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal"
	"zebrabmd/internal/analysis/benchmark"
	"zebrabmd/internal/errors"
	"zebrabmd/ports"

	"golang.org/x/sync/errgroup"
)

// UnitOutcome is the result of one (chemical, endpoint) unit. Exactly one of
// Result and Err is set.
type UnitOutcome struct {
	Key    doseresponse.UnitKey
	Result *bmd.UnitResult
	Err    error
}

// BatchResult collects the outcomes of a run in input order
type BatchResult struct {
	RunID     core.RunID
	Outcomes  []UnitOutcome
	RuntimeMs int64
}

// Results returns the successful unit results in input order
func (b *BatchResult) Results() []*bmd.UnitResult {
	out := make([]*bmd.UnitResult, 0, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.Result != nil {
			out = append(out, o.Result)
		}
	}
	return out
}

// Failed returns the units rejected as malformed
func (b *BatchResult) Failed() []UnitOutcome {
	var out []UnitOutcome
	for _, o := range b.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// BatchService fans units out over a bounded pool of goroutines. Units share
// nothing, so the only coordination is the result slot each one owns.
type BatchService struct {
	engine  *benchmark.Engine
	workers int
	logger  *internal.Logger
}

// NewBatchService creates a batch service; workers <= 0 means GOMAXPROCS
func NewBatchService(engine *benchmark.Engine, workers int, logger *internal.Logger) *BatchService {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &BatchService{engine: engine, workers: workers, logger: logger}
}

// Run analyzes every series. A malformed series fails only its own unit; the
// run stops early only when ctx is cancelled.
func (s *BatchService) Run(ctx context.Context, series []doseresponse.Series) (*BatchResult, error) {
	start := time.Now()
	batch := &BatchResult{
		RunID:    core.NewRunID(),
		Outcomes: make([]UnitOutcome, len(series)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range series {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch.Outcomes[i] = s.analyze(series[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch.RuntimeMs = time.Since(start).Milliseconds()
	s.logSummary(batch)
	return batch, nil
}

// RunFrom reads all series from reader and runs them
func (s *BatchService) RunFrom(ctx context.Context, reader ports.SeriesReader) (*BatchResult, error) {
	series, err := reader.ReadSeries(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}
	return s.Run(ctx, series)
}

// Publish writes the successful results to every sink, stopping at the first failure
func (s *BatchService) Publish(ctx context.Context, batch *BatchResult, sinks ...ports.ResultSink) error {
	results := batch.Results()
	for _, sink := range sinks {
		if err := sink.WriteResults(ctx, batch.RunID, results); err != nil {
			return errors.Wrapf(err, "failed to publish run %s", batch.RunID)
		}
	}
	return nil
}

func (s *BatchService) analyze(series doseresponse.Series) UnitOutcome {
	res, err := s.engine.Analyze(series)
	if err != nil {
		s.logger.Warn("unit %s rejected: %v", series.Key, err)
		return UnitOutcome{Key: series.Key, Err: err}
	}

	s.logger.Debug("unit %s [%s] qc=%d code=%s model=%q", series.Key, res.Fingerprint.Short(), res.QCFlag, res.Summary.AnalysisCode, res.Summary.Model)
	for _, p := range res.Predictions {
		if !p.ModelConverged {
			s.logger.Debug("unit %s: %s did not converge", series.Key, p.Model)
		}
	}
	return UnitOutcome{Key: series.Key, Result: res}
}

func (s *BatchService) logSummary(batch *BatchResult) {
	counts := make(map[bmd.AnalysisCode]int)
	for _, r := range batch.Results() {
		counts[r.Summary.AnalysisCode]++
	}
	s.logger.Info("run %s: %d units in %dms (selected=%d relaxed=%d tied=%d no_convergence=%d poor_data=%d failed=%d)",
		batch.RunID, len(batch.Outcomes), batch.RuntimeMs,
		counts[bmd.AnalysisSelected], counts[bmd.AnalysisNoPValuePass],
		counts[bmd.AnalysisTied]+counts[bmd.AnalysisTiedNoBMDL],
		counts[bmd.AnalysisNoConvergence], counts[bmd.AnalysisPoorData],
		len(batch.Failed()))
}
