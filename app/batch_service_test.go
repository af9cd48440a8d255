package app

import (
	"bytes"
	"context"
	"testing"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/core"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal"
	"zebrabmd/internal/analysis/benchmark"
	"zebrabmd/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	runID   core.RunID
	results []*bmd.UnitResult
}

func (m *memorySink) WriteResults(_ context.Context, runID core.RunID, results []*bmd.UnitResult) error {
	m.runID, m.results = runID, results
	return nil
}

func (m *memorySink) Close() error { return nil }

type staticReader []doseresponse.Series

func (r staticReader) ReadSeries(context.Context) ([]doseresponse.Series, error) { return r, nil }

func newService(t *testing.T, workers int) (*BatchService, *bytes.Buffer) {
	t.Helper()
	opts := benchmark.DefaultOptions()
	opts.Models = []string{"logistic", "quantal_linear"}
	engine, err := benchmark.NewEngine(opts, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	return NewBatchService(engine, workers, internal.NewLoggerTo(&buf, internal.LogLevelInfo)), &buf
}

func TestBatchService_Run(t *testing.T) {
	svc, logs := newService(t, 3)

	batch, err := svc.Run(context.Background(), testkit.Batch())
	require.NoError(t, err)
	require.Len(t, batch.Outcomes, 5)
	assert.NotEmpty(t, batch.RunID)

	keys := make([]string, len(batch.Outcomes))
	for i, o := range batch.Outcomes {
		keys[i] = o.Key.ChemicalID
	}
	assert.Equal(t, []string{"monotone", "too_few_doses", "flat", "steep", "no_control"}, keys, "outcomes keep input order")

	require.Len(t, batch.Failed(), 1)
	assert.Equal(t, "no_control", batch.Failed()[0].Key.ChemicalID)
	assert.ErrorIs(t, batch.Failed()[0].Err, core.ErrInvalidSeries)

	results := batch.Results()
	require.Len(t, results, 4)
	assert.Contains(t, []bmd.QCFlag{bmd.QCGood, bmd.QCSatisfactory}, results[0].QCFlag)
	assert.Equal(t, bmd.QCTooFewDoses, results[1].QCFlag)
	assert.Equal(t, bmd.QCNoTrend, results[2].QCFlag)
	assert.Equal(t, bmd.QCGood, results[3].QCFlag)
	assert.Len(t, results[3].Predictions, 2)

	assert.Contains(t, logs.String(), "5 units")
	assert.Contains(t, logs.String(), "failed=1")
}

func TestBatchService_MatchesSequential(t *testing.T) {
	parallel, _ := newService(t, 4)
	sequential, _ := newService(t, 1)

	a, err := parallel.Run(context.Background(), testkit.Batch())
	require.NoError(t, err)
	b, err := sequential.Run(context.Background(), testkit.Batch())
	require.NoError(t, err)

	ra, rb := a.Results(), b.Results()
	require.Len(t, rb, len(ra))
	for i := range ra {
		assert.Equal(t, rb[i].Fingerprint, ra[i].Fingerprint)
		assert.Equal(t, rb[i].Selection, ra[i].Selection)
		assert.Equal(t, rb[i].Summary.AnalysisCode, ra[i].Summary.AnalysisCode)
	}
}

func TestBatchService_Cancelled(t *testing.T) {
	svc, _ := newService(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, testkit.Batch())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchService_RunFromAndPublish(t *testing.T) {
	svc, _ := newService(t, 2)
	batch, err := svc.RunFrom(context.Background(), staticReader(testkit.Batch()[:2]))
	require.NoError(t, err)

	sink := &memorySink{}
	require.NoError(t, svc.Publish(context.Background(), batch, sink))
	assert.Equal(t, batch.RunID, sink.runID)
	assert.Len(t, sink.results, 2)
}

func TestBatchService_DebugLogTagsFingerprint(t *testing.T) {
	opts := benchmark.DefaultOptions()
	opts.Models = []string{"logistic"}
	engine, err := benchmark.NewEngine(opts, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	svc := NewBatchService(engine, 1, internal.NewLoggerTo(&buf, internal.LogLevelDebug))

	series := testkit.Monotone()
	batch, err := svc.Run(context.Background(), []doseresponse.Series{series})
	require.NoError(t, err)
	require.Len(t, batch.Results(), 1)

	assert.Contains(t, buf.String(), "["+series.Fingerprint().Short()+"]")
}
