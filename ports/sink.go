package ports

import (
	"context"
	"io"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/core"
)

// ResultSink persists the output records of one batch run
type ResultSink interface {
	WriteResults(ctx context.Context, runID core.RunID, results []*bmd.UnitResult) error
	Close() error
}

// CurveRenderer draws the observed dose-response and the selected fit of one unit
type CurveRenderer interface {
	RenderCurve(result *bmd.UnitResult, w io.Writer) error
}

// ReportRenderer summarises a batch run for human readers
type ReportRenderer interface {
	RenderReport(runID core.RunID, results []*bmd.UnitResult, w io.Writer) error
}
