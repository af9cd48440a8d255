package ports

import (
	"context"

	"zebrabmd/domain/doseresponse"
)

// SeriesReader loads the cleaned dose-response series of an input file.
// Missing required columns abort the whole read; per-unit structural problems
// are left for the engine to report.
type SeriesReader interface {
	ReadSeries(ctx context.Context) ([]doseresponse.Series, error)
}
