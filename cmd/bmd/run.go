package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"zebrabmd/adapters/csvout"
	"zebrabmd/adapters/db"
	"zebrabmd/adapters/excel"
	"zebrabmd/adapters/plot"
	"zebrabmd/adapters/report"
	"zebrabmd/app"
	"zebrabmd/internal/errors"
	"zebrabmd/ports"

	"github.com/spf13/cobra"
)

type runOptions struct {
	input    string
	sheet    string
	output   string
	dbURL    string
	dbDriver string
	plots    bool
	report   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze every (chemical, endpoint) unit of a tall-format input file",
		Long: `Analyze every unit of a CSV or XLSX file with columns
chemical_id, endpoint, dose, num_affected, num_total.

Example: bmd run -i morphology.csv -o results --plots --report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input CSV or XLSX file")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "worksheet name for XLSX input (default: first sheet)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "results", "output directory")
	cmd.Flags().StringVar(&opts.dbURL, "db", "", "also write results to this database (overrides DATABASE_URL)")
	cmd.Flags().StringVar(&opts.dbDriver, "db-driver", "", "database driver: sqlite or postgres (overrides DB_DRIVER)")
	cmd.Flags().BoolVar(&opts.plots, "plots", false, "render a PNG curve per selected unit")
	cmd.Flags().BoolVar(&opts.report, "report", false, "write an HTML batch report")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runBatch(ctx context.Context, opts runOptions) error {
	cfg, engine, logger, err := setup()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.output, 0o755); err != nil {
		return errors.IOError(opts.output, err)
	}

	reader := excel.NewDataReader(opts.input, logger)
	if opts.sheet != "" {
		reader = reader.WithSheet(opts.sheet)
	}

	svc := app.NewBatchService(engine, cfg.Engine.Workers, logger)
	batch, err := svc.RunFrom(ctx, reader)
	if err != nil {
		return err
	}

	csvSink, err := csvout.NewSink(opts.output)
	if err != nil {
		return err
	}
	sinks := []ports.ResultSink{csvSink}

	driver, url := cfg.Database.Driver, cfg.Database.URL
	if opts.dbURL != "" {
		url = opts.dbURL
	}
	if opts.dbDriver != "" {
		driver = opts.dbDriver
	}
	if url != "" {
		store, err := db.Open(ctx, driver, url)
		if err != nil {
			return err
		}
		sinks = append(sinks, store)
	}
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("failed to close sink: %v", err)
			}
		}
	}()

	if err := svc.Publish(ctx, batch, sinks...); err != nil {
		return err
	}

	results := batch.Results()
	if opts.plots {
		paths, err := plot.NewCurveRenderer().SaveAll(filepath.Join(opts.output, "plots"), results)
		if err != nil {
			return err
		}
		logger.Info("rendered %d curves", len(paths))
	}

	if opts.report {
		path := filepath.Join(opts.output, "report.html")
		f, err := os.Create(path)
		if err != nil {
			return errors.IOError(path, err)
		}
		defer f.Close()
		if err := report.NewRenderer("BMD analysis").RenderReport(batch.RunID, results, f); err != nil {
			return err
		}
	}

	for _, failed := range batch.Failed() {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", failed.Key, failed.Err)
	}
	fmt.Printf("run %s: %d units analyzed, %d skipped, results in %s\n",
		batch.RunID, len(results), len(batch.Failed()), opts.output)
	return nil
}
