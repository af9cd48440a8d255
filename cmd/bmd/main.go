package main

import (
	"fmt"
	"os"

	"zebrabmd/adapters/stats/models"
	"zebrabmd/internal"
	"zebrabmd/internal/analysis/benchmark"
	"zebrabmd/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bmd",
		Short:         "Benchmark dose estimation for dichotomous zebrafish assays",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newFitCmd(),
		newServeCmd(),
		newModelsCmd(),
	)
	return rootCmd
}

// setup loads configuration and builds the shared engine
func setup() (*config.Config, *benchmark.Engine, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	engine, err := benchmark.NewEngine(cfg.Engine.Options(), models.NewRegistry())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, engine, logger, nil
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the dose-response model library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, m := range models.NewRegistry().All() {
				fmt.Fprintf(out, "%-15s %-40s %v\n", m.Name(), m.Description(), m.ParamNames())
			}
			return nil
		},
	}
}
