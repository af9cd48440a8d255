package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"zebrabmd/adapters/api"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal/errors"

	"github.com/spf13/cobra"
)

func newFitCmd() *cobra.Command {
	var (
		key      doseresponse.UnitKey
		doses    string
		affected string
		total    string
	)

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Analyze a single series given on the command line",
		Long: `Analyze one series and print the unit result as JSON.

Example: bmd fit --doses 0,0.1,0.5,1.5,5 --affected 0,1,1,10,15 --total 26,31,16,18,17`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseFloats(doses)
			if err != nil {
				return err
			}
			a, err := parseInts(affected)
			if err != nil {
				return err
			}
			n, err := parseInts(total)
			if err != nil {
				return err
			}
			series, err := doseresponse.NewSeries(key, d, a, n)
			if err != nil {
				return err
			}

			_, engine, _, err := setup()
			if err != nil {
				return err
			}
			result, err := engine.Analyze(series)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.NewUnitResponse(result))
		},
	}

	cmd.Flags().StringVar(&key.ChemicalID, "chemical", "unit", "chemical identifier")
	cmd.Flags().StringVar(&key.Endpoint, "endpoint", "endpoint", "endpoint name")
	cmd.Flags().StringVar(&doses, "doses", "", "comma-separated ascending doses, starting with 0")
	cmd.Flags().StringVar(&affected, "affected", "", "comma-separated affected counts")
	cmd.Flags().StringVar(&total, "total", "", "comma-separated total counts")
	_ = cmd.MarkFlagRequired("doses")
	_ = cmd.MarkFlagRequired("affected")
	_ = cmd.MarkFlagRequired("total")

	return cmd
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, field := range splitList(s) {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("invalid number %q", field))
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, field := range splitList(s) {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("invalid count %q", field))
		}
		out = append(out, v)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}
