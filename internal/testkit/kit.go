// Package testkit provides dose-response fixtures and a seeded generator of
// synthetic assay data for tests and demos.
package testkit

import (
	"encoding/csv"
	"io"
	"strconv"

	"zebrabmd/domain/doseresponse"
)

// Endpoint is the endpoint name used by every fixture
const Endpoint = "MO24"

func series(chemical string, doses []float64, affected, total []int) doseresponse.Series {
	s := doseresponse.Series{Key: doseresponse.UnitKey{ChemicalID: chemical, Endpoint: Endpoint}}
	for i := range doses {
		s.Groups = append(s.Groups, doseresponse.DoseGroup{Dose: doses[i], NumAffected: affected[i], NumTotal: total[i]})
	}
	return s
}

// Monotone is a five-group series with a clear but noisy increasing trend
func Monotone() doseresponse.Series {
	return series("monotone",
		[]float64{0, 0.1, 0.5, 1.5, 5},
		[]int{0, 1, 1, 10, 15},
		[]int{26, 31, 16, 18, 17})
}

// TooFewDoses has only a control and one treated group
func TooFewDoses() doseresponse.Series {
	return series("too_few_doses", []float64{0, 1}, []int{0, 4}, []int{20, 20})
}

// Flat has a constant response, so its rank correlation is undefined
func Flat() doseresponse.Series {
	return series("flat", []float64{0, 1, 2, 3}, []int{2, 2, 2, 2}, []int{20, 20, 20, 20})
}

// Steep rises steadily across the tested range
func Steep() doseresponse.Series {
	return series("steep",
		[]float64{0, 0.25, 0.5, 1, 2, 4},
		[]int{1, 4, 8, 12, 16, 19},
		[]int{20, 20, 20, 20, 20, 20})
}

// NoControl lacks the zero-dose group and fails validation
func NoControl() doseresponse.Series {
	return series("no_control", []float64{1, 2, 3}, []int{0, 4, 8}, []int{20, 20, 20})
}

// Batch returns the fixtures in a fixed order: two fittable units, two
// unfittable ones and one malformed one
func Batch() []doseresponse.Series {
	return []doseresponse.Series{Monotone(), TooFewDoses(), Flat(), Steep(), NoControl()}
}

// WriteCSV writes series in the tall input layout
func WriteCSV(w io.Writer, all []doseresponse.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"chemical_id", "endpoint", "dose", "num_affected", "num_total"}); err != nil {
		return err
	}
	for _, s := range all {
		for _, g := range s.Groups {
			record := []string{
				s.Key.ChemicalID,
				s.Key.Endpoint,
				strconv.FormatFloat(g.Dose, 'g', -1, 64),
				strconv.Itoa(g.NumAffected),
				strconv.Itoa(g.NumTotal),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
