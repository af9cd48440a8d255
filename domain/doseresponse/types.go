package doseresponse

import (
	"encoding/json"
	"fmt"
	"math"

	"zebrabmd/domain/core"
)

// UnitKey identifies one (chemical, endpoint) analysis unit
type UnitKey struct {
	ChemicalID string `json:"chemical_id"`
	Endpoint   string `json:"endpoint"`
}

// String returns "chemical/endpoint"
func (k UnitKey) String() string {
	return k.ChemicalID + "/" + k.Endpoint
}

// DoseGroup aggregates all samples sharing one concentration
type DoseGroup struct {
	Dose        float64 `json:"dose"`
	NumAffected int     `json:"num_affected"`
	NumTotal    int     `json:"num_total"`
}

// Fraction returns the observed fraction affected
func (g DoseGroup) Fraction() float64 {
	if g.NumTotal <= 0 {
		return 0
	}
	return float64(g.NumAffected) / float64(g.NumTotal)
}

// Series is the cleaned dose-response data for one unit.
// INVARIANTS (checked by Validate):
// - at least one group, the first one at dose zero
// - doses strictly ascending and non-negative
// - 0 <= NumAffected <= NumTotal, NumTotal > 0
type Series struct {
	Key    UnitKey     `json:"key"`
	Groups []DoseGroup `json:"groups"`
}

// NewSeries builds a series from parallel slices.
func NewSeries(key UnitKey, doses []float64, affected, total []int) (Series, error) {
	if len(doses) != len(affected) || len(doses) != len(total) {
		return Series{}, core.NewSeriesError(key.String(), "dose, affected and total lengths differ")
	}
	groups := make([]DoseGroup, len(doses))
	for i := range doses {
		groups[i] = DoseGroup{Dose: doses[i], NumAffected: affected[i], NumTotal: total[i]}
	}
	s := Series{Key: key, Groups: groups}
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// Len returns the number of dose groups
func (s Series) Len() int { return len(s.Groups) }

// Doses returns the dose column
func (s Series) Doses() []float64 {
	out := make([]float64, len(s.Groups))
	for i, g := range s.Groups {
		out[i] = g.Dose
	}
	return out
}

// Fractions returns the fraction-affected column
func (s Series) Fractions() []float64 {
	out := make([]float64, len(s.Groups))
	for i, g := range s.Groups {
		out[i] = g.Fraction()
	}
	return out
}

// MinDose returns the lowest dose (zero for a valid series)
func (s Series) MinDose() float64 {
	if len(s.Groups) == 0 {
		return math.NaN()
	}
	return s.Groups[0].Dose
}

// MaxDose returns the highest dose
func (s Series) MaxDose() float64 {
	if len(s.Groups) == 0 {
		return math.NaN()
	}
	return s.Groups[len(s.Groups)-1].Dose
}

// Validate checks the structural invariants of the series
func (s Series) Validate() error {
	name := s.Key.String()
	if len(s.Groups) == 0 {
		return core.NewSeriesError(name, "no dose groups")
	}
	if s.Groups[0].Dose != 0 {
		return core.NewSeriesError(name, fmt.Sprintf("first dose must be the zero-dose control, got %g", s.Groups[0].Dose))
	}
	for i, g := range s.Groups {
		if math.IsNaN(g.Dose) || math.IsInf(g.Dose, 0) || g.Dose < 0 {
			return core.NewSeriesError(name, fmt.Sprintf("dose %g is not a non-negative finite value", g.Dose))
		}
		if i > 0 && g.Dose <= s.Groups[i-1].Dose {
			return core.NewSeriesError(name, fmt.Sprintf("doses must be unique and ascending (%g after %g)", g.Dose, s.Groups[i-1].Dose))
		}
		if g.NumTotal <= 0 {
			return core.NewSeriesError(name, fmt.Sprintf("dose %g has non-positive total %d", g.Dose, g.NumTotal))
		}
		if g.NumAffected < 0 || g.NumAffected > g.NumTotal {
			return core.NewSeriesError(name, fmt.Sprintf("dose %g has %d affected out of %d", g.Dose, g.NumAffected, g.NumTotal))
		}
	}
	return nil
}

// Fingerprint hashes the unit key and the groups
func (s Series) Fingerprint() core.Hash {
	// Marshal cannot fail: the struct holds only strings, ints and validated finite floats.
	data, _ := json.Marshal(s)
	return core.NewHash(data)
}

// Row is one line of the dose-response output table
type Row struct {
	Dose        float64 `json:"dose"`
	NumAffected int     `json:"num_affected"`
	NumTotal    int     `json:"num_total"`
	Response    float64 `json:"response"`
	CILower     float64 `json:"ci_lower"`
	CIUpper     float64 `json:"ci_upper"`
}
