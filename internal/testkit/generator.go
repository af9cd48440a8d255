package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"zebrabmd/domain/doseresponse"
)

// GeneratorConfig describes a synthetic log-logistic assay
type GeneratorConfig struct {
	Doses      []float64
	PerGroup   int
	Background float64
	// ED50 is the dose of 50% extra risk; Slope the log-dose steepness
	ED50  float64
	Slope float64
	Seed  int64
}

// DefaultGeneratorConfig mirrors a typical 96-well zebrafish plate layout
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Doses:      []float64{0, 0.25, 0.5, 1, 2, 4, 8},
		PerGroup:   32,
		Background: 0.05,
		ED50:       2,
		Slope:      2,
		Seed:       42,
	}
}

// Generator draws binomial counts from a known dose-response curve
type Generator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

// NewGenerator creates a seeded generator
func NewGenerator(config GeneratorConfig) *Generator {
	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Probability returns the true response at dose
func (g *Generator) Probability(dose float64) float64 {
	c := g.config
	if dose <= 0 {
		return c.Background
	}
	extra := 1 / (1 + math.Pow(c.ED50/dose, c.Slope))
	return c.Background + (1-c.Background)*extra
}

// TrueBMD returns the dose producing extra risk bmr
func (g *Generator) TrueBMD(bmr float64) float64 {
	return g.config.ED50 * math.Pow(bmr/(1-bmr), 1/g.config.Slope)
}

// Series draws one unit
func (g *Generator) Series(chemical string) doseresponse.Series {
	s := doseresponse.Series{Key: doseresponse.UnitKey{ChemicalID: chemical, Endpoint: Endpoint}}
	for _, d := range g.config.Doses {
		s.Groups = append(s.Groups, doseresponse.DoseGroup{
			Dose:        d,
			NumAffected: g.binomial(g.config.PerGroup, g.Probability(d)),
			NumTotal:    g.config.PerGroup,
		})
	}
	return s
}

// Batch draws n units named chem_000, chem_001, ...
func (g *Generator) Batch(n int) []doseresponse.Series {
	out := make([]doseresponse.Series, n)
	for i := range out {
		out[i] = g.Series(fmt.Sprintf("chem_%03d", i))
	}
	return out
}

func (g *Generator) binomial(n int, p float64) int {
	k := 0
	for i := 0; i < n; i++ {
		if g.rng.Float64() < p {
			k++
		}
	}
	return k
}
