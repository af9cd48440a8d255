package benchmark

import (
	"math"
	"sort"

	"zebrabmd/domain/bmd"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal/analysis/brief"

	"github.com/montanaflynn/stats"
)

const (
	// logDoseOffset keeps log10 finite at the control dose
	logDoseOffset = 1e-15

	minDoseGroups      = 3
	minTrendRho        = 0.2
	goodTrendPValue    = 0.05
	satisfactoryPValue = 0.32
)

// Feasibility decides whether a series carries enough monotone signal to fit
type Feasibility struct {
	dist *brief.StatisticalDistributions
}

// NewFeasibility creates a feasibility classifier
func NewFeasibility() *Feasibility {
	return &Feasibility{dist: brief.NewDistributions()}
}

// Classify returns the QC flag for series. It is a pure function of the series.
func (f *Feasibility) Classify(series doseresponse.Series) bmd.QCFlag {
	if series.Len() < minDoseGroups {
		return bmd.QCTooFewDoses
	}

	fractions := series.Fractions()
	logDose := make([]float64, series.Len())
	for i, d := range series.Doses() {
		logDose[i] = math.Log10(d + logDoseOffset)
	}

	rho, ok := spearman(logDose, fractions)
	if !ok || rho < minTrendRho {
		return bmd.QCNoTrend
	}

	p := f.trendPValue(fractions)
	switch {
	case p < goodTrendPValue:
		return bmd.QCGood
	case p < satisfactoryPValue:
		return bmd.QCSatisfactory
	}
	return bmd.QCPoorResolution
}

// trendPValue is the two-sided one-sample t-test of the first differences against zero
func (f *Feasibility) trendPValue(fractions []float64) float64 {
	diffs := make(stats.Float64Data, len(fractions)-1)
	for i := 1; i < len(fractions); i++ {
		diffs[i-1] = fractions[i] - fractions[i-1]
	}

	mean, err := stats.Mean(diffs)
	if err != nil {
		return math.NaN()
	}
	sd, err := stats.StandardDeviationSample(diffs)
	if err != nil {
		return math.NaN()
	}

	var t float64
	switch {
	case sd > 0:
		t = mean / (sd / math.Sqrt(float64(len(diffs))))
	case mean == 0:
		return math.NaN()
	default:
		t = math.Copysign(math.Inf(1), mean)
	}
	return f.dist.TTestPValue(t, len(diffs)-1)
}

// spearman is the Pearson correlation of average ranks. ok is false when
// either side has no variance.
func spearman(x, y []float64) (float64, bool) {
	rx, ry := averageRanks(x), averageRanks(y)

	vx, _ := stats.Variance(rx)
	vy, _ := stats.Variance(ry)
	if vx == 0 || vy == 0 {
		return math.NaN(), false
	}

	rho, err := stats.Pearson(rx, ry)
	if err != nil || math.IsNaN(rho) {
		return math.NaN(), false
	}
	return rho, true
}

// averageRanks assigns 1-based ranks, sharing the mean rank across ties
func averageRanks(data []float64) stats.Float64Data {
	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return data[idx[a]] < data[idx[b]] })

	ranks := make(stats.Float64Data, len(data))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && data[idx[j+1]] == data[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
