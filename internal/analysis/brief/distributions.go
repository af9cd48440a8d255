package brief

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// StatisticalDistributions provides unified access to the distributions used by
// feasibility testing, goodness of fit and profile-likelihood bounds
type StatisticalDistributions struct{}

// NewDistributions creates a new distributions utility
func NewDistributions() *StatisticalDistributions {
	return &StatisticalDistributions{}
}

// TTestPValue computes the two-tailed p-value for a t statistic
func (sd *StatisticalDistributions) TTestPValue(tStatistic float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 || math.IsNaN(tStatistic) {
		return math.NaN()
	}
	if math.IsInf(tStatistic, 0) {
		return 0
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(degreesOfFreedom)}
	return 2 * tDist.Survival(math.Abs(tStatistic))
}

// ChiSquarePValue computes the survival function of the chi-square distribution.
// Returns NaN when the degrees of freedom are not positive (saturated model).
func (sd *StatisticalDistributions) ChiSquarePValue(chiSquare float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 || math.IsNaN(chiSquare) {
		return math.NaN()
	}

	chiDist := distuv.ChiSquared{K: float64(degreesOfFreedom)}
	return chiDist.Survival(chiSquare)
}

// ChiSquareQuantile computes the inverse CDF of the chi-square distribution
func (sd *StatisticalDistributions) ChiSquareQuantile(p float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 || p <= 0 || p >= 1 {
		return math.NaN()
	}
	return distuv.ChiSquared{K: float64(degreesOfFreedom)}.Quantile(p)
}

// NormalQuantile computes quantile function for standard normal (inverse CDF)
func (sd *StatisticalDistributions) NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

// WilsonInterval computes the Wilson score interval for a binomial proportion
func (sd *StatisticalDistributions) WilsonInterval(successes, trials int, confidenceLevel float64) (lower, upper float64) {
	if trials <= 0 {
		return math.NaN(), math.NaN()
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		confidenceLevel = 0.95
	}

	z := sd.NormalQuantile(1 - (1-confidenceLevel)/2)
	n := float64(trials)
	p := float64(successes) / n
	z2 := z * z

	center := (p + z2/(2*n)) / (1 + z2/n)
	margin := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / (1 + z2/n)

	lower, upper = math.Max(0, center-margin), math.Min(1, center+margin)
	// the closed form leaves rounding residue at the edges
	if successes <= 0 {
		lower = 0
	}
	if successes >= trials {
		upper = 1
	}
	return lower, upper
}
