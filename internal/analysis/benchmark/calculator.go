package benchmark

import (
	"zebrabmd/adapters/stats/models"
	"zebrabmd/domain/bmd"
)

// Calculator evaluates closed-form benchmark doses from a fit
type Calculator struct {
	bmr   float64
	bmr50 float64
}

// NewCalculator creates a calculator for the two benchmark responses
func NewCalculator(bmr, bmr50 float64) *Calculator {
	return &Calculator{bmr: bmr, bmr50: bmr50}
}

// Doses returns BMD at the primary and the 50% benchmark response. A fit that
// did not converge, or params outside the inversion domain, yield NaN.
func (c *Calculator) Doses(m models.DoseResponseModel, fit bmd.FitResult) (bmd10, bmd50 float64) {
	conv, ok := fit.(bmd.Converged)
	if !ok {
		return bmd.Undefined(), bmd.Undefined()
	}
	return m.BMD(conv.Params, c.bmr), m.BMD(conv.Params, c.bmr50)
}
