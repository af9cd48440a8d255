package fitter

import (
	"math"

	"zebrabmd/domain/bmd"
)

// boundKind is the shape of a box constraint
type boundKind int

const (
	kindFree boundKind = iota
	kindLower
	kindUpper
	kindBoth
	kindFixed
)

// transform maps unconstrained optimizer coordinates onto a bounded native vector
type transform struct {
	bounds []bmd.Bound
	kinds  []boundKind
	base   []float64 // native start; fixed coordinates are read from here
	free   []int     // indices of coordinates the optimizer moves
}

func newTransform(bounds []bmd.Bound, start []float64) *transform {
	t := &transform{
		bounds: bounds,
		kinds:  make([]boundKind, len(bounds)),
		base:   append([]float64(nil), start...),
	}
	for i, b := range bounds {
		lowerInf, upperInf := math.IsInf(b.Lower, -1), math.IsInf(b.Upper, 1)
		switch {
		case b.Fixed():
			t.kinds[i] = kindFixed
			t.base[i] = b.Lower
			continue
		case lowerInf && upperInf:
			t.kinds[i] = kindFree
		case upperInf:
			t.kinds[i] = kindLower
		case lowerInf:
			t.kinds[i] = kindUpper
		default:
			t.kinds[i] = kindBoth
		}
		t.free = append(t.free, i)
	}
	return t
}

// start returns the unconstrained coordinates of the native start vector
func (t *transform) start() []float64 {
	z := make([]float64, len(t.free))
	for j, i := range t.free {
		z[j] = t.toUnconstrained(i, t.base[i])
	}
	return z
}

// native maps z back to a full parameter vector. A nil z yields the start vector.
func (t *transform) native(z []float64) []float64 {
	x := append([]float64(nil), t.base...)
	if z == nil {
		return x
	}
	for j, i := range t.free {
		x[i] = t.toNative(i, z[j])
	}
	return x
}

func (t *transform) toNative(i int, z float64) float64 {
	b := t.bounds[i]
	switch t.kinds[i] {
	case kindLower:
		return b.Lower + math.Exp(z)
	case kindUpper:
		return b.Upper - math.Exp(z)
	case kindBoth:
		return b.Lower + (b.Upper-b.Lower)/(1+math.Exp(-z))
	}
	return z
}

func (t *transform) toUnconstrained(i int, x float64) float64 {
	b := t.bounds[i]
	const margin = 1e-12
	switch t.kinds[i] {
	case kindLower:
		return math.Log(math.Max(x-b.Lower, margin))
	case kindUpper:
		return math.Log(math.Max(b.Upper-x, margin))
	case kindBoth:
		width := b.Upper - b.Lower
		u := (x - b.Lower) / width
		u = math.Min(math.Max(u, margin), 1-margin)
		return math.Log(u / (1 - u))
	}
	return x
}
