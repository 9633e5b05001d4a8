package energy

import (
	"gonum.org/v1/gonum/mat"
)

// crossCoupling builds the 2P×2P matrix whose product with the coordinate
// vector gives tau_i times the outward normal of a positively oriented
// curve, (y_{i+1} - y_{i-1}, x_{i-1} - x_{i+1}) / 2, at every point. Only the
// x–y off-diagonal blocks are populated. Returns nil when every tau is zero.
func crossCoupling(tau []float64) *mat.Dense {
	p := len(tau)
	var m *mat.Dense
	for i, t := range tau {
		if t == 0 {
			continue
		}
		if m == nil {
			m = mat.NewDense(2*p, 2*p, nil)
		}
		h := t / 2
		next, prev := (i+1)%p, (i+p-1)%p
		m.Set(i, p+next, m.At(i, p+next)+h)
		m.Set(i, p+prev, m.At(i, p+prev)-h)
		m.Set(p+i, prev, m.At(p+i, prev)+h)
		m.Set(p+i, next, m.At(p+i, next)-h)
	}
	return m
}
