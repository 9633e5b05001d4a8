package energy

import (
	"math"

	"github.com/pkg/errors"
)

// Adapter changes a weight over the iterations of a run. Max bounds every
// value Next may produce and is used for normalization at Init.
type Adapter struct {
	Next func(iteration int, base float64) float64
	Max  float64
}

// NewAdapter builds an adapter. The bound is mandatory and must be finite
// and non-negative.
func NewAdapter(next func(iteration int, base float64) float64, max float64) (*Adapter, error) {
	if next == nil {
		return nil, errors.New("adapter needs an update function")
	}
	if !isFinite(max) || max < 0 {
		return nil, errors.Errorf("adapter bound must be finite and non-negative, got %f", max)
	}
	return &Adapter{Next: next, Max: max}, nil
}

// Ramp moves a weight linearly from its base value to target over the given
// number of iterations and holds it there afterwards.
func Ramp(base, target float64, iterations int) *Adapter {
	return &Adapter{
		Next: func(it int, b float64) float64 {
			if iterations <= 0 || it >= iterations {
				return target
			}
			t := float64(it) / float64(iterations)
			return b + (target-b)*t
		},
		Max: math.Max(math.Abs(base), math.Abs(target)),
	}
}

// value evaluates the adapter, rejecting non-finite proposals and clamping to
// [-Max, Max]. ok is false when the proposal was rejected.
func (a *Adapter) value(iteration int, base, current float64) (v float64, ok bool) {
	v = a.Next(iteration, base)
	if !isFinite(v) {
		return current, false
	}
	return math.Max(-a.Max, math.Min(a.Max, v)), true
}
