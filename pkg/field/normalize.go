// Package field provides the scalar and vector fields consumed by the image
// energies: band normalization, gradients, smoothing, distance transforms,
// gradient vector flow and thresholding.
package field

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Band is a closed target interval for normalized field values.
type Band struct {
	Lo, Hi float64
}

var (
	// UnitBand is [0, 1].
	UnitBand = Band{0, 1}
	// SignedBand is [-1, 1].
	SignedBand = Band{-1, 1}
	// NegativeBand is [-1, 0].
	NegativeBand = Band{-1, 0}
)

// Width returns Hi - Lo.
func (b Band) Width() float64 { return b.Hi - b.Lo }

// degenerate is the range below which a field counts as constant.
const degenerate = 1e-12

// Normalize linearly maps data into the band and returns the new slice
// together with the applied scale. A field that already spans exactly the
// band is returned unchanged so repeated calls do not drift. A constant
// field is shifted to Lo with a unit scale.
func Normalize(data []float64, b Band) ([]float64, float64) {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out, 1
	}
	lo, hi := floats.Min(data), floats.Max(data)
	if lo == b.Lo && hi == b.Hi {
		copy(out, data)
		return out, 1
	}
	span := hi - lo
	if span < degenerate {
		for i, v := range data {
			out[i] = v - lo + b.Lo
		}
		return out, 1
	}
	scale := b.Width() / span
	for i, v := range data {
		switch v {
		case lo:
			out[i] = b.Lo
		case hi:
			// exact so a second pass hits the fast path
			out[i] = b.Hi
		default:
			out[i] = math.Min(b.Hi, b.Lo+(v-lo)*scale)
		}
	}
	return out, scale
}
