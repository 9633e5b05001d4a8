package field

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"coupledsnakes/internal/models"
)

// otsuBins is the histogram resolution used by Otsu.
const otsuBins = 256

// Otsu returns the threshold maximizing the between-class variance of data.
// A constant plane returns its value.
func Otsu(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi-lo < degenerate {
		return lo
	}

	dividers := make([]float64, otsuBins+1)
	floats.Span(dividers, lo, hi)
	dividers[otsuBins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	total := float64(len(sorted))
	binWidth := (hi - lo) / otsuBins
	centers := make([]float64, otsuBins)
	for i := range centers {
		centers[i] = lo + (float64(i)+0.5)*binWidth
	}
	sumAll := floats.Dot(counts, centers)

	var (
		best      = lo
		bestScore = -1.0
		wB, sumB  float64
	)
	for i := 0; i < otsuBins-1; i++ {
		wB += counts[i]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += counts[i] * centers[i]
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		score := wB * wF * (mB - mF) * (mB - mF)
		if score > bestScore {
			bestScore = score
			best = dividers[i+1]
		}
	}
	return best
}

// Binarize sets every pixel whose value is at least threshold (or below it
// when invert is true).
func Binarize(data []float64, width, height int, threshold float64, invert bool) *models.Mask {
	m := models.NewMask(width, height)
	for i, v := range data {
		if (v >= threshold) != invert {
			m.Data[i] = 1
		}
	}
	return m
}
