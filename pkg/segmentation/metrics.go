package segmentation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/optimizer"
)

// Metrics holds the statistics of a finished segmentation.
type Metrics struct {
	// Curves is the number of curves; Failed how many stopped early
	Curves int
	Failed int

	// Iterations and Converged come from the optimizer
	Iterations int
	Converged  bool

	// Energy is the total energy, shared parts counted once
	Energy float64

	// Areas holds the pixel count of every label
	Areas []int

	// MeanInside and StdInside are the luminance statistics of every label
	MeanInside []float64
	StdInside  []float64

	// MeanBackground and StdBackground describe the unlabelled pixels
	MeanBackground float64
	StdBackground  float64

	// Contrast is the area-weighted mean |inside - background| over all labels
	Contrast float64

	// Coverage is the labelled fraction of the image
	Coverage float64
}

// CalculateMetrics computes the region statistics of a label image.
func CalculateMetrics(img *models.Image, labels *models.Labels, res *optimizer.Result) Metrics {
	lum := img.Luminance()
	n := 0
	for _, l := range labels.Data {
		n = max(n, int(l))
	}
	if res != nil {
		n = max(n, len(res.Curves))
	}

	groups := make([][]float64, n+1)
	for i, l := range labels.Data {
		groups[l] = append(groups[l], lum[i])
	}

	m := Metrics{
		Curves:     n,
		Areas:      make([]int, n),
		MeanInside: make([]float64, n),
		StdInside:  make([]float64, n),
	}
	if res != nil {
		m.Failed = len(res.Failed)
		m.Iterations = res.Iterations
		m.Converged = res.Converged
		m.Energy = res.Total
	}
	m.MeanBackground, m.StdBackground = meanStd(groups[0])

	var labelled int
	var contrast float64
	for k := 1; k <= n; k++ {
		g := groups[k]
		m.Areas[k-1] = len(g)
		m.MeanInside[k-1], m.StdInside[k-1] = meanStd(g)
		labelled += len(g)
		contrast += float64(len(g)) * math.Abs(m.MeanInside[k-1]-m.MeanBackground)
	}
	if labelled > 0 {
		m.Contrast = contrast / float64(labelled)
	}
	if len(labels.Data) > 0 {
		m.Coverage = float64(labelled) / float64(len(labels.Data))
	}
	return m
}

func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
