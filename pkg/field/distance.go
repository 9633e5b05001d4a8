package field

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/kdtree"

	"coupledsnakes/internal/models"
)

// Metric selects the distance used by DistanceTransform.
type Metric int

const (
	Euclidean Metric = iota
	Chessboard
	Cityblock
)

// String returns the configuration name of the metric
func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Chessboard:
		return "chessboard"
	case Cityblock:
		return "cityblock"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// ParseMetric maps a configuration name to a Metric
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "euclidean", "":
		return Euclidean, nil
	case "chessboard":
		return Chessboard, nil
	case "cityblock":
		return Cityblock, nil
	}
	return 0, errors.Errorf("unknown distance metric %q", name)
}

// DistanceTransform returns, for every foreground pixel, the distance to the
// nearest background pixel; background pixels hold 0. With foregroundSet the
// set cells of mask are foreground, otherwise the unset cells are. An image
// without background yields width+height everywhere in the foreground.
func DistanceTransform(mask *models.Mask, metric Metric, foregroundSet bool) []float64 {
	w, h := mask.Width, mask.Height
	fg := make([]bool, w*h)
	for i, v := range mask.Data {
		fg[i] = (v != 0) == foregroundSet
	}

	var dist []float64
	switch metric {
	case Euclidean:
		dist = euclideanDistance(fg, w, h)
	case Chessboard:
		dist = chamferDistance(fg, w, h, true)
	default:
		dist = chamferDistance(fg, w, h, false)
	}

	far := float64(w + h)
	for i, d := range dist {
		if math.IsInf(d, 1) {
			dist[i] = far
		}
	}
	return dist
}

// euclideanDistance answers a nearest-neighbour query per foreground pixel
// against a k-d tree of background pixels.
func euclideanDistance(fg []bool, w, h int) []float64 {
	dist := make([]float64, w*h)
	var bg kdtree.Points
	for i, f := range fg {
		if !f {
			bg = append(bg, kdtree.Point{float64(i % w), float64(i / w)})
		}
	}
	if len(bg) == 0 {
		for i := range dist {
			dist[i] = math.Inf(1)
		}
		return dist
	}
	tree := kdtree.New(bg, false)
	for i, f := range fg {
		if !f {
			continue
		}
		_, d2 := tree.Nearest(kdtree.Point{float64(i % w), float64(i / w)})
		dist[i] = math.Sqrt(d2)
	}
	return dist
}

// chamferDistance runs the two-pass sweep with unit steps, which is exact
// for the chessboard (8-neighbour) and cityblock (4-neighbour) metrics.
func chamferDistance(fg []bool, w, h int, diagonal bool) []float64 {
	dist := make([]float64, w*h)
	for i, f := range fg {
		if f {
			dist[i] = math.Inf(1)
		}
	}
	relax := func(x, y, nx, ny int) {
		if nx < 0 || ny < 0 || nx >= w || ny >= h {
			return
		}
		if d := dist[ny*w+nx] + 1; d < dist[y*w+x] {
			dist[y*w+x] = d
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			relax(x, y, x-1, y)
			relax(x, y, x, y-1)
			if diagonal {
				relax(x, y, x-1, y-1)
				relax(x, y, x+1, y-1)
			}
		}
	}
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			relax(x, y, x+1, y)
			relax(x, y, x, y+1)
			if diagonal {
				relax(x, y, x+1, y+1)
				relax(x, y, x-1, y+1)
			}
		}
	}
	return dist
}
