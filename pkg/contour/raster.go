package contour

import (
	"math"
	"sort"

	"coupledsnakes/internal/models"
)

// Rasterize fills the interior of the curve into a width×height mask using
// the even-odd rule. A pixel belongs to the interior when its center,
// taken at integer coordinates after dividing by scale, lies inside.
func (c *Curve) Rasterize(width, height int, scale float64) *models.Mask {
	m := models.NewMask(width, height)
	if scale == 0 {
		scale = 1
	}
	n := len(c.Points)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range c.Points {
		y := p.Y / scale
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	y0 := int(math.Max(0, math.Ceil(minY)))
	y1 := int(math.Min(float64(height-1), math.Floor(maxY)))

	xs := make([]float64, 0, 8)
	for y := y0; y <= y1; y++ {
		fy := float64(y)
		xs = xs[:0]
		for i := 0; i < n; i++ {
			a, b := c.Points[i].Scale(1/scale), c.At(i+1).Scale(1/scale)
			// half-open so a vertex on the scanline is counted once
			if (a.Y <= fy && fy < b.Y) || (b.Y <= fy && fy < a.Y) {
				xs = append(xs, a.X+(fy-a.Y)*(b.X-a.X)/(b.Y-a.Y))
			}
		}
		sort.Float64s(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			xa := int(math.Max(0, math.Ceil(xs[k])))
			xb := int(math.Min(float64(width), math.Ceil(xs[k+1])))
			for x := xa; x < xb; x++ {
				m.Data[y*width+x] = 1
			}
		}
	}
	return m
}

// Pixel maps a point to its nearest pixel, clamped to the raster.
func Pixel(p Point, width, height int, scale float64) (int, int) {
	if scale == 0 {
		scale = 1
	}
	x := int(math.Round(p.X / scale))
	y := int(math.Round(p.Y / scale))
	if x < 0 {
		x = 0
	} else if x >= width {
		x = width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= height {
		y = height - 1
	}
	return x, y
}
