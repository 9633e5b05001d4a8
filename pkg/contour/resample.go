package contour

import (
	"math"

	"github.com/pkg/errors"
)

// Resample redistributes n points at equal arc length along the current
// polygon, starting at point 0. The identity is kept.
func (c *Curve) Resample(n int) error {
	if n < MinPoints {
		return errors.Wrapf(ErrTooFewPoints, "resample to %d", n)
	}
	total := c.Perimeter()
	if total == 0 {
		return errors.New("cannot resample a curve of zero length")
	}
	step := total / float64(n)

	out := make([]Point, 0, n)
	out = append(out, c.Points[0])
	seg := 0
	segStart := c.Points[0]
	segLen := c.FirstDerivative(0).Norm()
	walked := 0.0 // arc length consumed inside the current segment
	for k := 1; k < n; k++ {
		remaining := step
		for remaining > segLen-walked {
			remaining -= segLen - walked
			seg++
			segStart = c.At(seg)
			segLen = c.FirstDerivative(seg).Norm()
			walked = 0
		}
		walked += remaining
		t := walked / segLen
		end := c.At(seg + 1)
		out = append(out, segStart.Add(end.Sub(segStart).Scale(t)))
	}
	c.Points = out
	return nil
}

// ResampleSpacing resamples so consecutive points are roughly spacing apart.
func (c *Curve) ResampleSpacing(spacing float64) error {
	if spacing <= 0 {
		return errors.Errorf("spacing must be positive, got %f", spacing)
	}
	n := int(math.Round(c.Perimeter() / spacing))
	if n < MinPoints {
		n = MinPoints
	}
	return c.Resample(n)
}
