// Package contour implements the closed polygonal curve evolved by the
// optimizers: wrap-around indexing, finite differences, orientation,
// resampling and rasterization.
package contour

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// MinPoints is the smallest number of control points a closed curve may have.
const MinPoints = 3

// ErrTooFewPoints is returned when a curve would have fewer than MinPoints points.
var ErrTooFewPoints = errors.New("closed curve needs at least 3 points")

// Point is a 2D control point.
type Point struct {
	X, Y float64
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Scale returns p*s.
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 { return math.Hypot(p.X, p.Y) }

// Curve is a closed, ordered sequence of control points. Point P-1 is
// adjacent to point 0.
type Curve struct {
	ID     uuid.UUID
	Points []Point
}

// NewCurve copies pts into a new curve with a fresh identity.
func NewCurve(pts []Point) (*Curve, error) {
	if len(pts) < MinPoints {
		return nil, errors.Wrapf(ErrTooFewPoints, "got %d", len(pts))
	}
	c := &Curve{ID: uuid.New(), Points: make([]Point, len(pts))}
	copy(c.Points, pts)
	return c, nil
}

// NewCircle samples n points counter-clockwise (positive signed area) on a
// circle.
func NewCircle(cx, cy, r float64, n int) (*Curve, error) {
	if n < MinPoints {
		return nil, errors.Wrapf(ErrTooFewPoints, "got %d", n)
	}
	pts := make([]Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = Point{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	return NewCurve(pts)
}

// Len returns the number of control points.
func (c *Curve) Len() int { return len(c.Points) }

// Wrap maps any integer index into [0, P).
func (c *Curve) Wrap(i int) int {
	n := len(c.Points)
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// At returns point i with wrap-around.
func (c *Curve) At(i int) Point { return c.Points[c.Wrap(i)] }

// Clone returns a deep copy keeping the identity.
func (c *Curve) Clone() *Curve {
	d := &Curve{ID: c.ID, Points: make([]Point, len(c.Points))}
	copy(d.Points, c.Points)
	return d
}

// FirstDerivative returns the forward difference C(i+1) - C(i).
func (c *Curve) FirstDerivative(i int) Point {
	return c.At(i + 1).Sub(c.At(i))
}

// CentralDerivative returns (C(i+1) - C(i-1)) / 2.
func (c *Curve) CentralDerivative(i int) Point {
	return c.At(i + 1).Sub(c.At(i - 1)).Scale(0.5)
}

// SecondDerivative returns C(i-1) - 2C(i) + C(i+1).
func (c *Curve) SecondDerivative(i int) Point {
	p := c.At(i)
	return c.At(i - 1).Add(c.At(i + 1)).Sub(p.Scale(2))
}

// SignedArea is the shoelace area. Positive means counter-clockwise in a
// y-up frame (clockwise on screen, where y grows downwards).
func (c *Curve) SignedArea() float64 {
	var a float64
	for i := range c.Points {
		p, q := c.Points[i], c.At(i+1)
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// Area is the absolute enclosed area.
func (c *Curve) Area() float64 { return math.Abs(c.SignedArea()) }

// IsCCW reports whether the points run in the positive orientation.
func (c *Curve) IsCCW() bool { return c.SignedArea() > 0 }

// EnsureCCW reverses the point order when needed and reports whether it did.
func (c *Curve) EnsureCCW() bool {
	if c.SignedArea() >= 0 {
		return false
	}
	for i, j := 0, len(c.Points)-1; i < j; i, j = i+1, j-1 {
		c.Points[i], c.Points[j] = c.Points[j], c.Points[i]
	}
	return true
}

// Perimeter returns the total polygon length.
func (c *Curve) Perimeter() float64 {
	var l float64
	for i := range c.Points {
		l += c.FirstDerivative(i).Norm()
	}
	return l
}

// Spacings returns |C(i+1) - C(i)| for every i.
func (c *Curve) Spacings() []float64 {
	d := make([]float64, len(c.Points))
	for i := range c.Points {
		d[i] = c.FirstDerivative(i).Norm()
	}
	return d
}

// SpacingVariance is the population variance of the inter-point distances.
func (c *Curve) SpacingVariance() float64 {
	_, v := stat.PopMeanVariance(c.Spacings(), nil)
	return v
}

// Centroid returns the mean control point.
func (c *Curve) Centroid() Point {
	var s Point
	for _, p := range c.Points {
		s = s.Add(p)
	}
	return s.Scale(1 / float64(len(c.Points)))
}

// Coordinates returns the 2P coordinate vector: x-block followed by y-block.
func (c *Curve) Coordinates() []float64 {
	n := len(c.Points)
	v := make([]float64, 2*n)
	for i, p := range c.Points {
		v[i] = p.X
		v[n+i] = p.Y
	}
	return v
}

// SetCoordinates writes a 2P coordinate vector back into the points.
func (c *Curve) SetCoordinates(v []float64) {
	n := len(c.Points)
	if len(v) != 2*n {
		panic("contour: coordinate vector length does not match point count")
	}
	for i := range c.Points {
		c.Points[i] = Point{v[i], v[n+i]}
	}
}
