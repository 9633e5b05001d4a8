package energy

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
	"coupledsnakes/pkg/field"
)

// imageField is the shared base of the image terms: a scalar field sampled
// at the nearest pixel, with clamped central differences as derivatives.
type imageField struct {
	base

	// Source overrides the driver's working image when set
	Source *models.Image

	band field.Band

	// balancedDivisor further divides the derivatives in balanced mode
	balancedDivisor float64

	width, height int
	values        []float64

	// scale is the factor applied by the last normalization
	scale float64

	// dx and dy, when set, replace the central differences
	dx, dy []float64

	divisor float64
}

func (f *imageField) Capabilities() Capabilities {
	return Capabilities{Derivable: true, HasVector: true}
}

// image resolves the image a term initializes from.
func (f *imageField) image(setup *Setup) (*models.Image, error) {
	img := f.Source
	if img == nil {
		img = setup.Image
	}
	if img == nil {
		return nil, errors.Wrap(ErrNoImage, f.name)
	}
	if setup.Width != 0 && (img.Width != setup.Width || img.Height != setup.Height) {
		return nil, errors.Wrapf(ErrSizeMismatch, "%s: image %dx%d, run %dx%d",
			f.name, img.Width, img.Height, setup.Width, setup.Height)
	}
	return img, nil
}

// normalizeEnergy rescales a raw field into the term's band once, at Init.
func (f *imageField) normalizeEnergy(raw []float64, width, height int, mode Normalization) {
	f.width, f.height = width, height
	f.values, f.scale = field.Normalize(raw, f.band)
	f.divisor = 1
	if mode == NormalizeBalanced && f.balancedDivisor > 0 {
		f.divisor = f.balancedDivisor
	}
}

// Values returns the normalized field.
func (f *imageField) Values() []float64 { return f.values }

func (f *imageField) pixel(x, y float64) (int, int) {
	return contour.Pixel(contour.Point{X: x, Y: y}, f.width, f.height, 1)
}

// Value samples the field at the nearest pixel of (x, y), given in pixels.
func (f *imageField) Value(x, y float64) float64 {
	px, py := f.pixel(x, y)
	return f.values[py*f.width+px]
}

// DerivativeX is ∂field/∂x at the nearest pixel of (x, y), given in pixels.
func (f *imageField) DerivativeX(x, y float64) float64 {
	px, py := f.pixel(x, y)
	if f.dx != nil {
		return f.dx[py*f.width+px]
	}
	return field.CentralX(f.values, f.width, f.height, px, py)
}

// DerivativeY is ∂field/∂y at the nearest pixel of (x, y), given in pixels.
func (f *imageField) DerivativeY(x, y float64) float64 {
	px, py := f.pixel(x, y)
	if f.dy != nil {
		return f.dy[py*f.width+px]
	}
	return field.CentralY(f.values, f.width, f.height, px, py)
}

func (f *imageField) UpdateStatus(*Status) error { return nil }

// CalcEnergy returns the mean field value over the control points.
func (f *imageField) CalcEnergy(st *Status) float64 {
	s := st.PixelScale()
	var e float64
	for _, p := range st.Curve.Points {
		e += f.Value(p.X/s, p.Y/s)
	}
	return e / float64(st.Curve.Len())
}

func (f *imageField) MatrixPart(*Status) *mat.Dense { return nil }

// VectorPart stacks the x-derivatives of all points above the y-derivatives,
// converted to curve units.
func (f *imageField) VectorPart(st *Status) *mat.VecDense {
	s := st.PixelScale()
	p := st.Curve.Len()
	v := mat.NewVecDense(2*p, nil)
	k := 1 / (s * f.divisor)
	for i, pt := range st.Curve.Points {
		x, y := pt.X/s, pt.Y/s
		v.SetVec(i, f.DerivativeX(x, y)*k)
		v.SetVec(p+i, f.DerivativeY(x, y)*k)
	}
	return v
}

// Intensity uses the normalized image luminance. It attracts the curve to
// dark areas, or to bright ones when Bright is set. Its capture range is a
// few pixels.
type Intensity struct {
	imageField
	Bright bool
}

// NewIntensity creates an intensity term.
func NewIntensity(weight float64, bright bool) *Intensity {
	return &Intensity{
		imageField: imageField{base: base{name: "intensity", weight: weight}, band: field.UnitBand},
		Bright:     bright,
	}
}

func (e *Intensity) Init(setup *Setup) error {
	img, err := e.image(setup)
	if err != nil {
		return err
	}
	raw := img.Luminance()
	if e.Bright {
		for i := range raw {
			raw[i] = -raw[i]
		}
	}
	e.normalizeEnergy(raw, img.Width, img.Height, setup.Mode)
	return nil
}

// Gradient is -|∇(G_σ * I)|², attracting the curve to edges. Its
// derivatives have a larger intrinsic range and are divided by 4 in
// balanced mode.
type Gradient struct {
	imageField
	Sigma float64
}

// NewGradient creates an edge term smoothing with sigma first.
func NewGradient(weight, sigma float64) *Gradient {
	return &Gradient{
		imageField: imageField{
			base:            base{name: "gradient", weight: weight},
			band:            field.NegativeBand,
			balancedDivisor: 4,
		},
		Sigma: sigma,
	}
}

func (e *Gradient) Init(setup *Setup) error {
	img, err := e.image(setup)
	if err != nil {
		return err
	}
	smooth := field.GaussianSmooth(img.Luminance(), img.Width, img.Height, e.Sigma)
	raw := field.GradientMagnitudeSquared(smooth, img.Width, img.Height)
	for i := range raw {
		raw[i] = -raw[i]
	}
	e.normalizeEnergy(raw, img.Width, img.Height, setup.Mode)
	return nil
}

// Distance is the negated distance transform of the binarized image; it
// pulls the curve towards the medial structure of the foreground.
type Distance struct {
	imageField

	Metric field.Metric

	// ForegroundBright selects bright pixels as foreground
	ForegroundBright bool

	// Threshold binarizes the luminance; zero selects Otsu
	Threshold float64
}

// NewDistance creates a distance-field term.
func NewDistance(weight float64, metric field.Metric, foregroundBright bool) *Distance {
	return &Distance{
		imageField:       imageField{base: base{name: "distance", weight: weight}, band: field.NegativeBand},
		Metric:           metric,
		ForegroundBright: foregroundBright,
	}
}

func (e *Distance) Init(setup *Setup) error {
	img, err := e.image(setup)
	if err != nil {
		return err
	}
	lum := img.Luminance()
	th := e.Threshold
	if th == 0 {
		th = field.Otsu(lum)
	}
	mask := field.Binarize(lum, img.Width, img.Height, th, false)
	raw := field.DistanceTransform(mask, e.Metric, e.ForegroundBright)
	for i := range raw {
		raw[i] = -raw[i]
	}
	e.normalizeEnergy(raw, img.Width, img.Height, setup.Mode)
	return nil
}

// Flow uses gradient vector flow: the diffused flow drives the derivatives
// directly and the reconstructed potential gives the value. The capture
// range is large; the potential is approximate. Derivatives are divided by 4
// in balanced mode.
type Flow struct {
	imageField

	Sigma      float64
	Iterations int
	Mu         float64

	flow *field.Flow
}

// NewFlow creates a gradient-vector-flow term.
func NewFlow(weight, sigma float64, iterations int, mu float64) *Flow {
	return &Flow{
		imageField: imageField{
			base:            base{name: "flow", weight: weight},
			band:            field.UnitBand,
			balancedDivisor: 4,
		},
		Sigma:      sigma,
		Iterations: iterations,
		Mu:         mu,
	}
}

func (e *Flow) Init(setup *Setup) error {
	img, err := e.image(setup)
	if err != nil {
		return err
	}
	w, h := img.Width, img.Height
	smooth := field.GaussianSmooth(img.Luminance(), w, h, e.Sigma)
	edge, _ := field.Normalize(field.GradientMagnitudeSquared(smooth, w, h), field.UnitBand)
	e.flow = field.GradientVectorFlow(edge, w, h, e.Iterations, e.Mu)

	// E = -Φ, so ∇E = -(u, v) scaled like the field
	raw := make([]float64, len(e.flow.Potential))
	for i, v := range e.flow.Potential {
		raw[i] = -v
	}
	e.normalizeEnergy(raw, w, h, setup.Mode)
	e.dx = make([]float64, len(raw))
	e.dy = make([]float64, len(raw))
	for i := range raw {
		e.dx[i] = -e.flow.U[i] * e.scale
		e.dy[i] = -e.flow.V[i] * e.scale
	}
	return nil
}

// Field returns the vector flow computed at Init.
func (e *Flow) Field() *field.Flow { return e.flow }
