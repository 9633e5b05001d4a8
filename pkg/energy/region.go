package energy

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"coupledsnakes/internal/logging"
	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
)

// Region is the Chan–Vese region-fit term. The image inside the curve and
// the shared background (pixels covered by no curve) are each modelled by
// their per-channel mean:
//
//	E = λin Σ_inside Σ_c (I_c - in_c)² + λout Σ_background Σ_c (I_c - out_c)²
//
// The background part is shared by all curves of a coupled run.
type Region struct {
	base

	LambdaIn  float64
	LambdaOut float64

	// Source overrides the driver's working image when set
	Source *models.Image

	img    *models.Image
	factor float64
	in     []float64
	out    []float64
	active bool
}

// NewRegion creates a region-fit term.
func NewRegion(weight, lambdaIn, lambdaOut float64) *Region {
	return &Region{
		base:      base{name: "region", weight: weight},
		LambdaIn:  lambdaIn,
		LambdaOut: lambdaOut,
	}
}

func (r *Region) Capabilities() Capabilities {
	return Capabilities{Derivable: true, HasMatrix: true, RequiresCCW: true, RequiresOverlap: true}
}

// Init selects the image and derives the normalization bound
// Σ_c max(λin, λout)·(max_c - min_c)² from it.
func (r *Region) Init(setup *Setup) error {
	r.img = r.Source
	if r.img == nil {
		r.img = setup.Image
	}
	if r.img == nil {
		return errors.Wrap(ErrNoImage, "region")
	}
	if setup.Width != 0 && (r.img.Width != setup.Width || r.img.Height != setup.Height) {
		return errors.Wrapf(ErrSizeMismatch, "region: image %dx%d, run %dx%d",
			r.img.Width, r.img.Height, setup.Width, setup.Height)
	}

	lambda := math.Max(math.Abs(r.LambdaIn), math.Abs(r.LambdaOut))
	var bound float64
	for _, plane := range r.img.Channels {
		span := floats.Max(plane) - floats.Min(plane)
		bound += lambda * span * span
	}
	r.factor = normalizationFactor(setup.Mode, bound)

	n := r.img.NumChannels()
	r.in = make([]float64, n)
	r.out = make([]float64, n)
	return nil
}

// UpdateStatus recomputes the interior means over visible interior pixels
// and the background means over pixels no curve covers.
func (r *Region) UpdateStatus(st *Status) error {
	if st.Overlap == nil {
		r.active = false
		logging.Logger().Warn("overlap mask missing, region term contributes nothing",
			"curve", st.Index, "iteration", st.Iteration)
		return nil
	}
	r.active = true

	n := r.img.NumChannels()
	sumIn := make([]float64, n)
	sumOut := make([]float64, n)
	var countIn, countOut int
	w := r.img.Width
	for i := 0; i < w*r.img.Height; i++ {
		x, y := i%w, i/w
		switch {
		case st.Interior.Data[i] != 0 && visible(st, x, y):
			for c, plane := range r.img.Channels {
				sumIn[c] += plane[i]
			}
			countIn++
		case st.Overlap.Counts[i] == 0 && !excluded(st, x, y):
			for c, plane := range r.img.Channels {
				sumOut[c] += plane[i]
			}
			countOut++
		}
	}
	// an empty region keeps its previous mean
	if countIn > 0 {
		floats.ScaleTo(r.in, 1/float64(countIn), sumIn)
	}
	if countOut > 0 {
		floats.ScaleTo(r.out, 1/float64(countOut), sumOut)
	}
	return nil
}

func visible(st *Status, x, y int) bool {
	return st.Visible == nil || st.Visible.Get(x, y)
}

func excluded(st *Status, x, y int) bool {
	return st.Excluded != nil && st.Excluded.Get(x, y)
}

// InteriorMean returns the per-channel interior means of the last update.
func (r *Region) InteriorMean() []float64 { return r.in }

// ExteriorMean returns the per-channel background means of the last update.
func (r *Region) ExteriorMean() []float64 { return r.out }

// InnerEnergy is Σ_inside Σ_c (I_c - in_c)² over visible interior pixels.
func (r *Region) InnerEnergy(st *Status) float64 {
	if !r.active {
		return 0
	}
	var e float64
	w := r.img.Width
	for i, v := range st.Interior.Data {
		if v == 0 || !visible(st, i%w, i/w) {
			continue
		}
		e += r.residual(i, r.in)
	}
	return e
}

// OuterEnergy is Σ_background Σ_c (I_c - out_c)².
func (r *Region) OuterEnergy(st *Status) float64 {
	if !r.active {
		return 0
	}
	var e float64
	w := r.img.Width
	for i, k := range st.Overlap.Counts {
		if k != 0 || excluded(st, i%w, i/w) {
			continue
		}
		e += r.residual(i, r.out)
	}
	return e
}

func (r *Region) residual(i int, mean []float64) float64 {
	var s float64
	for c, plane := range r.img.Channels {
		d := plane[i] - mean[c]
		s += d * d
	}
	return s
}

func (r *Region) CalcEnergy(st *Status) float64 {
	return r.LambdaIn*r.InnerEnergy(st) + r.LambdaOut*r.OuterEnergy(st)
}

// SharedEnergy is the background part, common to every curve of the run.
func (r *Region) SharedEnergy(st *Status) float64 {
	return r.LambdaOut * r.OuterEnergy(st)
}

// Tau returns the per-point speed λin(I-in)² - λout(I-out)², summed over
// channels and normalized.
func (r *Region) Tau(st *Status) []float64 {
	c := st.Curve
	tau := make([]float64, c.Len())
	for i, p := range c.Points {
		x, y := contour.Pixel(p, r.img.Width, r.img.Height, st.PixelScale())
		var t float64
		for ch := range r.img.Channels {
			v := r.img.At(ch, x, y)
			di, do := v-r.in[ch], v-r.out[ch]
			t += r.LambdaIn*di*di - r.LambdaOut*do*do
		}
		tau[i] = t * r.factor
	}
	return tau
}

func (r *Region) MatrixPart(st *Status) *mat.Dense {
	if !r.active {
		return nil
	}
	return crossCoupling(r.Tau(st))
}

func (r *Region) VectorPart(*Status) *mat.VecDense { return nil }
