package energy

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"coupledsnakes/internal/logging"
	"coupledsnakes/pkg/contour"
)

// smoothness is the shared implementation of the length and curvature
// terms: E = ½·f·Σ w_i |(D C)_i|² with a circulant difference operator D and
// per-point weights w. Its matrix part is the block-diagonal f·DᵀWD.
type smoothness struct {
	base

	// value is the configured scalar weight; current the one in effect
	value   float64
	current float64

	// adapter optionally refreshes value every iteration
	adapter *Adapter

	// points holds the per-point weights
	points []float64

	// stencil builds D for P points
	stencil func(p int) *mat.Dense

	// boundFactor times the largest weight is the maximum derivative entry
	boundFactor float64

	factor float64
	bound  float64
}

func (s *smoothness) Capabilities() Capabilities {
	return Capabilities{Derivable: true, HasMatrix: true}
}

// SetAdapter installs a weight schedule. Must be called before Init.
func (s *smoothness) SetAdapter(a *Adapter) { s.adapter = a }

// PointWeights returns the per-point weights in use.
func (s *smoothness) PointWeights() []float64 { return s.points }

// SetPointWeights replaces the per-point weights. The length must match the
// current point count. A later resample resets them to the scalar value.
func (s *smoothness) SetPointWeights(w []float64) error {
	if len(w) != len(s.points) {
		return errors.Errorf("%s: got %d weights for %d points", s.name, len(w), len(s.points))
	}
	for _, v := range w {
		if !isFinite(v) {
			return errors.Errorf("%s: non-finite weight", s.name)
		}
	}
	copy(s.points, w)
	return nil
}

// Factor returns the normalization factor computed at Init.
func (s *smoothness) Factor() float64 { return s.factor }

func (s *smoothness) Init(setup *Setup) error {
	if setup.Curve == nil {
		return errors.Errorf("%s: no curve", s.name)
	}
	if !isFinite(s.value) {
		return errors.Errorf("%s: non-finite weight %f", s.name, s.value)
	}
	bound := math.Abs(s.value)
	if s.adapter != nil {
		bound = math.Max(bound, s.adapter.Max)
	}
	s.bound = s.boundFactor * bound
	s.factor = normalizationFactor(setup.Mode, s.bound)
	s.current = s.value
	s.fill(setup.Curve.Len())
	return nil
}

func (s *smoothness) fill(n int) {
	if len(s.points) != n {
		s.points = make([]float64, n)
	}
	for i := range s.points {
		s.points[i] = s.current
	}
}

func (s *smoothness) UpdateStatus(st *Status) error {
	if s.adapter != nil {
		v, ok := s.adapter.value(st.Iteration, s.value, s.current)
		if !ok {
			logging.Logger().Warn("rejected non-finite weight", "energy", s.name, "iteration", st.Iteration)
		} else if v != s.current {
			s.current = v
			s.fill(st.Curve.Len())
		}
	}
	if len(s.points) != st.Curve.Len() {
		s.fill(st.Curve.Len())
	}
	return nil
}

func (s *smoothness) check(c *contour.Curve) {
	if len(s.points) != c.Len() {
		panic(fmt.Sprintf("energy: %s has %d weights for %d points; UpdateStatus was skipped after resampling",
			s.name, len(s.points), c.Len()))
	}
}

func (s *smoothness) CalcEnergy(st *Status) float64 {
	s.check(st.Curve)
	d := s.stencil(st.Curve.Len())
	coords := st.Curve.Coordinates()
	p := st.Curve.Len()
	var dx, dy mat.VecDense
	dx.MulVec(d, mat.NewVecDense(p, coords[:p]))
	dy.MulVec(d, mat.NewVecDense(p, coords[p:]))
	var e float64
	for i := 0; i < p; i++ {
		e += s.points[i] * (dx.AtVec(i)*dx.AtVec(i) + dy.AtVec(i)*dy.AtVec(i))
	}
	return 0.5 * s.factor * e
}

func (s *smoothness) MatrixPart(st *Status) *mat.Dense {
	s.check(st.Curve)
	p := st.Curve.Len()
	d := s.stencil(p)

	w := mat.NewDiagDense(p, append([]float64(nil), s.points...))
	var wd, k mat.Dense
	wd.Mul(w, d)
	k.Mul(d.T(), &wd)

	m := mat.NewDense(2*p, 2*p, nil)
	m.Slice(0, p, 0, p).(*mat.Dense).Scale(s.factor, &k)
	m.Slice(p, 2*p, p, 2*p).(*mat.Dense).Scale(s.factor, &k)
	return m
}

func (s *smoothness) VectorPart(*Status) *mat.VecDense { return nil }

// MaxDerivative returns the theoretical maximum matrix entry computed at
// Init from the largest weight the term or its adapter can produce.
func (s *smoothness) MaxDerivative() float64 { return s.bound }

// forwardDifference is the circulant D with (DC)_i = C_{i+1} - C_i.
func forwardDifference(p int) *mat.Dense {
	d := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		d.Set(i, i, -1)
		d.Set(i, (i+1)%p, 1)
	}
	return d
}

// secondDifference is the circulant D with (DC)_i = C_{i-1} - 2C_i + C_{i+1}.
func secondDifference(p int) *mat.Dense {
	d := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		d.Set(i, (i+p-1)%p, 1)
		d.Set(i, i, -2)
		d.Set(i, (i+1)%p, 1)
	}
	return d
}

// Length penalizes first-order stretching: ½·f·Σ α_i |C_{i+1} - C_i|².
type Length struct {
	smoothness
}

// NewLength creates a length term with external weight and uniform alpha.
func NewLength(weight, alpha float64) *Length {
	return &Length{smoothness{
		base:        base{name: "length", weight: weight},
		value:       alpha,
		stencil:     forwardDifference,
		boundFactor: 2,
	}}
}

// Curvature penalizes second-order bending: ½·f·Σ β_i |C_{i-1} - 2C_i + C_{i+1}|².
type Curvature struct {
	smoothness
}

// NewCurvature creates a curvature term with external weight and uniform beta.
func NewCurvature(weight, beta float64) *Curvature {
	return &Curvature{smoothness{
		base:        base{name: "curvature", weight: weight},
		value:       beta,
		stencil:     secondDifference,
		boundFactor: 8,
	}}
}
