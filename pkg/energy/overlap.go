package energy

import (
	"gonum.org/v1/gonum/mat"

	"coupledsnakes/internal/logging"
	"coupledsnakes/pkg/contour"
)

// Overlap penalizes pixels covered by more than one curve: every pixel with
// k covering curves adds ρ·C(k,2). It only acts in coupled runs.
type Overlap struct {
	base

	Rho float64

	curves int
	factor float64
	active bool
}

// NewOverlap creates an overlap penalty with coefficient rho.
func NewOverlap(weight, rho float64) *Overlap {
	return &Overlap{base: base{name: "overlap", weight: weight}, Rho: rho}
}

func (o *Overlap) Capabilities() Capabilities {
	return Capabilities{
		Derivable:       true,
		HasMatrix:       true,
		RequiresCCW:     true,
		RequiresOverlap: true,
		Coupling:        true,
	}
}

// Init normalizes by ρ·N, the largest speed a point can see.
func (o *Overlap) Init(setup *Setup) error {
	o.curves = setup.Curves
	if o.curves < 1 {
		o.curves = 1
	}
	o.factor = normalizationFactor(setup.Mode, o.Rho*float64(o.curves))
	return nil
}

func (o *Overlap) UpdateStatus(st *Status) error {
	o.active = st.Overlap != nil
	if !o.active {
		logging.Logger().Warn("overlap mask missing, overlap term contributes nothing",
			"curve", st.Index, "iteration", st.Iteration)
	}
	return nil
}

// CalcEnergy returns ρ Σ C(k,2) over the occupancy grid of st.
func (o *Overlap) CalcEnergy(st *Status) float64 {
	if st.Overlap == nil {
		return 0
	}
	var pairs int
	for _, k := range st.Overlap.Counts {
		if k >= 2 {
			pairs += k * (k - 1) / 2
		}
	}
	return o.Rho * float64(pairs)
}

// SharedEnergy is the whole value: it does not depend on which curve asks.
func (o *Overlap) SharedEnergy(st *Status) float64 { return o.CalcEnergy(st) }

// Tau returns ρ times the number of other curves covering each point, normalized.
func (o *Overlap) Tau(st *Status) []float64 {
	c := st.Curve
	tau := make([]float64, c.Len())
	if st.Overlap == nil {
		return tau
	}
	for i, p := range c.Points {
		x, y := contour.Pixel(p, st.Overlap.Width, st.Overlap.Height, st.PixelScale())
		tau[i] = o.Rho * float64(st.Others(x, y)) * o.factor
	}
	return tau
}

func (o *Overlap) MatrixPart(st *Status) *mat.Dense {
	if !o.active {
		return nil
	}
	return crossCoupling(o.Tau(st))
}

func (o *Overlap) VectorPart(*Status) *mat.VecDense { return nil }
