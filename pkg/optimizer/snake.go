package optimizer

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"coupledsnakes/internal/logging"
	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
	"coupledsnakes/pkg/energy"
)

// Snake is the single-curve unit: one curve and the energies acting on it.
type Snake struct {
	Curve    *contour.Curve
	Energies []energy.Energy

	params        Params
	width, height int

	// caps is the union of the capabilities of all energies
	caps energy.Capabilities

	interior *models.Mask
	status   *energy.Status

	frozen bool
	err    error
}

// NewSnake creates a snake. The curve is evolved in place.
func NewSnake(curve *contour.Curve, energies []energy.Energy, params Params) *Snake {
	s := &Snake{Curve: curve, Energies: energies, params: params}
	for _, e := range energies {
		c := e.Capabilities()
		s.caps.Derivable = s.caps.Derivable || c.Derivable
		s.caps.HasMatrix = s.caps.HasMatrix || c.HasMatrix
		s.caps.HasVector = s.caps.HasVector || c.HasVector
		s.caps.RequiresCCW = s.caps.RequiresCCW || c.RequiresCCW
		s.caps.RequiresOverlap = s.caps.RequiresOverlap || c.RequiresOverlap
		s.caps.Coupling = s.caps.Coupling || c.Coupling
	}
	return s
}

// Capabilities returns the union of the capabilities of the snake's energies.
func (s *Snake) Capabilities() energy.Capabilities { return s.caps }

// Frozen reports whether the snake stopped after a failure; Err returns it.
func (s *Snake) Frozen() bool { return s.frozen }

func (s *Snake) Err() error { return s.err }

// Status returns the snapshot of the last update, nil before the first one.
func (s *Snake) Status() *energy.Status { return s.status }

// Init initializes every energy for a run of the given number of curves.
func (s *Snake) Init(img *models.Image, width, height, curves int) error {
	if s.Curve == nil || s.Curve.Len() < contour.MinPoints {
		return errors.Wrap(contour.ErrTooFewPoints, "snake init")
	}
	s.width, s.height = width, height
	s.frozen, s.err = false, nil
	if s.caps.RequiresCCW {
		s.Curve.EnsureCCW()
	}
	setup := &energy.Setup{
		Image:  img,
		Width:  width,
		Height: height,
		Scale:  s.params.Scale,
		Mode:   s.params.Mode,
		Curve:  s.Curve,
		Curves: curves,
	}
	for _, e := range s.Energies {
		if err := e.Init(setup); err != nil {
			return s.energyError(e, err)
		}
	}
	return nil
}

func (s *Snake) energyError(e energy.Energy, err error) error {
	return &EnergyError{
		Curve:    s.Curve.ID,
		Energy:   e.Name(),
		Coupling: e.Capabilities().Coupling,
		Err:      err,
	}
}

func (s *Snake) freeze(err error) {
	s.frozen = true
	s.err = err
	logging.Logger().Warn("curve frozen", "curve", s.Curve.ID, "error", err)
}

// prepare restores the orientation the energies need and rasterizes the interior.
func (s *Snake) prepare() {
	if s.caps.RequiresCCW && s.Curve.EnsureCCW() {
		logging.Logger().Debug("curve reversed to counter-clockwise", "curve", s.Curve.ID)
	}
	s.rasterize()
}

func (s *Snake) rasterize() {
	s.interior = s.Curve.Rasterize(s.width, s.height, s.params.Scale)
}

// update builds a fresh snapshot from the occupancy and refreshes every energy.
func (s *Snake) update(iteration, index, curves int, occ *models.Occupancy, excluded *models.Mask) error {
	st := &energy.Status{
		Iteration: iteration,
		Index:     index,
		Curves:    curves,
		Curve:     s.Curve,
		Interior:  s.interior,
		Overlap:   occ,
		Excluded:  excluded,
		Scale:     s.params.Scale,
	}
	if occ != nil || excluded != nil {
		st.Visible = visibility(s.interior, occ, excluded)
	}
	s.status = st
	for _, e := range s.Energies {
		if err := e.UpdateStatus(st); err != nil {
			return s.energyError(e, err)
		}
	}
	return nil
}

// visibility marks the pixels no other curve covers and that are not excluded.
func visibility(own *models.Mask, occ *models.Occupancy, excluded *models.Mask) *models.Mask {
	vis := models.NewMask(own.Width, own.Height)
	for i := range vis.Data {
		others := 0
		if occ != nil {
			others = occ.Counts[i] - int(own.Data[i])
		}
		if others == 0 && (excluded == nil || excluded.Data[i] == 0) {
			vis.Data[i] = 1
		}
	}
	return vis
}

// Energy returns the weighted energy of the curve as of the last update.
func (s *Snake) Energy() float64 {
	var total float64
	for _, e := range s.Energies {
		total += e.Weight() * e.CalcEnergy(s.status)
	}
	return total
}

// SharedEnergy returns the weighted part of Energy common to all curves.
func (s *Snake) SharedEnergy() float64 {
	var total float64
	for _, e := range s.Energies {
		if sh, ok := e.(energy.Shared); ok {
			total += e.Weight() * sh.SharedEnergy(s.status)
		}
	}
	return total
}

// Terms returns the unweighted value of every energy, by name.
func (s *Snake) Terms() map[string]float64 {
	terms := make(map[string]float64, len(s.Energies))
	for _, e := range s.Energies {
		terms[e.Name()] = e.CalcEnergy(s.status)
	}
	return terms
}

// step solves the implicit update and moves the curve. It returns the
// largest point displacement in pixels.
func (s *Snake) step() (float64, error) {
	p := s.Curve.Len()
	sys, vec := Assemble(s.Energies, s.status)

	coords := s.Curve.Coordinates()
	x := mat.NewVecDense(2*p, coords)
	for i := 0; i < 2*p; i++ {
		sys.Set(i, i, sys.At(i, i)+s.params.Gamma)
	}
	var b mat.VecDense
	b.ScaleVec(s.params.Gamma, x)
	b.SubVec(&b, vec)

	next, err := Solve(sys, &b)
	if err != nil {
		return 0, errors.Wrapf(err, "curve %s", s.Curve.ID)
	}

	moved := make([]float64, 2*p)
	for i := range moved {
		moved[i] = next.AtVec(i)
	}
	var disp float64
	for i := 0; i < p; i++ {
		disp = math.Max(disp, math.Hypot(moved[i]-coords[i], moved[p+i]-coords[p+i]))
	}
	s.Curve.SetCoordinates(moved)

	if s.params.Points > 0 {
		if err := s.Curve.Resample(s.params.Points); err != nil {
			return 0, errors.Wrapf(err, "curve %s", s.Curve.ID)
		}
	}
	return disp / s.params.PixelScale(), nil
}

// Run optimizes the curve alone. An energy that asks for an occupancy grid
// gets one built from this curve only.
func (s *Snake) Run(img *models.Image, width, height int) (*Result, error) {
	res, err := NewCoupled([]*Snake{s}, s.params).Run(img, width, height)
	if err == nil && s.err != nil {
		err = s.err
	}
	return res, err
}
