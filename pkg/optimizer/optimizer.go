// Package optimizer drives energy terms over one or several curves.
//
// Snake advances one curve with the semi-implicit update
//
//	(γI + S) x' = γx - v
//
// where S and v are the weighted sums of the matrix and vector parts of all
// derivable energies. Coupled runs several snakes against one occupancy grid
// that is rebuilt from every curve at the start of each outer iteration,
// before any energy reads it. Greedy replaces the linear solve by a discrete
// neighbourhood search and works with any energy.
package optimizer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"coupledsnakes/pkg/contour"
	"coupledsnakes/pkg/energy"
)

// ErrSingular is returned when the update system cannot be solved.
var ErrSingular = errors.New("update system is singular")

// Params control one optimization run.
type Params struct {
	// Gamma is the inverse step size of the implicit update
	Gamma float64

	// MaxIterations bounds the number of outer iterations
	MaxIterations int

	// Tolerance stops the run once no point moved farther, in pixels
	Tolerance float64

	// Points resamples every curve to this many equally spaced points after
	// each step. Zero keeps the points where the update put them.
	Points int

	// Scale is the size of one pixel in curve coordinates. Zero means 1.
	Scale float64

	// Mode is the normalization policy handed to every energy
	Mode energy.Normalization
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Gamma:         1,
		MaxIterations: 200,
		Tolerance:     1e-3,
		Mode:          energy.NormalizeRange,
	}
}

// PixelScale returns Scale, or 1 when unset.
func (p Params) PixelScale() float64 {
	if p.Scale == 0 {
		return 1
	}
	return p.Scale
}

// EnergyError reports the failure of one energy term of one curve.
type EnergyError struct {
	Curve  uuid.UUID
	Energy string

	// Coupling is set when the term ties the curves of a run together
	Coupling bool

	Err error
}

func (e *EnergyError) Error() string {
	return fmt.Sprintf("curve %s: energy %s: %v", e.Curve, e.Energy, e.Err)
}

func (e *EnergyError) Unwrap() error { return e.Err }

// Cause lets errors.Cause see through the wrapper.
func (e *EnergyError) Cause() error { return e.Err }

// isCoupling reports whether err stems from a coupling energy.
func isCoupling(err error) bool {
	var ee *EnergyError
	return errors.As(err, &ee) && ee.Coupling
}

// Result summarizes a finished run.
type Result struct {
	// Iterations is the number of completed outer iterations
	Iterations int

	// Converged is set when the run stopped on the displacement tolerance
	Converged bool

	// Curves are the final curves, in run order
	Curves []*contour.Curve

	// Energies holds the weighted energy of every curve, shared parts included
	Energies []float64

	// Total counts shared parts once
	Total float64

	// Failed maps curves that stopped early to the reason
	Failed map[uuid.UUID]error
}
