package energy

import (
	"github.com/pkg/errors"
)

// Area keeps the enclosed area near a target: ((A - A0) / A0)². It has no
// derivative decomposition and is meant for the greedy optimizer.
type Area struct {
	base

	// Target is A0 in squared curve units; zero takes the initial area
	Target float64

	target float64
}

// NewArea creates an area term.
func NewArea(weight, target float64) *Area {
	return &Area{base: base{name: "area", weight: weight}, Target: target}
}

func (a *Area) Capabilities() Capabilities { return Capabilities{} }

func (a *Area) Init(setup *Setup) error {
	a.target = a.Target
	if a.target == 0 && setup.Curve != nil {
		a.target = setup.Curve.Area()
	}
	if a.target <= 0 {
		return errors.New("area: target area must be positive")
	}
	return nil
}

func (a *Area) UpdateStatus(*Status) error { return nil }

func (a *Area) CalcEnergy(st *Status) float64 {
	d := (st.Curve.Area() - a.target) / a.target
	return d * d
}
