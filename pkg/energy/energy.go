// Package energy defines the pluggable terms of the snake functional and the
// contract the optimizers use to query them.
//
// Lifecycle: Init once per run, then for every iteration UpdateStatus before
// any CalcEnergy, MatrixPart or VectorPart call. Every query receives a fresh
// Status snapshot built by the driver after it refreshed the masks.
//
// Derivative systems for a curve with P points use the 2P coordinate layout
// of contour.Curve.Coordinates: x-block followed by y-block. The gradient of
// a derivable term at coordinates x is MatrixPart·x + VectorPart.
package energy

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
)

var (
	// ErrNoImage is returned by Init when a term needs an image and neither
	// the term nor the driver supplies one.
	ErrNoImage = errors.New("no image available")

	// ErrSizeMismatch is returned when an image does not match the raster size of the run.
	ErrSizeMismatch = errors.New("image size does not match the run")
)

// Normalization selects how raw derivatives are rescaled so one external
// weight per term is meaningful.
type Normalization int

const (
	// NormalizeNone leaves matrix and vector entries in physical units.
	NormalizeNone Normalization = iota
	// NormalizeRange divides every term by its maximum possible derivative.
	NormalizeRange
	// NormalizeBalanced is NormalizeRange plus a further division by 4 for
	// image terms with a larger intrinsic derivative range.
	NormalizeBalanced
)

// String returns the configuration name of the mode
func (n Normalization) String() string {
	switch n {
	case NormalizeNone:
		return "none"
	case NormalizeRange:
		return "range"
	case NormalizeBalanced:
		return "balanced"
	}
	return "unknown"
}

// ParseNormalization maps a configuration name to a mode
func ParseNormalization(name string) (Normalization, error) {
	switch name {
	case "none":
		return NormalizeNone, nil
	case "range", "":
		return NormalizeRange, nil
	case "balanced":
		return NormalizeBalanced, nil
	}
	return 0, errors.Errorf("unknown normalization %q", name)
}

// Capabilities is the side-effect free description of a term the driver
// uses to prepare each iteration.
type Capabilities struct {
	// Derivable terms implement the Derivable interface
	Derivable bool

	// HasMatrix and HasVector tell which parts may be non-nil
	HasMatrix bool
	HasVector bool

	// RequiresCCW asks the driver to keep points in positive orientation
	RequiresCCW bool

	// RequiresOverlap asks the driver for a fresh occupancy grid
	RequiresOverlap bool

	// Coupling terms tie the curves of a run together. Their failure makes
	// the shared masks meaningless and aborts the whole coupled session.
	Coupling bool
}

// Setup carries run-wide data handed to Init.
type Setup struct {
	// Image is the working image of the driver. May be nil when no term needs it.
	Image *models.Image

	// Width and Height are the raster size of the run
	Width, Height int

	// Scale is the size of one pixel in curve coordinates. Zero means 1.
	Scale float64

	// Mode is the normalization policy of the run
	Mode Normalization

	// Curve is the initial curve of the term's owner
	Curve *contour.Curve

	// Curves is the number of curves optimized together
	Curves int
}

// PixelScale returns Scale, or 1 when unset.
func (s *Setup) PixelScale() float64 {
	if s.Scale == 0 {
		return 1
	}
	return s.Scale
}

// Status is the read-only snapshot of one curve in one iteration.
type Status struct {
	// Iteration counts outer iterations from 0
	Iteration int

	// Index is the position of the curve in the run; Curves the run size
	Index  int
	Curves int

	// Curve is the current curve. Energies must not modify it.
	Curve *contour.Curve

	// Interior is the rasterized interior of Curve
	Interior *models.Mask

	// Overlap counts covering curves per pixel. Nil when the driver did not
	// compute it.
	Overlap *models.Occupancy

	// Visible marks pixels the curve may use for its statistics: not covered
	// by another curve and not excluded. Nil means every pixel.
	Visible *models.Mask

	// Excluded marks externally excluded pixels. Nil means none.
	Excluded *models.Mask

	// Scale is the size of one pixel in curve coordinates
	Scale float64
}

// PixelScale returns Scale, or 1 when unset.
func (st *Status) PixelScale() float64 {
	if st.Scale == 0 {
		return 1
	}
	return st.Scale
}

// Others returns how many curves other than this one cover pixel (x, y).
func (st *Status) Others(x, y int) int {
	if st.Overlap == nil {
		return 0
	}
	n := st.Overlap.At(x, y)
	if st.Interior != nil && st.Interior.Get(x, y) {
		n--
	}
	return n
}

// Energy is a weighted term of the functional.
type Energy interface {
	// Name identifies the term in logs and results
	Name() string

	// Weight is the external weight applied by the driver
	Weight() float64

	Capabilities() Capabilities

	// Init prepares the term once per run
	Init(setup *Setup) error

	// UpdateStatus refreshes per-iteration state
	UpdateStatus(st *Status) error

	// CalcEnergy returns the unweighted value of the term for st's curve
	CalcEnergy(st *Status) float64
}

// Derivable terms expose the linear-system decomposition of their gradient.
// A nil part means no contribution.
type Derivable interface {
	Energy

	// MatrixPart returns a 2P×2P matrix or nil
	MatrixPart(st *Status) *mat.Dense

	// VectorPart returns a 2P vector or nil
	VectorPart(st *Status) *mat.VecDense
}

// Shared is implemented by terms whose value contains a part common to all
// curves of a run. A coupled total counts that part once.
type Shared interface {
	SharedEnergy(st *Status) float64
}

// base holds the fields every term shares.
type base struct {
	name   string
	weight float64
}

func (b *base) Name() string { return b.name }

func (b *base) Weight() float64 { return b.weight }

// SetWeight replaces the external weight
func (b *base) SetWeight(w float64) { b.weight = w }

// epsilon is the magnitude below which a normalization bound counts as zero.
const epsilon = 1e-12

// normalizationFactor returns 1/bound, or 1 when normalization is off or the
// bound is numerically zero or not finite.
func normalizationFactor(mode Normalization, bound float64) float64 {
	if mode == NormalizeNone || math.Abs(bound) < epsilon || math.IsInf(bound, 0) || math.IsNaN(bound) {
		return 1
	}
	return 1 / math.Abs(bound)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
