package optimizer

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"coupledsnakes/internal/logging"
	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
)

// ProgressCallback is called after every outer iteration with the total energy.
type ProgressCallback func(iteration, maxIterations int, total float64)

// Coupled optimizes several snakes together. The occupancy grid is the only
// state the curves share; it is rebuilt once per outer iteration and handed
// to every energy as part of a fresh snapshot.
type Coupled struct {
	Snakes []*Snake

	// Excluded pixels are left out of every region statistic. May be nil.
	Excluded *models.Mask

	params        Params
	width, height int
	iteration     int
	occupancy     *models.Occupancy
	progress      ProgressCallback

	// fresh is set while masks and snapshots match the current points
	fresh bool
}

// NewCoupled creates a coupled run. The run-wide scale and normalization
// of params override those of the snakes.
func NewCoupled(snakes []*Snake, params Params) *Coupled {
	for _, s := range snakes {
		s.params.Scale = params.Scale
		s.params.Mode = params.Mode
	}
	return &Coupled{Snakes: snakes, params: params}
}

// SetProgressCallback installs a per-iteration callback.
func (c *Coupled) SetProgressCallback(cb ProgressCallback) { c.progress = cb }

// Occupancy returns the grid of the last refresh.
func (c *Coupled) Occupancy() *models.Occupancy { return c.occupancy }

// Init initializes every snake. A curve whose energies fail to initialize is
// frozen; a failing coupling energy aborts the run.
func (c *Coupled) Init(img *models.Image, width, height int) error {
	if len(c.Snakes) == 0 {
		return errors.New("no curves to optimize")
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid raster size %dx%d", width, height)
	}
	c.width, c.height = width, height
	c.iteration = 0
	c.fresh = false

	var first error
	active := 0
	for _, s := range c.Snakes {
		err := s.Init(img, width, height, len(c.Snakes))
		if err == nil {
			active++
			continue
		}
		if isCoupling(err) {
			return errors.Wrap(err, "coupled init")
		}
		if first == nil {
			first = err
		}
		s.freeze(err)
	}
	if active == 0 {
		return errors.Wrap(first, "no curve could be initialized")
	}
	return nil
}

func (c *Coupled) active() int {
	n := 0
	for _, s := range c.Snakes {
		if !s.frozen {
			n++
		}
	}
	return n
}

func (c *Coupled) needsOccupancy() bool {
	for _, s := range c.Snakes {
		if !s.frozen && s.caps.RequiresOverlap {
			return true
		}
	}
	return false
}

// refresh rasterizes every curve, rebuilds the occupancy grid and updates
// the energies of every active curve. Frozen curves still occupy pixels.
func (c *Coupled) refresh(iteration int) error {
	c.fresh = false
	for _, s := range c.Snakes {
		s.prepare()
	}
	c.occupancy = nil
	if c.needsOccupancy() {
		c.occupancy = models.NewOccupancy(c.width, c.height)
		for _, s := range c.Snakes {
			c.occupancy.Add(s.interior)
		}
	}
	for i, s := range c.Snakes {
		if s.frozen {
			continue
		}
		if err := s.update(iteration, i, len(c.Snakes), c.occupancy, c.Excluded); err != nil {
			if isCoupling(err) {
				return errors.Wrapf(err, "iteration %d", iteration)
			}
			s.freeze(err)
		}
	}
	c.fresh = true
	return nil
}

// ensureFresh refreshes unless the snapshots already match the points.
func (c *Coupled) ensureFresh() error {
	if c.fresh {
		return nil
	}
	return c.refresh(c.iteration)
}

// advance closes an outer iteration. The curves moved, so every snapshot is
// rebuilt before any energy is read again.
func (c *Coupled) advance() error {
	c.iteration++
	return c.refresh(c.iteration)
}

// Iterate runs one outer iteration and returns the largest displacement in
// pixels. Afterwards every energy sees the moved curves.
func (c *Coupled) Iterate() (float64, error) {
	if err := c.ensureFresh(); err != nil {
		return 0, err
	}
	var disp float64
	for _, s := range c.Snakes {
		if s.frozen {
			continue
		}
		d, err := s.step()
		if err != nil {
			s.freeze(err)
			continue
		}
		disp = math.Max(disp, d)
	}
	return disp, c.advance()
}

// TotalEnergy sums the energies of all active curves as of the last
// refresh, counting the shared parts once.
func (c *Coupled) TotalEnergy() float64 {
	var total, shared float64
	sharedSet := false
	for _, s := range c.Snakes {
		if s.frozen || s.status == nil {
			continue
		}
		sh := s.SharedEnergy()
		total += s.Energy() - sh
		if !sharedSet {
			shared, sharedSet = sh, true
		}
	}
	return total + shared
}

// Run initializes the snakes and iterates until the displacement drops
// below the tolerance or the iteration limit is reached.
func (c *Coupled) Run(img *models.Image, width, height int) (*Result, error) {
	return c.run(img, width, height, c.Iterate)
}

func (c *Coupled) run(img *models.Image, width, height int, iterate func() (float64, error)) (*Result, error) {
	if err := c.Init(img, width, height); err != nil {
		return nil, err
	}
	if err := c.ensureFresh(); err != nil {
		return c.result(false), err
	}
	log := logging.Logger()
	converged := false
	for c.iteration < c.params.MaxIterations && c.active() > 0 {
		disp, err := iterate()
		if err != nil {
			return c.result(false), err
		}
		total := c.TotalEnergy()
		log.Debug("iteration", "n", c.iteration, "energy", total, "displacement", disp)
		if c.progress != nil {
			c.progress(c.iteration, c.params.MaxIterations, total)
		}
		if disp < c.params.Tolerance {
			converged = true
			break
		}
	}
	res := c.result(converged)
	log.Debug("run finished", "iterations", res.Iterations, "converged", converged, "energy", res.Total)
	return res, nil
}

func (c *Coupled) result(converged bool) *Result {
	res := &Result{
		Iterations: c.iteration,
		Converged:  converged,
		Curves:     make([]*contour.Curve, len(c.Snakes)),
		Energies:   make([]float64, len(c.Snakes)),
		Total:      c.TotalEnergy(),
		Failed:     make(map[uuid.UUID]error),
	}
	for i, s := range c.Snakes {
		res.Curves[i] = s.Curve
		if s.status != nil && !s.frozen {
			res.Energies[i] = s.Energy()
		}
		if s.err != nil {
			res.Failed[s.Curve.ID] = s.err
		}
	}
	return res
}

// Labels rasterizes the current curves into a label image. Curve i gets
// label i+1; a pixel covered by several curves keeps the lowest label.
func (c *Coupled) Labels() *models.Labels {
	labels := models.NewLabels(c.width, c.height)
	for i, s := range c.Snakes {
		labels.Paint(s.Curve.Rasterize(c.width, c.height, c.params.Scale), uint16(i+1))
	}
	return labels
}
