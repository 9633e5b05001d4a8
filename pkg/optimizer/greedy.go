package optimizer

import (
	"math"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
)

// Greedy moves every point to the best position of its (2r+1)² pixel
// neighbourhood, judged by CalcEnergy alone. Each candidate changes the
// curve's interior, so the occupancy grid is rebuilt for every candidate
// before the energies see it.
type Greedy struct {
	*Coupled

	// Radius of the search neighbourhood in pixels
	Radius int
}

// NewGreedy creates a greedy run over the given snakes.
func NewGreedy(snakes []*Snake, params Params, radius int) *Greedy {
	if radius < 1 {
		radius = 1
	}
	return &Greedy{Coupled: NewCoupled(snakes, params), Radius: radius}
}

// Run initializes the snakes and iterates until no point moves or the
// iteration limit is reached.
func (g *Greedy) Run(img *models.Image, width, height int) (*Result, error) {
	return g.run(img, width, height, g.Iterate)
}

// Iterate visits every point of every active curve once and returns the
// largest move in pixels. Afterwards every energy sees the moved curves.
func (g *Greedy) Iterate() (float64, error) {
	if err := g.ensureFresh(); err != nil {
		return 0, err
	}
	scale := g.params.PixelScale()
	var disp float64
	for i, s := range g.Snakes {
		if s.frozen {
			continue
		}
		others := g.othersOccupancy(i)
		best, err := g.evaluate(i, s, others)
		if err != nil {
			if isCoupling(err) {
				return 0, err
			}
			s.freeze(err)
			continue
		}
		for j := range s.Curve.Points {
			orig := s.Curve.Points[j]
			pick := orig
			for dy := -g.Radius; dy <= g.Radius; dy++ {
				for dx := -g.Radius; dx <= g.Radius; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					cand := orig.Add(contour.Point{X: float64(dx) * scale, Y: float64(dy) * scale})
					s.Curve.Points[j] = cand
					e, err := g.evaluate(i, s, others)
					if err != nil {
						s.Curve.Points[j] = orig
						if isCoupling(err) {
							return 0, err
						}
						s.freeze(err)
						break
					}
					if e < best {
						best, pick = e, cand
					}
				}
				if s.frozen {
					break
				}
			}
			s.Curve.Points[j] = pick
			if s.frozen {
				break
			}
			disp = math.Max(disp, pick.Sub(orig).Norm()/scale)
		}
		if !s.frozen {
			// leave interior and snapshot consistent with the accepted points
			if _, err := g.evaluate(i, s, others); err != nil {
				if isCoupling(err) {
					return 0, err
				}
				s.freeze(err)
			}
		}
	}
	return disp, g.advance()
}

// othersOccupancy counts the current interiors of every curve but i, or
// returns nil when no energy needs the grid.
func (g *Greedy) othersOccupancy(i int) *models.Occupancy {
	if !g.needsOccupancy() {
		return nil
	}
	occ := models.NewOccupancy(g.width, g.height)
	for k, s := range g.Snakes {
		if k != i {
			occ.Add(s.interior)
		}
	}
	return occ
}

// evaluate rasterizes curve i in its current position, rebuilds the full
// occupancy grid from it and the others, refreshes the energies and returns
// the curve's weighted energy.
func (g *Greedy) evaluate(i int, s *Snake, others *models.Occupancy) (float64, error) {
	s.rasterize()
	var occ *models.Occupancy
	if others != nil {
		occ = &models.Occupancy{
			Width:  others.Width,
			Height: others.Height,
			Counts: append([]int(nil), others.Counts...),
			Curves: others.Curves,
		}
		occ.Add(s.interior)
		g.occupancy = occ
	}
	if err := s.update(g.iteration, i, len(g.Snakes), occ, g.Excluded); err != nil {
		return 0, err
	}
	return s.Energy(), nil
}
