package optimizer

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
	"coupledsnakes/pkg/energy"
)

// failing is a computable energy whose UpdateStatus fails from a given iteration on.
type failing struct {
	coupling bool
	from     int
}

func (f *failing) Name() string    { return "failing" }
func (f *failing) Weight() float64 { return 1 }
func (f *failing) Capabilities() energy.Capabilities {
	return energy.Capabilities{Coupling: f.coupling, RequiresOverlap: f.coupling}
}
func (f *failing) Init(*energy.Setup) error { return nil }
func (f *failing) UpdateStatus(st *energy.Status) error {
	if st.Iteration >= f.from {
		return errors.New("upstream data unavailable")
	}
	return nil
}
func (f *failing) CalcEnergy(*energy.Status) float64 { return 0 }

func circle(t *testing.T, cx, cy, r float64, n int) *contour.Curve {
	t.Helper()
	c, err := contour.NewCircle(cx, cy, r, n)
	if err != nil {
		t.Fatalf("Failed to create circle: %v", err)
	}
	return c
}

func testParams(iterations int) Params {
	p := DefaultParams()
	p.MaxIterations = iterations
	p.Tolerance = 0
	return p
}

func TestSolveKnownSystem(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{2, 1, 1, 1, 3, 1, 1, 1, 4})
	b := mat.NewVecDense(3, []float64{7, 10, 15})
	x, err := Solve(a, b)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	for i, want := range []float64{1, 2, 3} {
		if math.Abs(x.AtVec(i)-want) > 1e-9 {
			t.Errorf("x[%d]: expected %f, got %f", i, want, x.AtVec(i))
		}
	}
}

func TestSolveRegularizesSingularSystem(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	b := mat.NewVecDense(2, []float64{2, 2})
	x, err := Solve(a, b)
	if err != nil {
		t.Fatalf("Expected a regularized solution, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if math.Abs(x.AtVec(i)-1) > 1e-3 {
			t.Errorf("x[%d]: expected about 1, got %f", i, x.AtVec(i))
		}
	}
}

func TestAssembleWeightsParts(t *testing.T) {
	c := circle(t, 10, 10, 4, 8)
	l := energy.NewLength(2, 1)
	in := energy.NewIntensity(0.5, false)
	img := models.NewImage(20, 20, 1)
	for x := 0; x < 20; x++ {
		for y := 0; y < 20; y++ {
			img.Set(0, x, y, float64(x)/19)
		}
	}
	setup := &energy.Setup{Image: img, Curve: c, Curves: 1, Mode: energy.NormalizeNone}
	for _, e := range []energy.Energy{l, in} {
		if err := e.Init(setup); err != nil {
			t.Fatal(err)
		}
	}
	st := &energy.Status{Curve: c, Curves: 1}
	l.UpdateStatus(st)

	sys, vec := Assemble([]energy.Energy{l, in}, st)
	m := l.MatrixPart(st)
	if sys.At(0, 0) != 2*m.At(0, 0) || sys.At(8, 9) != 2*m.At(8, 9) {
		t.Errorf("Expected matrix weighted by 2")
	}
	v := in.VectorPart(st)
	if math.Abs(vec.AtVec(3)-0.5*v.AtVec(3)) > 1e-15 {
		t.Errorf("Expected vector weighted by 0.5, got %f", vec.AtVec(3))
	}
}

func TestSmoothnessEqualizesSpacing(t *testing.T) {
	// near-circle with uneven spacing
	angles := []float64{0, 0.3, 0.5, 1.9, 2.6, 3.5, 4.4, 5.9}
	pts := make([]contour.Point, len(angles))
	for i, a := range angles {
		pts[i] = contour.Point{X: 32 + 12*math.Cos(a), Y: 32 + 12*math.Sin(a)}
	}
	c, err := contour.NewCurve(pts)
	if err != nil {
		t.Fatal(err)
	}
	before := c.SpacingVariance()

	s := NewSnake(c, []energy.Energy{energy.NewLength(1, 1), energy.NewCurvature(0.5, 1)}, testParams(10))
	res, err := s.Run(nil, 64, 64)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Iterations != 10 {
		t.Errorf("Expected 10 iterations, got %d", res.Iterations)
	}
	if after := c.SpacingVariance(); after >= before {
		t.Errorf("Expected spacing variance to drop below %f, got %f", before, after)
	}
	for _, p := range c.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			t.Fatalf("Expected finite points")
		}
	}
}

func TestSnakeStopsOnTolerance(t *testing.T) {
	c := circle(t, 16, 16, 6, 12)
	p := DefaultParams()
	p.MaxIterations = 50
	p.Tolerance = 0.5
	s := NewSnake(c, []energy.Energy{energy.NewLength(0.01, 1)}, p)
	res, err := s.Run(nil, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged || res.Iterations != 1 {
		t.Errorf("Expected convergence after 1 iteration, got %d (converged %v)", res.Iterations, res.Converged)
	}
}

func TestSnakeResamples(t *testing.T) {
	c := circle(t, 16, 16, 6, 12)
	p := testParams(2)
	p.Points = 20
	s := NewSnake(c, []energy.Energy{energy.NewLength(1, 1), energy.NewCurvature(1, 1)}, p)
	if _, err := s.Run(nil, 32, 32); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if c.Len() != 20 {
		t.Errorf("Expected 20 points, got %d", c.Len())
	}
	for _, e := range s.Energies {
		if w := e.(interface{ PointWeights() []float64 }).PointWeights(); len(w) != 20 {
			t.Errorf("%s: expected 20 point weights, got %d", e.Name(), len(w))
		}
	}
	if math.IsNaN(s.Energy()) {
		t.Errorf("Expected a finite energy after resampling")
	}
}

func TestIterateLeavesFreshSnapshots(t *testing.T) {
	a := circle(t, 20, 20, 8, 32)
	b := circle(t, 30, 20, 8, 32)
	mk := func(c *contour.Curve) *Snake {
		return NewSnake(c, []energy.Energy{energy.NewOverlap(1, 1), energy.NewLength(0.5, 1)}, testParams(3))
	}
	c := NewCoupled([]*Snake{mk(a), mk(b)}, testParams(3))
	if err := c.Init(nil, 64, 40); err != nil {
		t.Fatal(err)
	}
	for it := 1; it <= 3; it++ {
		if _, err := c.Iterate(); err != nil {
			t.Fatalf("Iteration %d failed: %v", it, err)
		}
		reported := c.TotalEnergy()

		occ := models.NewOccupancy(64, 40)
		occ.Add(a.Rasterize(64, 40, 1))
		occ.Add(b.Rasterize(64, 40, 1))
		if got := c.Occupancy().OverlapArea(); got != occ.OverlapArea() {
			t.Errorf("Iteration %d: expected overlap %d from the moved curves, got %d", it, occ.OverlapArea(), got)
		}

		if err := c.refresh(c.iteration); err != nil {
			t.Fatal(err)
		}
		if fresh := c.TotalEnergy(); math.Abs(fresh-reported) > 1e-9 {
			t.Errorf("Iteration %d: expected reported energy %f, got %f", it, fresh, reported)
		}
	}
}

func TestProgressReportsMovedCurves(t *testing.T) {
	a := circle(t, 20, 20, 8, 32)
	b := circle(t, 30, 20, 8, 32)
	mk := func(c *contour.Curve) *Snake {
		return NewSnake(c, []energy.Energy{energy.NewOverlap(1, 1), energy.NewLength(0.5, 1)}, testParams(4))
	}
	c := NewCoupled([]*Snake{mk(a), mk(b)}, testParams(4))
	var reported []float64
	c.SetProgressCallback(func(it, max int, total float64) { reported = append(reported, total) })
	res, err := c.Run(nil, 64, 40)
	if err != nil {
		t.Fatal(err)
	}
	if len(reported) != 4 {
		t.Fatalf("Expected 4 progress calls, got %d", len(reported))
	}
	if math.Abs(reported[3]-res.Total) > 1e-9 {
		t.Errorf("Expected the last report %f to match the result %f", reported[3], res.Total)
	}
	if err := c.refresh(c.iteration); err != nil {
		t.Fatal(err)
	}
	if math.Abs(c.TotalEnergy()-res.Total) > 1e-9 {
		t.Errorf("Expected result energy %f to match a fresh refresh, got %f", c.TotalEnergy(), res.Total)
	}
}

func TestSnakeInitFailure(t *testing.T) {
	c := circle(t, 16, 16, 6, 12)
	s := NewSnake(c, []energy.Energy{energy.NewRegion(1, 1, 1)}, testParams(5))
	_, err := s.Run(nil, 32, 32)
	if errors.Cause(err) != energy.ErrNoImage {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestSingleCurveGetsOccupancy(t *testing.T) {
	img := models.NewImage(32, 32, 1)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if math.Hypot(float64(x)-16, float64(y)-16) <= 6 {
				img.Set(0, x, y, 1)
			}
		}
	}
	c := circle(t, 16, 16, 10, 32)
	s := NewSnake(c, []energy.Energy{energy.NewRegion(1, 1, 1), energy.NewLength(0.2, 1)}, testParams(5))
	areaBefore := c.Area()
	res, err := s.Run(img, 32, 32)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if s.Status().Overlap == nil || s.Status().Overlap.Curves != 1 {
		t.Errorf("Expected a one-curve occupancy grid")
	}
	if c.Area() >= areaBefore {
		t.Errorf("Expected the oversized curve to shrink from %f, got %f", areaBefore, c.Area())
	}
	if len(res.Failed) != 0 {
		t.Errorf("Expected no failures, got %v", res.Failed)
	}
}

func TestCoupledReducesOverlap(t *testing.T) {
	a := circle(t, 20, 20, 8, 32)
	b := circle(t, 30, 20, 8, 32)
	snakes := []*Snake{
		NewSnake(a, []energy.Energy{energy.NewOverlap(1, 1)}, testParams(5)),
		NewSnake(b, []energy.Energy{energy.NewOverlap(1, 1)}, testParams(5)),
	}
	c := NewCoupled(snakes, testParams(5))
	if err := c.Init(nil, 64, 40); err != nil {
		t.Fatal(err)
	}
	if err := c.refresh(0); err != nil {
		t.Fatal(err)
	}
	before := c.Occupancy().OverlapArea()
	if before == 0 {
		t.Fatalf("Expected overlapping seeds")
	}
	far := b.Points[0] // rightmost point of b, outside a
	farA := a.Points[16]

	var energies []float64
	c.SetProgressCallback(func(it, max int, total float64) { energies = append(energies, total) })
	res, err := c.Run(nil, 64, 40)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	after := c.Occupancy().OverlapArea()
	if after >= before {
		t.Errorf("Expected overlap below %d pixels, got %d", before, after)
	}
	if math.Hypot(b.Points[0].X-far.X, b.Points[0].Y-far.Y) > 1e-9 ||
		math.Hypot(a.Points[16].X-farA.X, a.Points[16].Y-farA.Y) > 1e-9 {
		t.Errorf("Expected points away from the overlap to stay put")
	}
	if len(energies) != 5 {
		t.Fatalf("Expected 5 progress calls, got %d", len(energies))
	}
	if res.Total != float64(after) {
		t.Errorf("Expected total energy %d counted once, got %f", after, res.Total)
	}
}

func TestCoupledTotalCountsSharedOnce(t *testing.T) {
	img := models.NewImage(40, 30, 1)
	a := circle(t, 14, 15, 6, 24)
	b := circle(t, 22, 15, 6, 24)
	mk := func(c *contour.Curve) *Snake {
		return NewSnake(c, []energy.Energy{energy.NewRegion(1, 1, 1), energy.NewOverlap(2, 1)}, testParams(1))
	}
	c := NewCoupled([]*Snake{mk(a), mk(b)}, testParams(1))
	if err := c.Init(img, 40, 30); err != nil {
		t.Fatal(err)
	}
	if err := c.refresh(0); err != nil {
		t.Fatal(err)
	}
	overlap := 2 * float64(c.Occupancy().OverlapArea())
	if overlap == 0 {
		t.Fatalf("Expected overlapping curves")
	}
	// a uniform image has no region energy, so only the shared overlap remains
	if got := c.TotalEnergy(); math.Abs(got-overlap) > 1e-9 {
		t.Errorf("Expected total %f, got %f", overlap, got)
	}
	if sum := c.Snakes[0].Energy() + c.Snakes[1].Energy(); math.Abs(sum-2*overlap) > 1e-9 {
		t.Errorf("Expected each curve to see the overlap, got %f", sum)
	}
}

func TestCoupledFreezesFailingCurve(t *testing.T) {
	a := circle(t, 10, 10, 4, 12)
	b := circle(t, 30, 10, 4, 12)
	snakes := []*Snake{
		NewSnake(a, []energy.Energy{energy.NewLength(1, 1), &failing{from: 2}}, testParams(5)),
		NewSnake(b, []energy.Energy{energy.NewLength(1, 1)}, testParams(5)),
	}
	res, err := NewCoupled(snakes, testParams(5)).Run(nil, 40, 20)
	if err != nil {
		t.Fatalf("Expected the session to continue, got %v", err)
	}
	if res.Iterations != 5 {
		t.Errorf("Expected 5 iterations, got %d", res.Iterations)
	}
	if _, ok := res.Failed[a.ID]; !ok || !snakes[0].Frozen() {
		t.Errorf("Expected curve %s to be frozen", a.ID)
	}
	if snakes[1].Frozen() {
		t.Errorf("Expected the other curve to keep running")
	}
}

func TestCoupledAbortsOnCouplingFailure(t *testing.T) {
	a := circle(t, 10, 10, 4, 12)
	b := circle(t, 30, 10, 4, 12)
	snakes := []*Snake{
		NewSnake(a, []energy.Energy{energy.NewLength(1, 1)}, testParams(5)),
		NewSnake(b, []energy.Energy{&failing{coupling: true, from: 1}}, testParams(5)),
	}
	res, err := NewCoupled(snakes, testParams(5)).Run(nil, 40, 20)
	if err == nil {
		t.Fatalf("Expected the session to abort")
	}
	var ee *EnergyError
	if !errors.As(err, &ee) || !ee.Coupling || ee.Curve != b.ID {
		t.Errorf("Expected a coupling error for curve %s, got %v", b.ID, err)
	}
	if res == nil || res.Iterations != 1 {
		t.Errorf("Expected a partial result after 1 iteration")
	}
}

func TestCoupledLabels(t *testing.T) {
	a := circle(t, 8, 8, 5, 24)
	b := circle(t, 24, 8, 5, 24)
	snakes := []*Snake{
		NewSnake(a, []energy.Energy{energy.NewLength(1, 1)}, testParams(0)),
		NewSnake(b, []energy.Energy{energy.NewLength(1, 1)}, testParams(0)),
	}
	c := NewCoupled(snakes, testParams(0))
	if _, err := c.Run(nil, 32, 16); err != nil {
		t.Fatal(err)
	}
	labels := c.Labels()
	for i, curve := range []*contour.Curve{a, b} {
		want := curve.Rasterize(32, 16, 1).Count()
		if got := labels.Area(uint16(i + 1)); got != want {
			t.Errorf("Label %d: expected area %d, got %d", i+1, want, got)
		}
	}
}

func TestGreedyMovesTowardTargetArea(t *testing.T) {
	c := circle(t, 16, 16, 5, 16)
	area := energy.NewArea(1, 2*c.Area())
	s := NewSnake(c, []energy.Energy{area}, testParams(3))
	g := NewGreedy([]*Snake{s}, testParams(3), 1)
	if err := g.Init(nil, 32, 32); err != nil {
		t.Fatal(err)
	}
	g.refresh(0)
	before := s.Energy()
	res, err := g.Run(nil, 32, 32)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Energies[0] >= before {
		t.Errorf("Expected energy below %f, got %f", before, res.Energies[0])
	}
}

func TestGreedyReducesOverlap(t *testing.T) {
	a := circle(t, 12, 12, 6, 16)
	b := circle(t, 20, 12, 6, 16)
	mk := func(c *contour.Curve) *Snake {
		return NewSnake(c, []energy.Energy{energy.NewOverlap(1, 1)}, testParams(2))
	}
	g := NewGreedy([]*Snake{mk(a), mk(b)}, testParams(2), 1)
	if err := g.Init(nil, 32, 24); err != nil {
		t.Fatal(err)
	}
	g.refresh(0)
	before := g.Occupancy().OverlapArea()
	if _, err := g.Run(nil, 32, 24); err != nil {
		t.Fatal(err)
	}
	if after := g.Occupancy().OverlapArea(); after >= before {
		t.Errorf("Expected overlap below %d, got %d", before, after)
	}
}
