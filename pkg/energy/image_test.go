package energy

import (
	"math"
	"testing"

	"github.com/pkg/errors"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/field"
)

// rampImage has luminance x/(w-1).
func rampImage(w, h int) *models.Image {
	img := models.NewImage(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(0, x, y, float64(x)/float64(w-1))
		}
	}
	return img
}

func TestIntensityVectorLayout(t *testing.T) {
	img := rampImage(10, 5)
	c := circle(t, 5, 2, 1.5, 8)
	e := NewIntensity(1, false)
	if err := e.Init(&Setup{Image: img, Width: 10, Height: 5, Curve: c, Mode: NormalizeRange}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	st := &Status{Curve: c}
	v := e.VectorPart(st)
	if v.Len() != 16 {
		t.Fatalf("Expected 16 entries, got %d", v.Len())
	}
	for i := 0; i < 8; i++ {
		if math.Abs(v.AtVec(i)-1.0/9) > 1e-12 {
			t.Errorf("x entry %d: expected %f, got %f", i, 1.0/9, v.AtVec(i))
		}
		if v.AtVec(8+i) != 0 {
			t.Errorf("y entry %d: expected 0, got %f", i, v.AtVec(8+i))
		}
	}
	if e.MatrixPart(st) != nil {
		t.Errorf("Expected no matrix part")
	}
	if got := e.Value(3, 1); math.Abs(got-3.0/9) > 1e-12 {
		t.Errorf("Expected value %f, got %f", 3.0/9, got)
	}
}

func TestIntensityBrightAndScale(t *testing.T) {
	img := rampImage(10, 5)
	c := circle(t, 2.5, 1, 0.75, 8)
	e := NewIntensity(1, true)
	if err := e.Init(&Setup{Image: img, Curve: c, Scale: 0.5, Mode: NormalizeRange}); err != nil {
		t.Fatal(err)
	}
	v := e.VectorPart(&Status{Curve: c, Scale: 0.5})
	for i := 0; i < 8; i++ {
		// d/dx of 1 - x/9 in pixels, divided by the pixel size
		if math.Abs(v.AtVec(i)+2.0/9) > 1e-12 {
			t.Errorf("Entry %d: expected %f, got %f", i, -2.0/9, v.AtVec(i))
		}
	}
}

func TestBalancedModeDividesEdgeTerms(t *testing.T) {
	img := diskImage(24, 24, 12, 12, 6)
	c := circle(t, 12, 12, 6, 16)
	st := &Status{Curve: c}

	gr, gb := NewGradient(1, 1), NewGradient(1, 1)
	ir, ib := NewIntensity(1, false), NewIntensity(1, false)
	for _, p := range []struct {
		e    Energy
		mode Normalization
	}{{gr, NormalizeRange}, {gb, NormalizeBalanced}, {ir, NormalizeRange}, {ib, NormalizeBalanced}} {
		if err := p.e.Init(&Setup{Image: img, Curve: c, Mode: p.mode}); err != nil {
			t.Fatal(err)
		}
	}

	vr, vb := gr.VectorPart(st), gb.VectorPart(st)
	nonzero := false
	for i := 0; i < vr.Len(); i++ {
		if math.Abs(vr.AtVec(i)-4*vb.AtVec(i)) > 1e-12 {
			t.Errorf("Entry %d: expected balanced %f, got %f", i, vr.AtVec(i)/4, vb.AtVec(i))
		}
		nonzero = nonzero || vr.AtVec(i) != 0
	}
	if !nonzero {
		t.Errorf("Expected a non-zero edge gradient on the boundary")
	}

	wr, wb := ir.VectorPart(st), ib.VectorPart(st)
	for i := 0; i < wr.Len(); i++ {
		if wr.AtVec(i) != wb.AtVec(i) {
			t.Errorf("Entry %d: intensity should not change in balanced mode", i)
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range gr.Values() {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo != -1 || hi != 0 {
		t.Errorf("Expected gradient field in [-1, 0], got [%f, %f]", lo, hi)
	}
}

func TestDistanceField(t *testing.T) {
	img := diskImage(25, 25, 12, 12, 7)
	c := circle(t, 12, 12, 3, 8)
	e := NewDistance(1, field.Euclidean, true)
	if err := e.Init(&Setup{Image: img, Curve: c, Mode: NormalizeRange}); err != nil {
		t.Fatal(err)
	}
	if v := e.Value(12, 12); v > -0.85 {
		t.Errorf("Expected a value near -1 at the center, got %f", v)
	}
	if v := e.Value(0, 0); v != 0 {
		t.Errorf("Expected 0 on the background, got %f", v)
	}
	st := &Status{Curve: c}
	if e.CalcEnergy(st) >= 0 {
		t.Errorf("Expected negative energy inside the object")
	}
}

func TestFlowField(t *testing.T) {
	img := diskImage(32, 32, 16, 16, 6)
	c := circle(t, 16, 16, 8, 16)
	e := NewFlow(1, 1, 60, 0.2)
	if err := e.Init(&Setup{Image: img, Curve: c, Mode: NormalizeRange}); err != nil {
		t.Fatal(err)
	}
	if e.Field() == nil {
		t.Fatalf("Expected a flow field")
	}
	v := e.VectorPart(&Status{Curve: c})
	for i := 0; i < v.Len(); i++ {
		if !isFinite(v.AtVec(i)) {
			t.Fatalf("Entry %d is not finite", i)
		}
	}
	// outside the edge the flow points back towards it
	if d := e.DerivativeX(24, 16); d <= 0 {
		t.Errorf("Expected positive x-derivative right of the edge, got %f", d)
	}
}

func TestImageTermsRequireImage(t *testing.T) {
	c := circle(t, 5, 5, 2, 8)
	for _, e := range []Energy{
		NewIntensity(1, false),
		NewGradient(1, 1),
		NewDistance(1, field.Cityblock, true),
		NewFlow(1, 1, 10, 0.2),
	} {
		if err := e.Init(&Setup{Curve: c}); errors.Cause(err) != ErrNoImage {
			t.Errorf("%s: expected ErrNoImage, got %v", e.Name(), err)
		}
	}
}

func TestAreaEnergy(t *testing.T) {
	c := circle(t, 0, 0, 3, 32)
	a := NewArea(1, 0)
	if err := a.Init(&Setup{Curve: c}); err != nil {
		t.Fatal(err)
	}
	st := &Status{Curve: c}
	if e := a.CalcEnergy(st); e != 0 {
		t.Errorf("Expected zero energy at the initial area, got %f", e)
	}
	grown := c.Clone()
	for i := range grown.Points {
		grown.Points[i] = grown.Points[i].Scale(2)
	}
	if e := a.CalcEnergy(&Status{Curve: grown}); math.Abs(e-9) > 1e-9 {
		t.Errorf("Expected 9 for a fourfold area, got %f", e)
	}
	if a.Capabilities().Derivable {
		t.Errorf("Expected area to be computable only")
	}
	if err := NewArea(1, -1).Init(&Setup{Curve: c}); err == nil {
		t.Errorf("Expected error for negative target")
	}
}

