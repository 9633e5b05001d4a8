package energy

import (
	"math"
	"testing"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
)

func circle(t *testing.T, cx, cy, r float64, n int) *contour.Curve {
	t.Helper()
	c, err := contour.NewCircle(cx, cy, r, n)
	if err != nil {
		t.Fatalf("Failed to create circle: %v", err)
	}
	return c
}

// statusFor rasterizes every curve, builds the occupancy and returns the
// snapshot of curve idx.
func statusFor(curves []*contour.Curve, idx, w, h int) *Status {
	occ := models.NewOccupancy(w, h)
	masks := make([]*models.Mask, len(curves))
	for i, c := range curves {
		masks[i] = c.Rasterize(w, h, 1)
		occ.Add(masks[i])
	}
	own := masks[idx]
	vis := models.NewMask(w, h)
	for i := range vis.Data {
		if occ.Counts[i]-int(own.Data[i]) == 0 {
			vis.Data[i] = 1
		}
	}
	return &Status{
		Index:    idx,
		Curves:   len(curves),
		Curve:    curves[idx],
		Interior: own,
		Overlap:  occ,
		Visible:  vis,
	}
}

// diskImage is 1 inside a disk and 0.2 outside.
func diskImage(w, h int, cx, cy, r float64) *models.Image {
	img := models.NewImage(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 0.2
			if math.Hypot(float64(x)-cx, float64(y)-cy) <= r {
				v = 1
			}
			img.Set(0, x, y, v)
		}
	}
	return img
}
