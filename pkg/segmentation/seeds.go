package segmentation

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/config"
	"coupledsnakes/pkg/contour"
	"coupledsnakes/pkg/field"
)

// minSeedRadius keeps tiny components from producing degenerate circles, in pixels
const minSeedRadius = 2.0

// Seeds creates the initial curves. In circles mode they come from the
// configuration; in auto mode one circle is placed on each connected
// component of the Otsu-thresholded image, with the minority class taken
// as foreground.
func Seeds(img *models.Image, cfg *config.Config) ([]*contour.Curve, error) {
	scale := cfg.Snake.Scale
	if scale == 0 {
		scale = 1
	}
	if cfg.Seeds.Mode == "circles" {
		curves := make([]*contour.Curve, 0, len(cfg.Seeds.Circles))
		for _, c := range cfg.Seeds.Circles {
			curve, err := contour.NewCircle(c.X*scale, c.Y*scale, c.R*scale, cfg.Seeds.Points)
			if err != nil {
				return nil, err
			}
			curves = append(curves, curve)
		}
		return curves, nil
	}

	lum := img.Luminance()
	mask := field.Binarize(lum, img.Width, img.Height, field.Otsu(lum), false)
	if 2*mask.Count() > len(mask.Data) {
		mask = field.Binarize(lum, img.Width, img.Height, field.Otsu(lum), true)
	}
	comps, _ := field.Components(mask, cfg.Seeds.MinArea)
	if len(comps) == 0 {
		return nil, errors.New("no foreground component found")
	}
	sort.SliceStable(comps, func(i, j int) bool { return comps[i].Area > comps[j].Area })
	if cfg.Seeds.MaxCurves > 0 && len(comps) > cfg.Seeds.MaxCurves {
		comps = comps[:cfg.Seeds.MaxCurves]
	}

	curves := make([]*contour.Curve, 0, len(comps))
	for _, c := range comps {
		r := math.Max(minSeedRadius, cfg.Seeds.Grow*math.Sqrt(float64(c.Area)/math.Pi))
		curve, err := contour.NewCircle(c.CX*scale, c.CY*scale, r*scale, cfg.Seeds.Points)
		if err != nil {
			return nil, err
		}
		curves = append(curves, curve)
	}
	return curves, nil
}
