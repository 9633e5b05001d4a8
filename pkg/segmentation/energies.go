package segmentation

import (
	"github.com/pkg/errors"

	"coupledsnakes/pkg/config"
	"coupledsnakes/pkg/energy"
	"coupledsnakes/pkg/field"
)

// BuildEnergies creates a fresh set of energy terms for one curve. Terms
// with a zero weight are left out.
func BuildEnergies(cfg *config.Config) ([]energy.Energy, error) {
	e := cfg.Energies
	var terms []energy.Energy
	if e.Length.Weight != 0 {
		l := energy.NewLength(e.Length.Weight, e.Length.Alpha)
		if r := e.Length.Ramp; r.Iterations > 0 {
			l.SetAdapter(energy.Ramp(e.Length.Alpha, r.Target, r.Iterations))
		}
		terms = append(terms, l)
	}
	if e.Curvature.Weight != 0 {
		c := energy.NewCurvature(e.Curvature.Weight, e.Curvature.Beta)
		if r := e.Curvature.Ramp; r.Iterations > 0 {
			c.SetAdapter(energy.Ramp(e.Curvature.Beta, r.Target, r.Iterations))
		}
		terms = append(terms, c)
	}
	if e.Region.Weight != 0 {
		terms = append(terms, energy.NewRegion(e.Region.Weight, e.Region.LambdaIn, e.Region.LambdaOut))
	}
	if e.Overlap.Weight != 0 {
		terms = append(terms, energy.NewOverlap(e.Overlap.Weight, e.Overlap.Rho))
	}
	if e.Area.Weight != 0 {
		terms = append(terms, energy.NewArea(e.Area.Weight, e.Area.Target*cfg.Snake.Scale*cfg.Snake.Scale))
	}

	img := e.Image
	if img.Weight == 0 {
		return terms, nil
	}
	switch img.Kind {
	case "", "none":
	case "intensity":
		terms = append(terms, energy.NewIntensity(img.Weight, img.Bright))
	case "gradient":
		terms = append(terms, energy.NewGradient(img.Weight, img.Sigma))
	case "distance":
		metric, err := field.ParseMetric(img.Metric)
		if err != nil {
			return nil, err
		}
		terms = append(terms, energy.NewDistance(img.Weight, metric, img.Bright))
	case "flow":
		if img.FlowMu > field.MaxGVFMu {
			return nil, errors.Errorf("flow mu %f exceeds the stable limit %f", img.FlowMu, field.MaxGVFMu)
		}
		terms = append(terms, energy.NewFlow(img.Weight, img.Sigma, img.FlowIterations, img.FlowMu))
	default:
		return nil, errors.Errorf("unknown image energy %q", img.Kind)
	}
	return terms, nil
}
