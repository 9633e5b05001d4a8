package segmentation

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"gopkg.in/yaml.v3"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
	"coupledsnakes/pkg/optimizer"
)

// LoadImage decodes a PNG, JPEG, TIFF or BMP file into a normalized image.
func LoadImage(path string) (*models.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if img.Bounds().Empty() {
		return nil, errors.Errorf("%s: empty %s image", path, format)
	}
	return models.FromImage(img), nil
}

// curveRecord is the YAML form of one optimized curve
type curveRecord struct {
	ID     string      `yaml:"id"`
	Label  int         `yaml:"label"`
	Energy float64     `yaml:"energy"`
	Failed string      `yaml:"failed,omitempty"`
	Points [][]float64 `yaml:"points,flow"`
}

type curvesFile struct {
	Iterations int           `yaml:"iterations"`
	Converged  bool          `yaml:"converged"`
	Total      float64       `yaml:"total"`
	Curves     []curveRecord `yaml:"curves"`
}

// SaveCurves writes the curves and the run summary as YAML.
func SaveCurves(path string, curves []*contour.Curve, res *optimizer.Result) error {
	out := curvesFile{Curves: make([]curveRecord, len(curves))}
	if res != nil {
		out.Iterations, out.Converged, out.Total = res.Iterations, res.Converged, res.Total
	}
	for i, c := range curves {
		rec := curveRecord{ID: c.ID.String(), Label: i + 1, Points: make([][]float64, c.Len())}
		for j, p := range c.Points {
			rec.Points[j] = []float64{p.X, p.Y}
		}
		if res != nil {
			if i < len(res.Energies) {
				rec.Energy = res.Energies[i]
			}
			if err, ok := res.Failed[c.ID]; ok {
				rec.Failed = err.Error()
			}
		}
		out.Curves[i] = rec
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return errors.Wrap(err, "marshal curves")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write curves")
}

// LoadCurves reads curves written by SaveCurves.
func LoadCurves(path string) ([]*contour.Curve, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in curvesFile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "parse curves")
	}
	curves := make([]*contour.Curve, len(in.Curves))
	for i, rec := range in.Curves {
		pts := make([]contour.Point, len(rec.Points))
		for j, p := range rec.Points {
			if len(p) != 2 {
				return nil, errors.Errorf("curve %d: point %d has %d coordinates", i, j, len(p))
			}
			pts[j] = contour.Point{X: p[0], Y: p[1]}
		}
		c, err := contour.NewCurve(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "curve %d", i)
		}
		if id, err := uuid.Parse(rec.ID); err == nil {
			c.ID = id
		}
		curves[i] = c
	}
	return curves, nil
}
