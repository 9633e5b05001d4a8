package segmentation

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"coupledsnakes/internal/logging"
	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/config"
	"coupledsnakes/pkg/contour"
	"coupledsnakes/pkg/energy"
	"coupledsnakes/pkg/optimizer"
	"coupledsnakes/pkg/visualization"
)

// Params holds the input/output settings of one segmentation run.
type Params struct {
	// InputFile is the image to segment (PNG, JPEG, TIFF or BMP)
	InputFile string

	// OutputDir receives labels.png, overlay.png and curves.yaml
	OutputDir string

	// Config holds the optimizer, energy and seed settings. Nil means defaults.
	Config *config.Config

	// IntermediaryDir is where intermediary results are saved when
	// Config.Output.SaveIntermediaryResults is set
	IntermediaryDir string
}

// Segmenter runs the complete pipeline:
// 1. Loading the image
// 2. Seeding one curve per object
// 3. Building the energy terms of every curve
// 4. Optimizing all curves together
// 5. Rasterizing the label image and saving the results
// 6. Calculating region metrics
type Segmenter struct {
	// params stores the run configuration
	params *Params
	cfg    *config.Config

	// image is the working image, normalized to [0,1]
	image *models.Image

	// width and height store the dimensions of the image
	width  int
	height int

	curves []*contour.Curve
	result *optimizer.Result
	labels *models.Labels

	viewer *visualization.Viewer

	// snapshots are overlays captured during optimization
	snapshots []image.Image

	// metrics stores the region statistics after segmentation
	metrics Metrics
}

// NewSegmenter creates a new segmenter with the provided parameters.
func NewSegmenter(params *Params) *Segmenter {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Segmenter{params: params, cfg: cfg}
}

// Process loads the input file and runs the pipeline on it.
func (s *Segmenter) Process() error {
	log := logging.Logger()
	log.Info("Step 1: Loading input image", "file", s.params.InputFile)
	img, err := LoadImage(s.params.InputFile)
	if err != nil {
		return errors.Wrap(err, "failed to load image")
	}
	return s.Segment(img)
}

// Segment runs steps 2 to 6 on an already loaded image.
func (s *Segmenter) Segment(img *models.Image) error {
	log := logging.Logger()
	if err := s.cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	s.image = img
	s.width, s.height = img.Width, img.Height
	s.viewer = visualization.NewViewer(img, s.cfg.Output.Zoom, s.cfg.Snake.Scale)
	s.snapshots = nil
	log.Info("Loaded image", "width", s.width, "height", s.height, "channels", img.NumChannels())

	if s.saving() {
		if err := os.MkdirAll(s.params.IntermediaryDir, 0755); err != nil {
			return errors.Wrap(err, "failed to create intermediary directory")
		}
		s.saveIntermediary("01_input", s.viewer.Background())
	}

	log.Info("Step 2: Seeding curves", "mode", s.cfg.Seeds.Mode)
	curves, err := Seeds(img, s.cfg)
	if err != nil {
		return errors.Wrap(err, "failed to seed curves")
	}
	s.curves = curves
	log.Info("Seeded curves", "count", len(curves))
	if s.saving() {
		s.saveIntermediary("02_seeds", s.viewer.Overlay(nil, curves))
	}

	log.Info("Step 3: Building energies")
	snakes := make([]*optimizer.Snake, len(curves))
	params, err := OptimizerParams(s.cfg)
	if err != nil {
		return err
	}
	for i, c := range curves {
		energies, err := BuildEnergies(s.cfg)
		if err != nil {
			return errors.Wrap(err, "failed to build energies")
		}
		snakes[i] = optimizer.NewSnake(c, energies, params)
	}

	log.Info("Step 4: Optimizing curves", "optimizer", s.cfg.Snake.Optimizer, "maxIterations", params.MaxIterations)
	var run interface {
		Run(*models.Image, int, int) (*optimizer.Result, error)
		SetProgressCallback(optimizer.ProgressCallback)
		Labels() *models.Labels
	}
	if s.cfg.Snake.Optimizer == "greedy" {
		run = optimizer.NewGreedy(snakes, params, s.cfg.Snake.GreedyRadius)
	} else {
		run = optimizer.NewCoupled(snakes, params)
	}
	run.SetProgressCallback(s.progress)
	res, err := run.Run(img, s.width, s.height)
	if err != nil {
		return errors.Wrap(err, "optimization failed")
	}
	s.result = res
	for id, ferr := range res.Failed {
		log.Warn("Curve stopped early", "curve", id, "error", ferr)
	}
	log.Info("Optimization finished", "iterations", res.Iterations, "converged", res.Converged, "energy", res.Total)

	log.Info("Step 5: Labelling and saving results")
	s.labels = run.Labels()
	if s.saving() {
		if err := s.viewer.SaveSequence(s.snapshots, filepath.Join(s.params.IntermediaryDir, "03_evolution"), "iter"); err != nil {
			log.Warn("Failed to save evolution snapshots", "error", err)
		}
	}
	if s.params.OutputDir != "" {
		if err := s.saveResults(); err != nil {
			return errors.Wrap(err, "failed to save results")
		}
	}

	log.Info("Step 6: Calculating region metrics")
	s.metrics = CalculateMetrics(img, s.labels, res)
	return nil
}

func (s *Segmenter) saving() bool {
	return s.cfg.Output.SaveIntermediaryResults && s.params.IntermediaryDir != ""
}

// progress captures an overlay every SnapshotEvery iterations.
func (s *Segmenter) progress(iteration, maxIterations int, total float64) {
	logging.Logger().Debug("progress", "iteration", iteration, "of", maxIterations, "energy", total)
	every := s.cfg.Output.SnapshotEvery
	if !s.saving() || every <= 0 || iteration%every != 0 {
		return
	}
	s.snapshots = append(s.snapshots, s.viewer.Overlay(nil, s.curves))
}

// saveIntermediary writes one image of a processing stage. Failures are
// logged and processing continues.
func (s *Segmenter) saveIntermediary(stage string, img image.Image) {
	dir := filepath.Join(s.params.IntermediaryDir, stage)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Logger().Warn("Failed to create intermediary directory", "stage", stage, "error", err)
		return
	}
	if err := s.viewer.SaveImage(img, filepath.Join(dir, fmt.Sprintf("%s.png", stage))); err != nil {
		logging.Logger().Warn("Failed to save intermediary result", "stage", stage, "error", err)
	}
}

func (s *Segmenter) saveResults() error {
	if err := os.MkdirAll(s.params.OutputDir, 0755); err != nil {
		return err
	}
	labelImg, err := s.viewer.LabelImage(s.labels)
	if err != nil {
		return err
	}
	if err := s.viewer.SaveImage(labelImg, filepath.Join(s.params.OutputDir, "labels.png")); err != nil {
		return errors.Wrap(err, "labels")
	}
	overlay := s.viewer.Overlay(s.labels, s.curves)
	if err := s.viewer.SaveImage(overlay, filepath.Join(s.params.OutputDir, "overlay.png")); err != nil {
		return errors.Wrap(err, "overlay")
	}
	return SaveCurves(filepath.Join(s.params.OutputDir, "curves.yaml"), s.curves, s.result)
}

// GetMetrics returns the region statistics of the last run.
func (s *Segmenter) GetMetrics() Metrics { return s.metrics }

// GetLabels returns the label image of the last run.
func (s *Segmenter) GetLabels() *models.Labels { return s.labels }

// GetCurves returns the optimized curves of the last run.
func (s *Segmenter) GetCurves() []*contour.Curve { return s.curves }

// GetResult returns the optimizer result of the last run.
func (s *Segmenter) GetResult() *optimizer.Result { return s.result }

// OptimizerParams converts the snake section of the configuration.
func OptimizerParams(cfg *config.Config) (optimizer.Params, error) {
	mode, err := energy.ParseNormalization(cfg.Snake.Normalization)
	if err != nil {
		return optimizer.Params{}, err
	}
	return optimizer.Params{
		Gamma:         cfg.Snake.Gamma,
		MaxIterations: cfg.Snake.MaxIterations,
		Tolerance:     cfg.Snake.Tolerance,
		Points:        cfg.Snake.Points,
		Scale:         cfg.Snake.Scale,
		Mode:          mode,
	}, nil
}
