// Package config provides configuration loading and management for coupledsnakes.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Ramp moves a smoothness weight linearly to Target over Iterations
// iterations. Zero iterations disables it.
type Ramp struct {
	Target     float64 `yaml:"target"`
	Iterations int     `yaml:"iterations"`
}

// Circle is a seed curve given by its center and radius in pixels
type Circle struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	R float64 `yaml:"r"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Optimizer parameters
	Snake struct {
		// Optimizer selects "implicit" (linear solve) or "greedy" (neighbourhood search)
		Optimizer string `yaml:"optimizer"`

		// Gamma is the inverse step size of the implicit update
		Gamma float64 `yaml:"gamma"`

		// MaxIterations bounds the number of outer iterations
		MaxIterations int `yaml:"maxIterations"`

		// Tolerance stops the run once no point moves farther, in pixels
		Tolerance float64 `yaml:"tolerance"`

		// Points resamples each curve to this many points after every step, 0 disables
		Points int `yaml:"points"`

		// Scale is the size of one pixel in curve coordinates
		Scale float64 `yaml:"scale"`

		// Normalization is "none", "range" or "balanced"
		Normalization string `yaml:"normalization"`

		// GreedyRadius is the search radius of the greedy optimizer in pixels
		GreedyRadius int `yaml:"greedyRadius"`
	} `yaml:"snake"`

	// Energy terms. A zero weight disables a term.
	Energies struct {
		Length struct {
			Weight float64 `yaml:"weight"`
			Alpha  float64 `yaml:"alpha"`
			Ramp   Ramp    `yaml:"ramp"`
		} `yaml:"length"`

		Curvature struct {
			Weight float64 `yaml:"weight"`
			Beta   float64 `yaml:"beta"`
			Ramp   Ramp    `yaml:"ramp"`
		} `yaml:"curvature"`

		Region struct {
			Weight    float64 `yaml:"weight"`
			LambdaIn  float64 `yaml:"lambdaIn"`
			LambdaOut float64 `yaml:"lambdaOut"`
		} `yaml:"region"`

		Overlap struct {
			Weight float64 `yaml:"weight"`
			Rho    float64 `yaml:"rho"`
		} `yaml:"overlap"`

		// Image selects at most one image term
		Image struct {
			// Kind is "none", "intensity", "gradient", "distance" or "flow"
			Kind   string  `yaml:"kind"`
			Weight float64 `yaml:"weight"`

			// Sigma smooths the image before gradient and flow fields
			Sigma float64 `yaml:"sigma"`

			// Bright attracts to bright areas (intensity) or treats bright pixels as foreground (distance)
			Bright bool `yaml:"bright"`

			// Metric of the distance transform: "euclidean", "chessboard" or "cityblock"
			Metric string `yaml:"metric"`

			// FlowIterations and FlowMu control the gradient vector flow diffusion
			FlowIterations int     `yaml:"flowIterations"`
			FlowMu         float64 `yaml:"flowMu"`
		} `yaml:"image"`

		Area struct {
			Weight float64 `yaml:"weight"`

			// Target area in square pixels, 0 keeps the initial area
			Target float64 `yaml:"target"`
		} `yaml:"area"`
	} `yaml:"energies"`

	// Initial curves
	Seeds struct {
		// Mode is "auto" (one circle per Otsu component) or "circles"
		Mode string `yaml:"mode"`

		// Points is the number of points of every seed curve
		Points int `yaml:"points"`

		// MinArea drops smaller components in auto mode, in pixels
		MinArea int `yaml:"minArea"`

		// MaxCurves keeps the largest components in auto mode, 0 keeps all
		MaxCurves int `yaml:"maxCurves"`

		// Grow scales the radius of auto seeds relative to the component size
		Grow float64 `yaml:"grow"`

		// Circles lists the seeds in circles mode
		Circles []Circle `yaml:"circles"`
	} `yaml:"seeds"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Zoom upscales overlay images
		Zoom int `yaml:"zoom"`

		// SnapshotEvery saves an overlay every n iterations with intermediary results, 0 disables
		SnapshotEvery int `yaml:"snapshotEvery"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Snake.Optimizer = "implicit"
	cfg.Snake.Gamma = 1.0
	cfg.Snake.MaxIterations = 200
	cfg.Snake.Tolerance = 0.01
	cfg.Snake.Points = 64
	cfg.Snake.Scale = 1.0
	cfg.Snake.Normalization = "range"
	cfg.Snake.GreedyRadius = 1

	cfg.Energies.Length.Weight = 0.5
	cfg.Energies.Length.Alpha = 1.0
	cfg.Energies.Curvature.Weight = 0.2
	cfg.Energies.Curvature.Beta = 1.0
	cfg.Energies.Region.Weight = 1.0
	cfg.Energies.Region.LambdaIn = 1.0
	cfg.Energies.Region.LambdaOut = 1.0
	cfg.Energies.Overlap.Weight = 1.0
	cfg.Energies.Overlap.Rho = 1.0
	cfg.Energies.Image.Kind = "none"
	cfg.Energies.Image.Sigma = 1.5
	cfg.Energies.Image.Metric = "euclidean"
	cfg.Energies.Image.FlowIterations = 80
	cfg.Energies.Image.FlowMu = 0.2

	cfg.Seeds.Mode = "auto"
	cfg.Seeds.Points = 64
	cfg.Seeds.MinArea = 20
	cfg.Seeds.Grow = 1.2

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = true
	cfg.Output.Zoom = 2
	cfg.Output.SnapshotEvery = 10

	return cfg
}

// Validate checks the values that cannot be corrected later
func (cfg *Config) Validate() error {
	switch cfg.Snake.Optimizer {
	case "implicit", "greedy":
	default:
		return errors.Errorf("unknown optimizer %q", cfg.Snake.Optimizer)
	}
	if cfg.Snake.MaxIterations < 0 {
		return errors.Errorf("maxIterations must not be negative, got %d", cfg.Snake.MaxIterations)
	}
	if cfg.Snake.Optimizer == "implicit" && cfg.Snake.Gamma <= 0 {
		return errors.Errorf("gamma must be positive, got %f", cfg.Snake.Gamma)
	}
	if cfg.Snake.Scale < 0 {
		return errors.Errorf("scale must not be negative, got %f", cfg.Snake.Scale)
	}
	if cfg.Snake.Points != 0 && cfg.Snake.Points < 3 {
		return errors.Errorf("points must be 0 or at least 3, got %d", cfg.Snake.Points)
	}
	if cfg.Energies.Length.Ramp.Iterations < 0 || cfg.Energies.Curvature.Ramp.Iterations < 0 {
		return errors.New("ramp iterations must not be negative")
	}
	switch cfg.Energies.Image.Kind {
	case "", "none", "intensity", "gradient", "distance", "flow":
	default:
		return errors.Errorf("unknown image energy %q", cfg.Energies.Image.Kind)
	}
	switch cfg.Seeds.Mode {
	case "auto":
	case "circles":
		if len(cfg.Seeds.Circles) == 0 {
			return errors.New("seed mode circles needs at least one circle")
		}
	default:
		return errors.Errorf("unknown seed mode %q", cfg.Seeds.Mode)
	}
	if cfg.Seeds.Points < 3 {
		return errors.Errorf("seed curves need at least 3 points, got %d", cfg.Seeds.Points)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
