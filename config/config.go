// Package config holds the settings of the aam command line tool.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all tool settings.
type Config struct {
	Fit     FitConfig     `yaml:"fit"`
	Train   TrainConfig   `yaml:"train"`
	Detect  DetectConfig  `yaml:"detect"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// FitConfig controls the fitting session.
type FitConfig struct {
	Strategy   string  `yaml:"strategy"`
	Iterations int     `yaml:"iterations"`
	Damping    float64 `yaml:"damping"`
	Tolerance  float64 `yaml:"tolerance"`
	Jitter     float64 `yaml:"jitter"`
	Seed       int64   `yaml:"seed"`
}

// TrainConfig controls model training.
type TrainConfig struct {
	ShapeLoss            float64 `yaml:"shape_loss"`
	AppearanceLoss       float64 `yaml:"appearance_loss"`
	MaxShapeModes        int     `yaml:"max_shape_modes"`
	MaxAppearanceModes   int     `yaml:"max_appearance_modes"`
	ProcrustesIterations int     `yaml:"procrustes_iterations"`
	Channels             int     `yaml:"channels"`
}

// DetectConfig controls the face detection used to seed the pose.
type DetectConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Cascade      string  `yaml:"cascade"`
	Angle        float64 `yaml:"angle"`
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	IoUThreshold float64 `yaml:"iou_threshold"`
	FaceScale    float64 `yaml:"face_scale"`
}

// OutputConfig controls how the fitted model is drawn.
type OutputConfig struct {
	DrawShape     bool    `yaml:"draw_shape"`
	DrawTriangles bool    `yaml:"draw_triangles"`
	Blend         string  `yaml:"blend"`
	BlurRadius    float64 `yaml:"blur_radius"`
	Workers       int     `yaml:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the default values of the tool.
func Default() *Config {
	return &Config{
		Fit: FitConfig{
			Strategy:   "shape",
			Iterations: 50,
			Damping:    0.1,
			Seed:       1,
		},
		Train: TrainConfig{
			ShapeLoss:            0.05,
			AppearanceLoss:       0.05,
			ProcrustesIterations: 10,
			Channels:             1,
		},
		Detect: DetectConfig{
			Enabled:      true,
			MinSize:      20,
			MaxSize:      1000,
			ShiftFactor:  0.1,
			ScaleFactor:  1.1,
			IoUThreshold: 0.2,
			FaceScale:    1,
		},
		Output: OutputConfig{
			DrawShape:     true,
			DrawTriangles: true,
			Blend:         "normal",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load returns the defaults overridden by the YAML file at path. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading config from %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// SaveTo writes the config to path, creating its directory if needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports settings the tool cannot run with.
func (c *Config) Validate() error {
	switch c.Fit.Strategy {
	case "pose", "shape":
	default:
		return errors.Errorf("fit.strategy must be pose or shape, got %q", c.Fit.Strategy)
	}
	if c.Fit.Iterations <= 0 {
		return errors.Errorf("fit.iterations must be positive, got %d", c.Fit.Iterations)
	}
	if c.Fit.Damping <= 0 {
		return errors.Errorf("fit.damping must be positive, got %g", c.Fit.Damping)
	}
	if c.Fit.Tolerance < 0 || c.Fit.Jitter < 0 {
		return errors.New("fit.tolerance and fit.jitter cannot be negative")
	}
	if c.Train.ShapeLoss < 0 || c.Train.ShapeLoss >= 1 ||
		c.Train.AppearanceLoss < 0 || c.Train.AppearanceLoss >= 1 {
		return errors.New("train losses must lie in [0, 1)")
	}
	if c.Train.Channels != 1 && c.Train.Channels != 3 {
		return errors.Errorf("train.channels must be 1 or 3, got %d", c.Train.Channels)
	}
	if c.Detect.Enabled {
		if c.Detect.MinSize <= 0 || c.Detect.MaxSize < c.Detect.MinSize {
			return errors.Errorf("invalid detection size range [%d, %d]", c.Detect.MinSize, c.Detect.MaxSize)
		}
		if c.Detect.ScaleFactor <= 1 {
			return errors.Errorf("detect.scale_factor must be greater than 1, got %g", c.Detect.ScaleFactor)
		}
		if c.Detect.FaceScale <= 0 {
			return errors.Errorf("detect.face_scale must be positive, got %g", c.Detect.FaceScale)
		}
	}
	return nil
}
