package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lympho-lens/internal/models"
)

const (
	RuntimeONNX   = "onnx"
	RuntimeOpenCV = "opencv"

	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Config is the full application configuration.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Render   RenderConfig   `yaml:"render"`
	Log      LogConfig      `yaml:"log"`
}

type ModelConfig struct {
	URL        string   `yaml:"url"`
	Runtime    string   `yaml:"runtime"`
	CacheDir   string   `yaml:"cache_dir"`
	Classes    []string `yaml:"classes"`
	Layout     string   `yaml:"layout"`
	InputName  string   `yaml:"input_name"`
	OutputName string   `yaml:"output_name"`
	// ONNXLibrary overrides the onnxruntime shared library location.
	ONNXLibrary string `yaml:"onnx_library"`
}

// PipelineConfig holds UX pacing. Delays are inserted after every event of
// the named stage and never affect results.
type PipelineConfig struct {
	StageDelayMS map[models.Stage]int `yaml:"stage_delay_ms"`
}

type RenderConfig struct {
	CanvasWidth          int     `yaml:"canvas_width"`
	CanvasHeight         int     `yaml:"canvas_height"`
	OverlayOpacity       float64 `yaml:"overlay_opacity"`
	TransitionDurationMS int     `yaml:"transition_duration_ms"`
	FrameIntervalMS      int     `yaml:"frame_interval_ms"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the headless configuration: no pacing delays.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			URL:        "models/lymphoma.onnx",
			Runtime:    RuntimeONNX,
			CacheDir:   defaultCacheDir(),
			Classes:    models.DefaultClassLabels(),
			Layout:     LayoutNHWC,
			InputName:  "input",
			OutputName: "output",
		},
		Pipeline: PipelineConfig{
			StageDelayMS: map[models.Stage]int{},
		},
		Render: RenderConfig{
			CanvasWidth:          256,
			CanvasHeight:         256,
			OverlayOpacity:       0.2,
			TransitionDurationMS: 600,
			FrameIntervalMS:      16,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Interactive returns the default configuration with UX pacing enabled.
func Interactive() *Config {
	cfg := Default()
	cfg.ApplyInteractivePacing()
	return cfg
}

// ApplyInteractivePacing sets the pacing used by the desktop viewer.
func (c *Config) ApplyInteractivePacing() {
	c.Pipeline.StageDelayMS = map[models.Stage]int{
		models.StagePreprocessing: 300,
		models.StageAnalyzing:     500,
		models.StageClassifying:   800,
	}
}

// Load reads a YAML file over the defaults, then applies env overrides.
// An empty path yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if url := os.Getenv("LYMPHO_MODEL_URL"); url != "" {
		c.Model.URL = url
	}
	if dir := os.Getenv("LYMPHO_CACHE_DIR"); dir != "" {
		c.Model.CacheDir = dir
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	switch c.Model.Runtime {
	case RuntimeONNX, RuntimeOpenCV:
	default:
		return models.NewValidationError("model.runtime", c.Model.Runtime, "must be onnx or opencv")
	}

	switch c.Model.Layout {
	case LayoutNHWC, LayoutNCHW:
	default:
		return models.NewValidationError("model.layout", c.Model.Layout, "must be nhwc or nchw")
	}

	if c.Model.URL == "" {
		return models.NewValidationError("model.url", c.Model.URL, "must not be empty")
	}

	if len(c.Model.Classes) == 0 {
		return models.NewValidationError("model.classes", c.Model.Classes, "at least one class required")
	}

	for stage, ms := range c.Pipeline.StageDelayMS {
		if stage.Order() < 0 {
			return models.NewValidationError("pipeline.stage_delay_ms", stage, "unknown stage")
		}
		if ms < 0 {
			return models.NewValidationError("pipeline.stage_delay_ms."+string(stage), ms, "must not be negative")
		}
	}

	if c.Render.CanvasWidth <= 0 || c.Render.CanvasHeight <= 0 {
		return models.NewValidationError("render.canvas",
			fmt.Sprintf("%dx%d", c.Render.CanvasWidth, c.Render.CanvasHeight), "must be positive")
	}

	if c.Render.OverlayOpacity < 0 || c.Render.OverlayOpacity > 1 {
		return models.NewValidationError("render.overlay_opacity", c.Render.OverlayOpacity, "must be within [0,1]")
	}

	if c.Render.TransitionDurationMS <= 0 {
		return models.NewValidationError("render.transition_duration_ms", c.Render.TransitionDurationMS, "must be positive")
	}

	if c.Render.FrameIntervalMS <= 0 {
		return models.NewValidationError("render.frame_interval_ms", c.Render.FrameIntervalMS, "must be positive")
	}

	return nil
}

// StageDelays converts the millisecond map to durations.
func (c *Config) StageDelays() map[models.Stage]time.Duration {
	delays := make(map[models.Stage]time.Duration, len(c.Pipeline.StageDelayMS))
	for stage, ms := range c.Pipeline.StageDelayMS {
		delays[stage] = time.Duration(ms) * time.Millisecond
	}
	return delays
}

func (c *Config) TransitionDuration() time.Duration {
	return time.Duration(c.Render.TransitionDurationMS) * time.Millisecond
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Render.FrameIntervalMS) * time.Millisecond
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + string(os.PathSeparator) + "lympho-lens"
	}
	return os.TempDir() + string(os.PathSeparator) + "lympho-lens"
}
