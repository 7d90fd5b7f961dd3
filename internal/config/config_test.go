package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lympho-lens/internal/models"
)

func TestDefaultIsValidAndHeadless(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if len(cfg.StageDelays()) != 0 {
		t.Errorf("default stage delays = %v, want none", cfg.StageDelays())
	}
	if cfg.TransitionDuration() != 600*time.Millisecond {
		t.Errorf("TransitionDuration() = %v, want 600ms", cfg.TransitionDuration())
	}
}

func TestInteractivePacing(t *testing.T) {
	cfg := Interactive()
	want := map[models.Stage]time.Duration{
		models.StagePreprocessing: 300 * time.Millisecond,
		models.StageAnalyzing:     500 * time.Millisecond,
		models.StageClassifying:   800 * time.Millisecond,
	}
	if diff := cmp.Diff(want, cfg.StageDelays()); diff != "" {
		t.Errorf("StageDelays() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lympho.yaml")
	content := `
model:
  url: https://example.org/model.onnx.zst
  runtime: opencv
  layout: nchw
pipeline:
  stage_delay_ms:
    analyzing: 250
render:
  overlay_opacity: 0.35
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LYMPHO_MODEL_URL", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.Runtime != RuntimeOpenCV || cfg.Model.Layout != LayoutNCHW {
		t.Errorf("model section = %+v", cfg.Model)
	}
	if cfg.StageDelays()[models.StageAnalyzing] != 250*time.Millisecond {
		t.Errorf("analyzing delay = %v, want 250ms", cfg.StageDelays()[models.StageAnalyzing])
	}
	if cfg.Render.OverlayOpacity != 0.35 {
		t.Errorf("overlay opacity = %v", cfg.Render.OverlayOpacity)
	}
	if cfg.Render.CanvasWidth != 256 {
		t.Errorf("unset canvas width should keep default, got %d", cfg.Render.CanvasWidth)
	}
	if diff := cmp.Diff(models.DefaultClassLabels(), cfg.Model.Classes); diff != "" {
		t.Errorf("unset classes should keep defaults (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LYMPHO_MODEL_URL", "file:///opt/models/m.onnx")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.URL != "file:///opt/models/m.onnx" {
		t.Errorf("Model.URL = %q", cfg.Model.URL)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"runtime", func(c *Config) { c.Model.Runtime = "tflite" }, "model.runtime"},
		{"layout", func(c *Config) { c.Model.Layout = "chw" }, "model.layout"},
		{"classes", func(c *Config) { c.Model.Classes = nil }, "model.classes"},
		{"negative delay", func(c *Config) {
			c.Pipeline.StageDelayMS[models.StageAnalyzing] = -1
		}, "pipeline.stage_delay_ms.analyzing"},
		{"unknown stage", func(c *Config) {
			c.Pipeline.StageDelayMS["warmup"] = 5
		}, "pipeline.stage_delay_ms"},
		{"canvas", func(c *Config) { c.Render.CanvasWidth = 0 }, "render.canvas"},
		{"opacity", func(c *Config) { c.Render.OverlayOpacity = 1.5 }, "render.overlay_opacity"},
		{"duration", func(c *Config) { c.Render.TransitionDurationMS = 0 }, "render.transition_duration_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if ve.Parameter != tt.param {
				t.Errorf("Parameter = %q, want %q", ve.Parameter, tt.param)
			}
		})
	}
}
