package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lympho-lens/internal/config"
	"lympho-lens/internal/models"
)

func TestArtifactFileName(t *testing.T) {
	tests := []struct {
		index int
		name  string
		want  string
	}{
		{0, "Grayscale Analysis", "01-grayscale-analysis.png"},
		{2, "Green Channel", "03-green-channel.png"},
		{4, "Grayscale Analysis (fallback)", "05-grayscale-analysis-fallback.png"},
		{9, "???", "10-artifact.png"},
	}
	for _, tt := range tests {
		if got := artifactFileName(tt.index, tt.name); got != tt.want {
			t.Errorf("artifactFileName(%d, %q) = %q, want %q", tt.index, tt.name, got, tt.want)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	e := models.ProgressEvent{
		Stage:   models.StageClassifying,
		Percent: 80,
		Label:   "Classification Analysis",
		Partial: &models.PartialResult{HasPrediction: true, PredictedClass: "FL", Confidence: 0.875},
	}
	want := "[ 80%] classifying   Classification Analysis  -> FL 87.5%"
	if got := formatEvent(e); got != want {
		t.Errorf("formatEvent() = %q, want %q", got, want)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, "slide.png", &models.PredictionResult{
		PredictedClass: "MCL",
		Confidence:     0.72,
		Scores:         []float32{0.1, 0.18, 0.72},
		Artifacts:      []models.FeatureArtifact{{Name: "Grayscale Analysis"}, {Name: "Red Channel"}},
	}, []string{"CLL", "FL", "MCL"})

	out := buf.String()
	for _, want := range []string{
		"Mantle Cell Lymphoma (MCL)",
		"72.0% (moderate)",
		"CLL=0.100 FL=0.180 MCL=0.720",
		"Grayscale Analysis, Red Channel",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteHeatmaps(t *testing.T) {
	canonical, err := models.UniformCanonicalImage(8, 0.5, 0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	artifacts := []models.FeatureArtifact{
		{Name: "Grayscale Analysis", Data: canonical.Grayscale()},
		{Name: "Red Channel", Data: canonical.Channel(0)},
	}

	dir := filepath.Join(t.TempDir(), "out")
	written, err := writeHeatmaps(dir, canonical, artifacts, 16, 16, 0.2)
	if err != nil {
		t.Fatalf("writeHeatmaps() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "original.png"),
		filepath.Join(dir, "01-grayscale-analysis.png"),
		filepath.Join(dir, "02-red-channel.png"),
	}
	if diff := cmp.Diff(want, written); diff != "" {
		t.Errorf("written mismatch (-want +got):\n%s", diff)
	}
	for _, p := range written {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Errorf("%s missing or empty: %v", p, err)
		}
	}

	_, err = writeHeatmaps(dir, canonical, []models.FeatureArtifact{{Name: "bad", Data: make([]float32, 10)}}, 16, 16, 0.2)
	if err == nil {
		t.Error("writeHeatmaps() accepted a non-square artifact")
	}
}

func TestNewRuntime(t *testing.T) {
	cfg := config.Default().Model

	for _, name := range []string{config.RuntimeONNX, config.RuntimeOpenCV} {
		cfg.Runtime = name
		rt, err := newRuntime(cfg)
		if err != nil {
			t.Fatalf("newRuntime(%s) error = %v", name, err)
		}
		if rt.Name() != name {
			t.Errorf("Name() = %q, want %q", rt.Name(), name)
		}
	}

	cfg.Runtime = "tflite"
	if _, err := newRuntime(cfg); err == nil {
		t.Error("newRuntime accepted an unknown runtime")
	}
}
