package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lympho-lens/internal/config"
)

// Manifest describes the tensor contract of a model file. It is read from a
// JSON sidecar next to the model when one exists.
type Manifest struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Layout      string   `json:"layout,omitempty"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
}

// SidecarPath maps "dir/model.onnx.zst" to "dir/model.json".
func SidecarPath(modelPath string) string {
	base := modelPath
	for _, ext := range []string{".zst", ".gz", ".onnx"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".json"
}

// LoadManifest reads path. A missing file is not an error; found reports
// whether the sidecar existed.
func LoadManifest(path string) (manifest Manifest, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, false, nil
	}
	if err != nil {
		return Manifest{}, false, fmt.Errorf("failed to read manifest: %w", err)
	}

	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, true, fmt.Errorf("failed to parse manifest %s: %w", filepath.Base(path), err)
	}
	return manifest, true, nil
}

// Resolve fills unset fields from cfg and derives the tensor shapes for a
// single image of side x side x 3.
func (m Manifest) Resolve(cfg config.ModelConfig, side int) Manifest {
	if len(m.Classes) == 0 {
		m.Classes = append([]string(nil), cfg.Classes...)
	}
	if m.ImageSize == 0 {
		m.ImageSize = side
	}
	if m.Layout == "" {
		m.Layout = cfg.Layout
	}
	if m.InputName == "" {
		m.InputName = cfg.InputName
	}
	if m.OutputName == "" {
		m.OutputName = cfg.OutputName
	}

	size := int64(m.ImageSize)
	if len(m.InputShape) == 0 {
		if m.Layout == config.LayoutNCHW {
			m.InputShape = []int64{1, 3, size, size}
		} else {
			m.InputShape = []int64{1, size, size, 3}
		}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
	return m
}

// Validate checks the manifest is internally consistent.
func (m Manifest) Validate() error {
	if len(m.Classes) == 0 {
		return fmt.Errorf("manifest lists no classes")
	}
	if m.Layout != config.LayoutNHWC && m.Layout != config.LayoutNCHW {
		return fmt.Errorf("unknown input layout %q", m.Layout)
	}
	if got, want := elements(m.InputShape), int64(m.ImageSize*m.ImageSize*3); got != want {
		return fmt.Errorf("input shape %v holds %d values, image needs %d", m.InputShape, got, want)
	}
	if got := elements(m.OutputShape); got != int64(len(m.Classes)) {
		return fmt.Errorf("output shape %v holds %d values for %d classes", m.OutputShape, got, len(m.Classes))
	}
	return nil
}

func elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
