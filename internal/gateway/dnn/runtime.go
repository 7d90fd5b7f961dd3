package dnn

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"lympho-lens/internal/gateway"
)

// Runtime runs ONNX models through the OpenCV dnn module. It needs no
// extra shared library beyond OpenCV itself.
type Runtime struct {
	backend gocv.NetBackendType
	target  gocv.NetTargetType
}

func New() *Runtime {
	return &Runtime{
		backend: gocv.NetBackendDefault,
		target:  gocv.NetTargetCPU,
	}
}

func (r *Runtime) Name() string {
	return "opencv"
}

func (r *Runtime) Open(ctx context.Context, path string, manifest gateway.Manifest) (gateway.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("OpenCV could not parse %s", path)
	}

	net.SetPreferableBackend(r.backend)
	net.SetPreferableTarget(r.target)

	sizes := make([]int, len(manifest.InputShape))
	for i, d := range manifest.InputShape {
		sizes[i] = int(d)
	}

	return &model{
		net:        net,
		inputSizes: sizes,
		inputName:  manifest.InputName,
		outputName: manifest.OutputName,
	}, nil
}

type model struct {
	mu         sync.Mutex
	net        gocv.Net
	closed     bool
	inputSizes []int
	inputName  string
	outputName string
}

func (m *model) Forward(input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("model is closed")
	}

	blob := gocv.NewMatWithSizes(m.inputSizes, gocv.MatTypeCV32F)
	defer blob.Close()

	dst, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access input blob: %w", err)
	}
	if len(dst) != len(input) {
		return nil, fmt.Errorf("input has %d values, blob expects %d", len(input), len(dst))
	}
	copy(dst, input)

	m.net.SetInput(blob, m.inputName)
	out := m.net.Forward(m.outputName)
	defer out.Close()

	if out.Empty() {
		return nil, fmt.Errorf("forward pass produced no output")
	}

	scores, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	return append([]float32(nil), scores...), nil
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.net.Close()
}
