package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"lympho-lens/internal/gateway"
)

// Runtime runs models through onnxruntime. The ORT environment is process
// global; it is initialized on first Open and torn down by Close.
type Runtime struct {
	libraryPath string

	mu          sync.Mutex
	initialized bool
}

func New(libraryPath string) *Runtime {
	return &Runtime{libraryPath: libraryPath}
}

func (r *Runtime) Name() string {
	return "onnx"
}

func (r *Runtime) ensureEnvironment() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}
	if r.libraryPath != "" {
		ort.SetSharedLibraryPath(r.libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	r.initialized = true
	return nil
}

func (r *Runtime) Open(ctx context.Context, path string, manifest gateway.Manifest) (gateway.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.ensureEnvironment(); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(manifest.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(manifest.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{manifest.InputName}, []string{manifest.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &model{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Close destroys the ORT environment. Models must be closed first.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}
	r.initialized = false
	return ort.DestroyEnvironment()
}

// model binds fixed input and output tensors to a session, so forward
// passes are serialized.
type model struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (m *model) Forward(input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, fmt.Errorf("model is closed")
	}

	dst := m.input.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d values, tensor expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return append([]float32(nil), m.output.GetData()...), nil
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}

	err := m.session.Destroy()
	m.input.Destroy()
	m.output.Destroy()
	m.session = nil
	return err
}
