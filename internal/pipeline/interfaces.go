package pipeline

import (
	"context"

	"lympho-lens/internal/gateway"
	"lympho-lens/internal/models"
	"lympho-lens/internal/opencv/features"
	"lympho-lens/internal/opencv/memory"
)

// ModelGateway is the part of *gateway.Gateway the pipeline needs.
type ModelGateway interface {
	Load(ctx context.Context, onProgress gateway.ProgressFunc) (*gateway.LoadedModel, error)
	Infer(ctx context.Context, m *gateway.LoadedModel, img *models.CanonicalImage) ([]float32, error)
}

// Analyzer computes feature maps for one canonical image. Implementations
// allocate native buffers from the run's memory manager.
type Analyzer interface {
	Grayscale() ([]float32, error)
	Channel(channel int) ([]float32, error)
	Enhance(values []float32) ([]float32, error)
	Close()
}

// AnalyzerFactory opens an Analyzer for one run.
type AnalyzerFactory func(mem *memory.Manager, img *models.CanonicalImage) (Analyzer, error)

// OpenCVAnalyzer is the default factory backed by gocv.
func OpenCVAnalyzer(mem *memory.Manager, img *models.CanonicalImage) (Analyzer, error) {
	session, err := features.NewSession(mem, img)
	if err != nil {
		return nil, err
	}
	return session, nil
}
