package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lympho-lens/internal/config"
	"lympho-lens/internal/logger"
	"lympho-lens/internal/models"
)

// Model is a loaded network ready for forward passes.
type Model interface {
	Forward(input []float32) ([]float32, error)
	Close() error
}

// Runtime opens model files. Implementations live in the onnx and dnn
// subpackages.
type Runtime interface {
	Name() string
	Open(ctx context.Context, path string, manifest Manifest) (Model, error)
}

// LoadedModel is the process-wide handle returned by Load.
type LoadedModel struct {
	model    Model
	manifest Manifest
	source   string
	loadedAt time.Time
}

func (m *LoadedModel) Classes() []string {
	return append([]string(nil), m.manifest.Classes...)
}

func (m *LoadedModel) Manifest() Manifest {
	return m.manifest
}

func (m *LoadedModel) Source() string {
	return m.source
}

// fetchShare of the progress range is spent downloading; the rest covers
// opening the model.
const fetchShare = 0.9

var ErrClosed = errors.New("gateway is closed")

// Gateway owns the single model instance for the process. Load is
// idempotent and safe for concurrent callers.
type Gateway struct {
	cfg     config.ModelConfig
	runtime Runtime
	fetcher *Fetcher
	log     logger.Logger

	mu     sync.Mutex
	loaded *LoadedModel
	closed bool
	group  singleflight.Group
}

func New(cfg config.ModelConfig, runtime Runtime, fetcher *Fetcher, log logger.Logger) *Gateway {
	if log == nil {
		log = logger.NewNop()
	}
	if fetcher == nil {
		fetcher = NewFetcher(nil, cfg.CacheDir, log)
	}
	return &Gateway{
		cfg:     cfg,
		runtime: runtime,
		fetcher: fetcher,
		log:     log,
	}
}

// Loaded returns the cached model, if any.
func (g *Gateway) Loaded() (*LoadedModel, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded, g.loaded != nil
}

// Load fetches and opens the configured model once. Later calls return the
// cached instance. Concurrent callers share one fetch; only the caller that
// started it sees intermediate progress, the rest see 1 on success.
// The shared fetch is detached from any single caller's context: a caller
// whose ctx ends gets a *models.ModelLoadError wrapping ctx.Err() while the
// fetch continues for the others. Failures are not cached.
func (g *Gateway) Load(ctx context.Context, onProgress ProgressFunc) (*LoadedModel, error) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, &models.ModelLoadError{Source: g.cfg.URL, Err: ErrClosed}
	}
	if g.loaded != nil {
		loaded := g.loaded
		g.mu.Unlock()
		onProgress(1)
		return loaded, nil
	}
	g.mu.Unlock()

	// Progress stops once this caller returns, even if the fetch it
	// started keeps running for others.
	var returned atomic.Bool
	defer returned.Store(true)
	progress := func(f float64) {
		if !returned.Load() {
			onProgress(f)
		}
	}

	ch := g.group.DoChan("model", func() (interface{}, error) {
		return g.load(context.WithoutCancel(ctx), progress)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		onProgress(1)
		return res.Val.(*LoadedModel), nil
	case <-ctx.Done():
		return nil, &models.ModelLoadError{Source: g.cfg.URL, Err: ctx.Err()}
	}
}

func (g *Gateway) load(ctx context.Context, onProgress ProgressFunc) (*LoadedModel, error) {
	g.mu.Lock()
	if g.loaded != nil {
		loaded := g.loaded
		g.mu.Unlock()
		return loaded, nil
	}
	g.mu.Unlock()

	start := time.Now()
	fail := func(err error) (*LoadedModel, error) {
		g.log.Error("ModelGateway", err, map[string]interface{}{"source": g.cfg.URL})
		return nil, &models.ModelLoadError{Source: g.cfg.URL, Err: err}
	}

	if g.runtime == nil {
		return fail(errors.New("no inference runtime configured"))
	}

	var modelPath, manifestPath string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		p, err := g.fetcher.Fetch(egCtx, g.cfg.URL, func(f float64) {
			onProgress(f * fetchShare)
		})
		modelPath = p
		return err
	})
	eg.Go(func() error {
		p, err := g.fetcher.FetchOptional(egCtx, SidecarPath(g.cfg.URL))
		manifestPath = p
		return err
	})
	if err := eg.Wait(); err != nil {
		return fail(err)
	}
	onProgress(fetchShare)

	manifest := Manifest{}
	if manifestPath != "" {
		m, _, err := LoadManifest(manifestPath)
		if err != nil {
			return fail(err)
		}
		manifest = m
	}
	manifest = manifest.Resolve(g.cfg, models.CanonicalSize)
	if err := manifest.Validate(); err != nil {
		return fail(fmt.Errorf("malformed model contract: %w", err))
	}

	model, err := g.runtime.Open(ctx, modelPath, manifest)
	if err != nil {
		return fail(fmt.Errorf("%s runtime could not open model: %w", g.runtime.Name(), err))
	}

	loaded := &LoadedModel{
		model:    model,
		manifest: manifest,
		source:   g.cfg.URL,
		loadedAt: time.Now(),
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		model.Close()
		return nil, &models.ModelLoadError{Source: g.cfg.URL, Err: ErrClosed}
	}
	g.loaded = loaded
	g.mu.Unlock()

	g.log.Info("ModelGateway", "model loaded", map[string]interface{}{
		"source":   g.cfg.URL,
		"runtime":  g.runtime.Name(),
		"classes":  strings.Join(manifest.Classes, ","),
		"layout":   manifest.Layout,
		"duration": time.Since(start).String(),
	})

	return loaded, nil
}

// Infer runs one forward pass and returns the raw per-class scores.
// Errors are *models.InferenceError.
func (g *Gateway) Infer(ctx context.Context, m *LoadedModel, img *models.CanonicalImage) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.InferenceError{Err: err}
	}
	if m == nil || m.model == nil {
		return nil, &models.InferenceError{Err: errors.New("model is not loaded")}
	}
	if img == nil {
		return nil, &models.InferenceError{Err: errors.New("canonical image is nil")}
	}
	if img.Side() != m.manifest.ImageSize {
		return nil, &models.InferenceError{
			Err: fmt.Errorf("image side %d does not match model input %d", img.Side(), m.manifest.ImageSize),
		}
	}

	input := img.Pixels()
	if m.manifest.Layout == config.LayoutNCHW {
		input = toPlanar(input, img.Side())
	}

	scores, err := m.model.Forward(input)
	if err != nil {
		return nil, &models.InferenceError{Err: err}
	}
	if len(scores) != len(m.manifest.Classes) {
		return nil, &models.InferenceError{
			Err: fmt.Errorf("model returned %d scores for %d classes", len(scores), len(m.manifest.Classes)),
		}
	}

	return append([]float32(nil), scores...), nil
}

// toPlanar converts interleaved HWC RGB to CHW.
func toPlanar(hwc []float32, side int) []float32 {
	plane := side * side
	chw := make([]float32, len(hwc))
	for i := 0; i < plane; i++ {
		chw[i] = hwc[i*3]
		chw[plane+i] = hwc[i*3+1]
		chw[2*plane+i] = hwc[i*3+2]
	}
	return chw
}

// Close releases the model. Load fails after Close.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	if g.loaded == nil {
		return nil
	}

	err := g.loaded.model.Close()
	g.loaded = nil
	if err != nil {
		return fmt.Errorf("failed to close model: %w", err)
	}
	return nil
}
