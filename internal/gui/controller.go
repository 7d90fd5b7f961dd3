package gui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"fyne.io/fyne/v2"

	"lympho-lens/internal/config"
	"lympho-lens/internal/gateway"
	"lympho-lens/internal/heatmap"
	"lympho-lens/internal/imaging"
	"lympho-lens/internal/logger"
	"lympho-lens/internal/models"
	"lympho-lens/internal/pipeline"
	"lympho-lens/internal/transition"
)

// Dependencies are the collaborators the viewer drives.
type Dependencies struct {
	Pipeline   *pipeline.Pipeline
	Gateway    *gateway.Gateway
	Source     *imaging.Source
	Normalizer *imaging.Normalizer
	Repository *models.AnalysisRepository
	Render     config.RenderConfig
	Logger     logger.Logger
}

// Controller coordinates the view with the pipeline and the transition
// engine.
type Controller struct {
	deps Dependencies
	view *View
	log  logger.Logger

	surface *CanvasSurface
	sched   *transition.TickerScheduler
	engine  *transition.Engine

	mu         sync.Mutex
	processing bool
	shownCount int
	ctx        context.Context
	cancel     context.CancelFunc
	runCancel  context.CancelFunc
}

func NewController(deps Dependencies) *Controller {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		deps:   deps,
		log:    deps.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetView binds the view and builds the heatmap surface behind it.
func (c *Controller) SetView(view *View) {
	c.view = view

	r := c.deps.Render
	c.surface = NewCanvasSurface(view.HeatmapDisplay().HeatmapCanvas(), r.CanvasWidth, r.CanvasHeight)
	presenter := heatmap.NewPresenter(heatmap.NewRenderer(heatmap.DefaultRamp, r.OverlayOpacity), c.surface)
	c.sched = transition.NewTickerScheduler(msDuration(r.FrameIntervalMS))
	c.engine = transition.NewEngine(presenter, c.sched, msDuration(r.TransitionDurationMS), c.log)
}

// Engine exposes the transition engine for shutdown registration.
func (c *Controller) Engine() *transition.Engine {
	return c.engine
}

// PreloadModel starts fetching the model in the background so the first
// run does not wait for the download.
func (c *Controller) PreloadModel() {
	go func() {
		_, err := c.deps.Gateway.Load(c.ctx, func(f float64) {
			fyne.Do(func() {
				c.view.SetModelProgress(f)
			})
		})
		if err != nil {
			fyne.Do(func() {
				c.view.SetModelFailed(err)
			})
		}
	}()
}

// LoadImage lets the user pick an image file.
func (c *Controller) LoadImage() {
	c.view.ShowFileDialog(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			c.handleError(fmt.Errorf("file selection failed: %w", err))
			return
		}
		if reader == nil {
			return
		}

		c.view.SetStatus("Loading image...")
		go func() {
			defer reader.Close()

			data, err := io.ReadAll(reader)
			if err != nil {
				fyne.Do(func() { c.handleError(fmt.Errorf("failed to read image: %w", err)) })
				return
			}
			c.openImage(bytes.NewReader(data), reader.URI().Name())
		}()
	})
}

// OpenPath loads an image from disk, as when a path is given on the
// command line.
func (c *Controller) OpenPath(path string) {
	c.view.SetStatus("Loading image...")
	go func() {
		src, err := c.deps.Source.LoadFile(path)
		if err != nil {
			fyne.Do(func() { c.handleError(err) })
			return
		}
		c.showSource(src)
	}()
}

func (c *Controller) openImage(r io.ReadSeeker, name string) {
	src, err := c.deps.Source.Decode(r, name)
	if err != nil {
		fyne.Do(func() { c.handleError(err) })
		return
	}
	c.showSource(src)
}

func (c *Controller) showSource(src *imaging.SourceImage) {
	canonical, err := c.deps.Normalizer.Normalize(src.Image)
	if err != nil {
		fyne.Do(func() { c.handleError(err) })
		return
	}

	c.deps.Repository.SetImage(src.Name, canonical)
	c.mu.Lock()
	c.shownCount = 0
	c.mu.Unlock()
	c.engine.SetScene(heatmap.Scene{Original: canonical})

	c.log.Info("Controller", "image loaded", map[string]interface{}{
		"name":   src.Name,
		"width":  src.Width,
		"height": src.Height,
		"format": src.Format,
	})

	fyne.Do(func() {
		c.view.Clear()
		c.view.SetSourceImage(src.Image)
		c.view.SetStatus(fmt.Sprintf("Loaded %s (%dx%d)", src.Name, src.Width, src.Height))
		c.refreshActions()
	})
}

// Analyze runs the pipeline on the current image. It is ignored while a run
// is in flight.
func (c *Controller) Analyze() {
	canonical, source := c.deps.Repository.Image()
	if canonical == nil {
		c.handleError(fmt.Errorf("no image loaded"))
		return
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return
	}
	c.processing = true
	c.shownCount = 0
	ctx, cancel := context.WithCancel(c.ctx)
	c.runCancel = cancel
	c.mu.Unlock()

	c.view.ClearError()
	c.view.SetBusy(true)
	c.engine.SetScene(heatmap.Scene{Original: canonical})

	obs := pipeline.Observers{
		pipeline.NewLoggingObserver(c.log),
		pipeline.ObserverFunc(func(event models.ProgressEvent) {
			c.onProgress(canonical, event)
		}),
	}

	go func() {
		defer cancel()

		result, err := c.deps.Pipeline.Run(ctx, canonical, obs)

		c.mu.Lock()
		c.processing = false
		c.runCancel = nil
		c.mu.Unlock()

		if err != nil {
			c.log.Error("Controller", err, map[string]interface{}{"source": source})
			fyne.Do(func() {
				c.view.SetBusy(false)
				c.handleError(err)
				c.refreshActions()
			})
			return
		}

		c.deps.Repository.StoreResult(result)
		var classes []string
		if m, ok := c.deps.Gateway.Loaded(); ok {
			classes = m.Classes()
		}

		fyne.Do(func() {
			c.view.SetBusy(false)
			c.view.ShowResult(result, classes)
			c.refreshActions()
		})
	}()
}

// onProgress stores the event, fades in each newly produced artifact, and
// mirrors the event in the view.
func (c *Controller) onProgress(canonical *models.CanonicalImage, event models.ProgressEvent) {
	c.deps.Repository.StoreEvent(event)

	target := c.engine.State().Active
	if event.Partial != nil {
		artifacts := event.Partial.Artifacts

		c.mu.Lock()
		grew := len(artifacts) > c.shownCount
		if grew {
			c.shownCount = len(artifacts)
		}
		c.mu.Unlock()

		if grew {
			target = models.ArtifactTarget(len(artifacts) - 1)
			c.engine.SetScene(heatmap.Scene{Original: canonical, Artifacts: artifacts})
			c.engine.Select(target)
		}
	}

	fyne.Do(func() {
		c.view.ShowProgress(event, target)
	})
}

// SelectTarget switches the heatmap view to target.
func (c *Controller) SelectTarget(target models.Target) {
	c.engine.Select(target)

	var artifacts []models.FeatureArtifact
	if event, ok := c.deps.Repository.LatestEvent(); ok && event.Partial != nil {
		artifacts = event.Partial.Artifacts
	}
	c.view.SetTargetTitle(target, artifacts)

	c.log.Debug("Controller", "target selected", map[string]interface{}{
		"target": target.String(),
	})
}

// Reset drops the current image and results.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return
	}
	c.shownCount = 0
	c.mu.Unlock()

	c.deps.Repository.Reset()
	c.engine.SetScene(heatmap.Scene{})
	c.view.Clear()
	c.refreshActions()
}

func (c *Controller) refreshActions() {
	canonical, _ := c.deps.Repository.Image()

	// A failed preload is retried by the run itself.
	c.mu.Lock()
	enabled := canonical != nil && !c.processing
	c.mu.Unlock()

	c.view.SetAnalyzeEnabled(enabled)
}

func (c *Controller) handleError(err error) {
	c.view.ShowError(err)
}

// Shutdown cancels any run in flight and stops the animation.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.runCancel != nil {
		c.runCancel()
	}
	c.mu.Unlock()

	c.cancel()
	c.engine.Close()
	c.sched.Stop()
	c.surface.Close()
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
