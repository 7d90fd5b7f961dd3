package transition

import (
	"sync"
	"time"

	"lympho-lens/internal/heatmap"
	"lympho-lens/internal/logger"
	"lympho-lens/internal/models"
)

// DefaultDuration is the fade-in length of one selection change.
const DefaultDuration = 600 * time.Millisecond

// FrameRenderer draws target at the given blend weight.
type FrameRenderer interface {
	RenderFrame(target models.Target, blendWeight float64) error
}

// sceneRenderer is implemented by renderers that hold the current scene,
// such as *heatmap.Presenter.
type sceneRenderer interface {
	SetScene(scene heatmap.Scene)
}

// Engine fades in the selected target. It is Idle or Transitioning; a new
// selection while transitioning cancels the pending frame and restarts
// from the current clock time.
type Engine struct {
	renderer FrameRenderer
	sched    Scheduler
	duration time.Duration
	log      logger.Logger

	mu       sync.Mutex
	state    models.RenderState
	start    time.Time
	frame    FrameID
	hasFrame bool
	closed   bool

	// generation increments on every state reset; frames of an older
	// generation are dropped.
	generation uint64
	renderMu   sync.Mutex
}

func NewEngine(renderer FrameRenderer, sched Scheduler, duration time.Duration, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Engine{
		renderer: renderer,
		sched:    sched,
		duration: duration,
		log:      log,
		state: models.RenderState{
			Active:      models.OriginalTarget,
			BlendWeight: 1,
		},
	}
}

// State returns a snapshot of the render state.
func (e *Engine) State() models.RenderState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	if st.Previous != nil {
		prev := *st.Previous
		st.Previous = &prev
	}
	return st
}

// Select starts a transition to target. Selecting the active target is a
// no-op.
func (e *Engine) Select(target models.Target) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || target == e.state.Active {
		return
	}

	e.cancelLocked()
	previous := e.state.Active
	e.state = models.RenderState{
		Active:      target,
		Previous:    &previous,
		BlendWeight: 0,
		Running:     true,
	}
	e.start = e.sched.Now()
	e.generation++
	e.scheduleLocked(e.generation)

	e.log.Debug("TransitionEngine", "transition started", map[string]interface{}{
		"target":   target.String(),
		"previous": previous.String(),
	})
}

// SetScene installs the artifacts of a new run. Any transition in flight is
// dropped and the active target is redrawn fully opaque; an artifact index
// past the new scene falls back to the original image.
func (e *Engine) SetScene(scene heatmap.Scene) {
	if sr, ok := e.renderer.(sceneRenderer); ok {
		sr.SetScene(scene)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	e.cancelLocked()
	active := e.state.Active
	if !active.IsOriginal() && active.Index() >= len(scene.Artifacts) {
		active = models.OriginalTarget
	}
	e.state = models.RenderState{Active: active, BlendWeight: 1}
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	if scene.Original == nil && active.IsOriginal() {
		return
	}
	e.render(gen, active, 1)
}

// Close cancels any pending frame. Later selections are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked()
	e.closed = true
	e.generation++
	e.state.Running = false
	return nil
}

func (e *Engine) cancelLocked() {
	if e.hasFrame {
		e.sched.CancelFrame(e.frame)
		e.hasFrame = false
	}
}

func (e *Engine) scheduleLocked(gen uint64) {
	e.frame = e.sched.RequestFrame(func(now time.Time) {
		e.tick(gen, now)
	})
	e.hasFrame = true
}

func (e *Engine) tick(gen uint64, now time.Time) {
	e.mu.Lock()
	if e.closed || gen != e.generation || !e.hasFrame {
		e.mu.Unlock()
		return
	}
	e.hasFrame = false

	progress := float64(now.Sub(e.start)) / float64(e.duration)
	if progress < 0 {
		progress = 0
	}
	if progress >= 1 {
		progress = 1
		e.state.Running = false
	}
	e.state.BlendWeight = progress
	target := e.state.Active

	if progress < 1 {
		e.scheduleLocked(gen)
	}
	e.mu.Unlock()

	e.render(gen, target, progress)
}

// render draws one frame unless the generation moved on meanwhile. A
// render failure ends the transition.
func (e *Engine) render(gen uint64, target models.Target, weight float64) {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	e.mu.Lock()
	stale := gen != e.generation
	e.mu.Unlock()
	if stale {
		return
	}

	if err := e.renderer.RenderFrame(target, weight); err != nil {
		e.log.Error("TransitionEngine", err, map[string]interface{}{
			"target":       target.String(),
			"blend_weight": weight,
		})

		e.mu.Lock()
		if gen == e.generation {
			e.cancelLocked()
			e.state.Running = false
			e.state.BlendWeight = 1
		}
		e.mu.Unlock()
	}
}
