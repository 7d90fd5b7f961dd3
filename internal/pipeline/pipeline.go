package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"lympho-lens/internal/gateway"
	"lympho-lens/internal/logger"
	"lympho-lens/internal/models"
	"lympho-lens/internal/opencv/memory"
)

// ErrRunInProgress is returned when Run is called while another run on the
// same Pipeline has not reached its terminal event.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Pipeline turns a canonical image into a prediction while emitting the
// staged progress protocol.
type Pipeline struct {
	gateway     ModelGateway
	analyzer    AnalyzerFactory
	state       *models.RunStateRepository
	stageDelays map[models.Stage]time.Duration
	log         logger.Logger
}

type Option func(*Pipeline)

// WithStageDelays inserts a pause after every event of the given stages.
func WithStageDelays(delays map[models.Stage]time.Duration) Option {
	return func(p *Pipeline) {
		p.stageDelays = make(map[models.Stage]time.Duration, len(delays))
		for stage, d := range delays {
			p.stageDelays[stage] = d
		}
	}
}

func WithAnalyzer(factory AnalyzerFactory) Option {
	return func(p *Pipeline) {
		p.analyzer = factory
	}
}

// WithStateRepository shares run state with a UI that polls it.
func WithStateRepository(repo *models.RunStateRepository) Option {
	return func(p *Pipeline) {
		p.state = repo
	}
}

func New(gw ModelGateway, log logger.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	p := &Pipeline{
		gateway:     gw,
		analyzer:    OpenCVAnalyzer,
		state:       models.NewRunStateRepository(),
		stageDelays: map[models.Stage]time.Duration{},
		log:         log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) State() models.RunState {
	return p.state.GetState()
}

// RunInference is Run with a plain callback.
func (p *Pipeline) RunInference(ctx context.Context, img *models.CanonicalImage, onProgress func(models.ProgressEvent)) (*models.PredictionResult, error) {
	var obs Observer
	if onProgress != nil {
		obs = ObserverFunc(onProgress)
	}
	return p.Run(ctx, img, obs)
}

// Run executes one inference run. On failure it returns an
// *models.AnalysisError and no result; every native buffer created by the
// run is released before Run returns on either path. The run is settled
// before the complete event is emitted, so an observer may start the next
// run from that event.
func (p *Pipeline) Run(ctx context.Context, img *models.CanonicalImage, obs Observer) (*models.PredictionResult, error) {
	if obs == nil {
		obs = Observers(nil)
	}

	runID := uuid.NewString()
	if !p.state.TryStart(runID) {
		return nil, ErrRunInProgress
	}

	mem := memory.NewManager(p.log, "run-"+runID[:8])
	settled := false
	defer func() {
		if settled {
			return
		}
		// Panic or Goexit from an observer or analyzer.
		rec := recover()
		mem.Cleanup()
		p.state.Fail(fmt.Errorf("run %s did not finish: %v", runID, rec))
		if rec != nil {
			panic(rec)
		}
	}()

	start := time.Now()
	r := &run{
		p:   p,
		id:  runID,
		ctx: ctx,
		img: img,
		obs: obs,
		mem: mem,
	}

	result, err := r.execute()
	mem.Cleanup()
	settled = true

	if err != nil {
		p.state.Fail(err)
		p.log.Error("Pipeline", err, map[string]interface{}{
			"run_id":   runID,
			"duration": time.Since(start).String(),
		})
		return nil, err
	}

	p.state.Complete()
	r.notify(models.StageComplete, percentComplete, "Analysis complete", &models.PartialResult{
		Artifacts:      copyArtifacts(result.Artifacts),
		HasPrediction:  true,
		PredictedClass: result.PredictedClass,
		Confidence:     result.Confidence,
	})
	return result, nil
}

// run carries the state of one execution.
type run struct {
	p     *Pipeline
	id    string
	ctx   context.Context
	img   *models.CanonicalImage
	obs   Observer
	mem   *memory.Manager
	model *gateway.LoadedModel

	artifacts []models.FeatureArtifact
}

func (r *run) execute() (*models.PredictionResult, error) {
	analyzer, err := r.preprocess()
	if err != nil {
		return nil, err
	}
	defer analyzer.Close()

	gray, err := r.analyze(analyzer)
	if err != nil {
		return nil, err
	}

	result, err := r.classify(analyzer, gray)
	if err != nil {
		return nil, err
	}

	result.Artifacts = copyArtifacts(r.artifacts)
	return result, nil
}

func (r *run) preprocess() (Analyzer, error) {
	if r.img == nil {
		return nil, models.NewAnalysisError(models.StagePreprocessing, "no image supplied", nil)
	}
	if err := r.ctx.Err(); err != nil {
		return nil, models.NewAnalysisError(models.StagePreprocessing, "cancelled", err)
	}

	model, err := r.p.gateway.Load(r.ctx, nil)
	if err != nil {
		return nil, models.NewAnalysisError(models.StagePreprocessing, "model unavailable", err)
	}
	r.model = model

	analyzer, err := r.p.analyzer(r.mem, r.img)
	if err != nil {
		return nil, models.NewAnalysisError(models.StagePreprocessing, "could not prepare image buffers", err)
	}

	r.emit(models.StagePreprocessing, percentPreprocessed, "Preprocessing image", &models.PartialResult{})
	if err := r.pace(models.StagePreprocessing); err != nil {
		analyzer.Close()
		return nil, err
	}
	return analyzer, nil
}

// analyze appends the grayscale summary then one artifact per channel.
func (r *run) analyze(analyzer Analyzer) ([]float32, error) {
	gray, err := analyzer.Grayscale()
	if err != nil {
		return nil, models.NewAnalysisError(models.StageAnalyzing, "grayscale summary failed", err)
	}
	if err := r.appendAndEmit(models.StageAnalyzing, percentGrayscale, ArtifactGrayscale, gray, nil); err != nil {
		return nil, err
	}

	for _, step := range channelSteps {
		data, err := analyzer.Channel(step.channel)
		if err != nil {
			return nil, models.NewAnalysisError(models.StageAnalyzing,
				fmt.Sprintf("%s extraction failed", step.name), err)
		}
		if err := r.appendAndEmit(models.StageAnalyzing, step.percent, step.name, data, nil); err != nil {
			return nil, err
		}
	}

	return gray, nil
}

func (r *run) classify(analyzer Analyzer, gray []float32) (*models.PredictionResult, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, models.NewAnalysisError(models.StageClassifying, "cancelled", err)
	}

	scores, err := r.p.gateway.Infer(r.ctx, r.model, r.img)
	if err != nil {
		return nil, models.NewAnalysisError(models.StageClassifying, "inference failed", asInferenceError(err))
	}

	classes := r.model.Classes()
	index, confidence, err := pickClass(scores, len(classes))
	if err != nil {
		return nil, models.NewAnalysisError(models.StageClassifying, "unusable scores", &models.InferenceError{Err: err})
	}
	if raw := float64(scores[index]); raw != confidence {
		r.p.log.Warning("Pipeline", "model score outside [0,1] was clamped", map[string]interface{}{
			"run_id": r.id,
			"raw":    raw,
		})
	}

	result := &models.PredictionResult{
		RunID:          r.id,
		PredictedClass: classes[index],
		ClassIndex:     index,
		Confidence:     confidence,
		Scores:         append([]float32(nil), scores...),
	}
	prediction := &models.PartialResult{
		HasPrediction:  true,
		PredictedClass: result.PredictedClass,
		Confidence:     result.Confidence,
	}

	r.emit(models.StageClassifying, percentPredicted, "Classification Analysis", withArtifacts(prediction, r.artifacts))
	if err := r.pace(models.StageClassifying); err != nil {
		return nil, err
	}

	name, data := r.enhance(analyzer, gray)
	if err := r.appendAndEmit(models.StageClassifying, percentEnhanced, name, data, prediction); err != nil {
		return nil, err
	}

	return result, nil
}

// enhance never fails: any error or panic from the analyzer yields the
// plain grayscale summary under the fallback name.
func (r *run) enhance(analyzer Analyzer, gray []float32) (name string, data []float32) {
	defer func() {
		if rec := recover(); rec != nil {
			r.enhancementFailed(fmt.Errorf("panic: %v", rec))
			name, data = ArtifactGrayscaleFallback, r.img.Grayscale()
		}
	}()

	enhanced, err := analyzer.Enhance(gray)
	if err != nil {
		r.enhancementFailed(err)
		return ArtifactGrayscaleFallback, r.img.Grayscale()
	}
	return ArtifactEnhanced, enhanced
}

func (r *run) enhancementFailed(err error) {
	r.p.log.Warning("Pipeline", "contrast enhancement failed, using grayscale fallback", map[string]interface{}{
		"run_id": r.id,
		"error":  err.Error(),
	})
}

func (r *run) appendAndEmit(stage models.Stage, percent int, name string, data []float32, prediction *models.PartialResult) error {
	r.artifacts = append(r.artifacts, models.FeatureArtifact{Name: name, Data: data})

	partial := &models.PartialResult{}
	if prediction != nil {
		partial = prediction
	}
	r.emit(stage, percent, name, withArtifacts(partial, r.artifacts))
	return r.pace(stage)
}

func withArtifacts(base *models.PartialResult, artifacts []models.FeatureArtifact) *models.PartialResult {
	out := *base
	out.Artifacts = copyArtifacts(artifacts)
	return &out
}

func (r *run) emit(stage models.Stage, percent int, label string, partial *models.PartialResult) {
	r.p.state.UpdateProgress(stage, percent)
	r.notify(stage, percent, label, partial)
}

// notify delivers an event without touching run state.
func (r *run) notify(stage models.Stage, percent int, label string, partial *models.PartialResult) {
	r.obs.OnProgress(models.ProgressEvent{
		RunID:   r.id,
		Stage:   stage,
		Percent: percent,
		Label:   label,
		Partial: partial,
	})
}

// pace waits the configured delay for stage, honouring cancellation.
func (r *run) pace(stage models.Stage) error {
	d := r.p.stageDelays[stage]
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-r.ctx.Done():
		return models.NewAnalysisError(stage, "cancelled", r.ctx.Err())
	}
}

// pickClass returns the argmax over the first classes scores and the raw
// score there clamped to [0,1]. Scores are not renormalized.
func pickClass(scores []float32, classes int) (int, float64, error) {
	if classes == 0 {
		return 0, 0, errors.New("model has no classes")
	}
	if len(scores) < classes {
		return 0, 0, fmt.Errorf("got %d scores for %d classes", len(scores), classes)
	}

	best := -1
	for i := 0; i < classes; i++ {
		v := float64(scores[i])
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || scores[i] > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return 0, 0, errors.New("all scores are NaN")
	}

	confidence := math.Max(0, math.Min(1, float64(scores[best])))
	return best, confidence, nil
}

func asInferenceError(err error) error {
	var inf *models.InferenceError
	if errors.As(err, &inf) {
		return err
	}
	return &models.InferenceError{Err: err}
}
