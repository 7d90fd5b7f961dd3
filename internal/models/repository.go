package models

import (
	"sync"
	"time"
)

// AnalysisRecord is one completed run kept in history.
type AnalysisRecord struct {
	Result   *PredictionResult
	Source   string
	Finished time.Time
}

// AnalysisRepository holds what the presentation layer shows: the current
// canonical image, the latest progress event and the final result. All of
// it is discarded when a new image is set or the repository is reset.
type AnalysisRepository struct {
	mu             sync.RWMutex
	canonical      *CanonicalImage
	source         string
	latestEvent    *ProgressEvent
	result         *PredictionResult
	history        []AnalysisRecord
	maxHistorySize int
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository() *AnalysisRepository {
	return &AnalysisRepository{
		history:        make([]AnalysisRecord, 0),
		maxHistorySize: 10,
	}
}

// SetImage starts a new analysis subject and drops the previous run's data
func (r *AnalysisRepository) SetImage(source string, img *CanonicalImage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.canonical = img
	r.source = source
	r.latestEvent = nil
	r.result = nil
}

// Image returns the current canonical image and its source name
func (r *AnalysisRepository) Image() (*CanonicalImage, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canonical, r.source
}

// StoreEvent keeps only the most recent event
func (r *AnalysisRepository) StoreEvent(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latestEvent = &event
}

// LatestEvent returns the most recent event, if any
func (r *AnalysisRepository) LatestEvent() (ProgressEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.latestEvent == nil {
		return ProgressEvent{}, false
	}
	return *r.latestEvent, true
}

// StoreResult records the terminal result and appends it to history
func (r *AnalysisRepository) StoreResult(result *PredictionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.result = result
	r.history = append(r.history, AnalysisRecord{
		Result:   result,
		Source:   r.source,
		Finished: time.Now(),
	})

	if len(r.history) > r.maxHistorySize {
		r.history = r.history[1:]
	}
}

// Result returns the current run's result, nil until complete
func (r *AnalysisRepository) Result() *PredictionResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// History returns a copy of completed runs, oldest first
func (r *AnalysisRepository) History() []AnalysisRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := make([]AnalysisRecord, len(r.history))
	copy(history, r.history)
	return history
}

// Reset clears the current subject but keeps history
func (r *AnalysisRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.canonical = nil
	r.source = ""
	r.latestEvent = nil
	r.result = nil
}

// Shutdown releases all references
func (r *AnalysisRepository) Shutdown() {
	r.Reset()

	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
}
