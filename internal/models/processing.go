package models

import (
	"sync"
	"time"
)

// RunState represents the current state of a pipeline run
type RunState struct {
	IsActive  bool
	RunID     string
	Stage     Stage
	Percent   int
	StartTime time.Time
	Elapsed   time.Duration
	LastError string
}

// RunStateRepository tracks the single in-flight run
type RunStateRepository struct {
	mu    sync.RWMutex
	state RunState
}

// NewRunStateRepository creates a new run state repository
func NewRunStateRepository() *RunStateRepository {
	return &RunStateRepository{}
}

// GetState returns the current run state
func (r *RunStateRepository) GetState() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := r.state
	if state.IsActive {
		state.Elapsed = time.Since(state.StartTime)
	}
	return state
}

// TryStart marks a run as active. It returns false when another run is
// already in flight.
func (r *RunStateRepository) TryStart(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsActive {
		return false
	}

	r.state = RunState{
		IsActive:  true,
		RunID:     runID,
		Stage:     StagePreprocessing,
		StartTime: time.Now(),
	}
	return true
}

// UpdateProgress records the latest emitted stage and percent
func (r *RunStateRepository) UpdateProgress(stage Stage, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsActive {
		r.state.Stage = stage
		r.state.Percent = percent
	}
}

// Complete marks the run as finished successfully
func (r *RunStateRepository) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.IsActive = false
	r.state.Stage = StageComplete
	r.state.Percent = 100
	r.state.Elapsed = time.Since(r.state.StartTime)
}

// Fail marks the run as aborted
func (r *RunStateRepository) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.IsActive = false
	r.state.Elapsed = time.Since(r.state.StartTime)
	if err != nil {
		r.state.LastError = err.Error()
	}
}

// IsProcessing returns true if a run is currently active
func (r *RunStateRepository) IsProcessing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.IsActive
}
