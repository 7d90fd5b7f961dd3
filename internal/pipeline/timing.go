package pipeline

import (
	"sync"
	"time"

	"lympho-lens/internal/models"
)

// TimingObserver records the wall time between consecutive events of a
// run, attributed to the stage of the later event. Timings accumulate
// across runs until Reset.
type TimingObserver struct {
	mu      sync.RWMutex
	now     func() time.Time
	last    map[string]time.Time
	timings map[models.Stage][]time.Duration
}

func NewTimingObserver() *TimingObserver {
	return newTimingObserver(time.Now)
}

func newTimingObserver(now func() time.Time) *TimingObserver {
	return &TimingObserver{
		now:     now,
		last:    make(map[string]time.Time),
		timings: make(map[models.Stage][]time.Duration),
	}
}

func (t *TimingObserver) OnProgress(event models.ProgressEvent) {
	at := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.last[event.RunID]; ok {
		t.timings[event.Stage] = append(t.timings[event.Stage], at.Sub(prev))
	}

	if event.Stage == models.StageComplete {
		delete(t.last, event.RunID)
		return
	}
	t.last[event.RunID] = at
}

func (t *TimingObserver) Timings(stage models.Stage) []time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	timings := t.timings[stage]
	if timings == nil {
		return nil
	}
	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

// Total is the summed time attributed to stage.
func (t *TimingObserver) Total(stage models.Stage) time.Duration {
	var total time.Duration
	for _, d := range t.Timings(stage) {
		total += d
	}
	return total
}

func (t *TimingObserver) Average(stage models.Stage) time.Duration {
	timings := t.Timings(stage)
	if len(timings) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range timings {
		total += d
	}
	return total / time.Duration(len(timings))
}

func (t *TimingObserver) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = make(map[string]time.Time)
	t.timings = make(map[models.Stage][]time.Duration)
}
