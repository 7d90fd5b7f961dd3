package pipeline

import (
	"sync"

	"lympho-lens/internal/logger"
	"lympho-lens/internal/models"
)

// Observer receives progress events in emission order, synchronously on
// the pipeline goroutine.
type Observer interface {
	OnProgress(event models.ProgressEvent)
}

type ObserverFunc func(event models.ProgressEvent)

func (f ObserverFunc) OnProgress(event models.ProgressEvent) {
	f(event)
}

// Observers fans one event out to each member in order. Nil members are
// skipped.
type Observers []Observer

func (o Observers) OnProgress(event models.ProgressEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.OnProgress(event)
		}
	}
}

// ChannelObserver forwards events to a buffered channel. Sends block when
// the buffer is full, so the consumer paces the pipeline. Close unblocks a
// pending send, dropping its event, and closes the channel once no send is
// in flight.
type ChannelObserver struct {
	mu      sync.Mutex
	ch      chan models.ProgressEvent
	done    chan struct{}
	senders sync.WaitGroup
	closed  bool
}

func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{
		ch:   make(chan models.ProgressEvent, buffer),
		done: make(chan struct{}),
	}
}

func (c *ChannelObserver) Events() <-chan models.ProgressEvent {
	return c.ch
}

func (c *ChannelObserver) OnProgress(event models.ProgressEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.senders.Add(1)
	c.mu.Unlock()
	defer c.senders.Done()

	select {
	case c.ch <- event:
	case <-c.done:
	}
}

// Close stops delivery. Events arriving afterwards are dropped.
func (c *ChannelObserver) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.senders.Wait()
	close(c.ch)
}

// LoggingObserver writes each event to the logger at debug level, and the
// terminal event at info level.
type LoggingObserver struct {
	log logger.Logger
}

func NewLoggingObserver(log logger.Logger) *LoggingObserver {
	return &LoggingObserver{log: log}
}

func (l *LoggingObserver) OnProgress(event models.ProgressEvent) {
	fields := map[string]interface{}{
		"run_id":  event.RunID,
		"stage":   string(event.Stage),
		"percent": event.Percent,
		"label":   event.Label,
	}
	if event.Partial != nil {
		fields["artifacts"] = len(event.Partial.Artifacts)
		if event.Partial.HasPrediction {
			fields["predicted_class"] = event.Partial.PredictedClass
			fields["confidence"] = event.Partial.Confidence
		}
	}

	if event.Stage == models.StageComplete {
		l.log.Info("Pipeline", "run complete", fields)
		return
	}
	l.log.Debug("Pipeline", "progress", fields)
}
