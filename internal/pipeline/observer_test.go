package pipeline

import (
	"testing"
	"time"

	"lympho-lens/internal/models"
)

func TestChannelObserverCloseUnblocksSender(t *testing.T) {
	obs := NewChannelObserver(1)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for i := 0; i < 3; i++ {
			obs.OnProgress(models.ProgressEvent{Percent: i})
		}
	}()

	if first := <-obs.Events(); first.Percent != 0 {
		t.Fatalf("first event percent = %d, want 0", first.Percent)
	}

	closed := make(chan struct{})
	go func() {
		obs.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a pending send")
	}
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("sender still blocked after Close")
	}

	// Remaining buffered events drain and the channel ends.
	for range obs.Events() {
	}

	obs.Close()
	obs.OnProgress(models.ProgressEvent{})
}
