package shutdown

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type closeFunc func() error

func (f closeFunc) Close() error {
	return f()
}

func TestShutdownRunsInReverseOrder(t *testing.T) {
	m := NewManager(nil)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	m.Register("gateway", Func(func() { record("gateway") }))
	m.RegisterCloser("engine", closeFunc(func() error {
		record("engine")
		return nil
	}))
	m.RegisterCloser("surface", closeFunc(func() error {
		record("surface")
		return errors.New("already gone")
	}))

	m.Shutdown()
	m.Shutdown()

	if diff := cmp.Diff([]string{"surface", "engine", "gateway"}, order); diff != "" {
		t.Errorf("shutdown order mismatch (-want +got):\n%s", diff)
	}
	if m.Context().Err() == nil {
		t.Error("context not cancelled")
	}
	select {
	case <-m.Done():
	default:
		t.Error("Done() not closed")
	}
}

func TestShutdownTimeout(t *testing.T) {
	m := NewManager(nil)
	m.SetTimeout(20 * time.Millisecond)

	block := make(chan struct{})
	defer close(block)

	ran := false
	m.Register("first", Func(func() { ran = true }))
	m.Register("stuck", Func(func() { <-block }))

	start := time.Now()
	m.Shutdown()

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Shutdown() took %v", elapsed)
	}
	if !ran {
		t.Error("component after a stuck one was skipped")
	}
}
