package memory

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestTrackerBookkeeping(t *testing.T) {
	m := NewManager(nil, "test")

	m.TrackAllocation(1, 64, "a")
	m.TrackAllocation(2, 32, "b")
	m.TrackDeallocation(1, "a")
	m.TrackDeallocation(99, "ghost")

	stats := m.GetStats()
	if stats.ActiveMats != 1 {
		t.Errorf("ActiveMats = %d, want 1", stats.ActiveMats)
	}
	if stats.TotalAllocated != 96 || stats.TotalReleased != 64 {
		t.Errorf("allocated/released = %d/%d, want 96/64", stats.TotalAllocated, stats.TotalReleased)
	}
	if stats.Untracked != 1 {
		t.Errorf("Untracked = %d, want 1", stats.Untracked)
	}
}

func TestGetMatReusesPooledMat(t *testing.T) {
	m := NewManager(nil, "test")
	defer m.Cleanup()

	first, err := m.GetMat(8, 8, gocv.MatTypeCV32FC1, "first")
	if err != nil {
		t.Fatalf("GetMat() error = %v", err)
	}
	id := first.ID()
	m.ReleaseMat(first)

	stats := m.GetStats()
	if stats.ActiveMats != 0 || stats.PooledMats != 1 {
		t.Fatalf("after release active/pooled = %d/%d, want 0/1", stats.ActiveMats, stats.PooledMats)
	}

	second, err := m.GetMat(8, 8, gocv.MatTypeCV32FC1, "second")
	if err != nil {
		t.Fatalf("GetMat() error = %v", err)
	}
	if second.ID() != id {
		t.Errorf("expected pooled Mat %d to be reused, got %d", id, second.ID())
	}
	if got := m.GetStats().PoolHits; got != 1 {
		t.Errorf("PoolHits = %d, want 1", got)
	}
}

func TestCleanupClosesEverything(t *testing.T) {
	m := NewManager(nil, "test")

	pooled, err := m.GetMat(4, 4, gocv.MatTypeCV32FC1, "pooled")
	if err != nil {
		t.Fatal(err)
	}
	m.ReleaseMat(pooled)

	outstanding, err := m.FromFloats(2, 2, 1, []float32{0, 0.25, 0.5, 1}, "outstanding")
	if err != nil {
		t.Fatal(err)
	}

	m.Cleanup()

	if outstanding.IsValid() {
		t.Error("outstanding Mat still valid after Cleanup")
	}
	stats := m.GetStats()
	if stats.ActiveMats != 0 || stats.PooledMats != 0 {
		t.Errorf("after Cleanup active/pooled = %d/%d, want 0/0", stats.ActiveMats, stats.PooledMats)
	}
	if stats.TotalAllocated != stats.TotalReleased {
		t.Errorf("allocated %d != released %d", stats.TotalAllocated, stats.TotalReleased)
	}
}

func TestMemoryLimit(t *testing.T) {
	m := NewManager(nil, "test")
	defer m.Cleanup()
	m.stats.MaxAllowed = 100

	if _, err := m.GetMat(16, 16, gocv.MatTypeCV32FC1, "big"); err == nil {
		t.Error("expected limit error for 1024-byte Mat under 100-byte cap")
	}
}

func TestReusedMatIsZeroed(t *testing.T) {
	m := NewManager(nil, "test")
	defer m.Cleanup()

	mat, err := m.GetMat(2, 2, gocv.MatTypeCV32FC1, "dirty")
	if err != nil {
		t.Fatal(err)
	}
	mat.GetMatPtr().SetTo(gocv.NewScalar(7, 0, 0, 0))
	m.ReleaseMat(mat)

	reused, err := m.GetMat(2, 2, gocv.MatTypeCV32FC1, "clean")
	if err != nil {
		t.Fatal(err)
	}
	values, err := reused.ToFloats()
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range values {
		if v != 0 {
			t.Errorf("values[%d] = %v, want 0", i, v)
		}
	}
}

func TestReleaseOtherShapeOpensNewPool(t *testing.T) {
	m := NewManager(nil, "test")
	defer m.Cleanup()

	small, err := m.GetMat(2, 2, gocv.MatTypeCV32FC1, "small")
	if err != nil {
		t.Fatal(err)
	}
	m.ReleaseMat(small)

	large, err := m.GetMat(4, 4, gocv.MatTypeCV32FC1, "large")
	if err != nil {
		t.Fatal(err)
	}
	if large.ID() == small.ID() {
		t.Error("Mat of a different shape was reused")
	}
	if got := m.GetStats().PoolMisses; got != 2 {
		t.Errorf("PoolMisses = %d, want 2", got)
	}
}
