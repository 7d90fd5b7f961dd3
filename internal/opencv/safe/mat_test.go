package safe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type countingTracker struct {
	allocs, deallocs int
}

func (c *countingTracker) TrackAllocation(uint64, int64, string) {
	c.allocs++
}

func (c *countingTracker) TrackDeallocation(uint64, string) {
	c.deallocs++
}

func TestFloatRoundTrip(t *testing.T) {
	data := []float32{0, 0.1, 0.2, 0.3, 0.4, 0.5}
	mat, err := NewMatFromFloats(1, 2, 3, data, nil, "rgb")
	if err != nil {
		t.Fatalf("NewMatFromFloats() error = %v", err)
	}
	defer mat.Close()

	// The Mat must not alias the caller's slice.
	data[0] = 9

	got, err := mat.ToFloats()
	if err != nil {
		t.Fatalf("ToFloats() error = %v", err)
	}
	want := []float32{0, 0.1, 0.2, 0.3, 0.4, 0.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToFloats() mismatch (-want +got):\n%s", diff)
	}
	if err := ValidateFloatMat(mat, 3, "test"); err != nil {
		t.Errorf("ValidateFloatMat() error = %v", err)
	}
	if err := ValidateFloatMat(mat, 1, "test"); err == nil {
		t.Error("ValidateFloatMat() accepted wrong channel count")
	}
}

func TestNewMatFromFloatsRejectsBadLength(t *testing.T) {
	if _, err := NewMatFromFloats(2, 2, 1, []float32{1, 2, 3}, nil, "short"); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := NewMatFromFloats(2, 2, 2, make([]float32, 8), nil, "two"); err == nil {
		t.Error("expected unsupported channel count error")
	}
}

func TestCloseReportsOnce(t *testing.T) {
	tracker := &countingTracker{}
	mat, err := NewMatFromFloats(1, 1, 1, []float32{0.5}, tracker, "one")
	if err != nil {
		t.Fatal(err)
	}

	mat.Close()
	mat.Close()

	if tracker.allocs != 1 || tracker.deallocs != 1 {
		t.Errorf("allocs/deallocs = %d/%d, want 1/1", tracker.allocs, tracker.deallocs)
	}
	if _, err := mat.ToFloats(); err == nil {
		t.Error("ToFloats() on closed Mat should fail")
	}
}

func TestMinMax(t *testing.T) {
	mat, err := NewMatFromFloats(2, 2, 1, []float32{0.3, -1, 2, 0}, nil, "mm")
	if err != nil {
		t.Fatal(err)
	}
	defer mat.Close()

	lo, hi, err := mat.MinMax()
	if err != nil {
		t.Fatalf("MinMax() error = %v", err)
	}
	if lo != -1 || hi != 2 {
		t.Errorf("MinMax() = (%v, %v), want (-1, 2)", lo, hi)
	}
}
