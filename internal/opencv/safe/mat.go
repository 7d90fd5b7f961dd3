package safe

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"gocv.io/x/gocv"
)

// MemoryTracker interface to avoid import cycles
type MemoryTracker interface {
	TrackAllocation(id uint64, size int64, tag string)
	TrackDeallocation(id uint64, tag string)
}

// Mat owns one gocv.Mat. Close is idempotent and reports the release to the
// tracker exactly once.
type Mat struct {
	mat        gocv.Mat
	isValid    int32
	mu         sync.RWMutex
	id         uint64
	memTracker MemoryTracker
	tag        string
}

var nextMatID uint64

func NewMatWithTracker(rows, cols int, matType gocv.MatType, memTracker MemoryTracker, tag string) (*Mat, error) {
	if err := ValidateDimensions(cols, rows, tag); err != nil {
		return nil, err
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}

	return wrap(mat, memTracker, tag), nil
}

// NewMatFromFloats copies HWC float data into a CV_32F Mat with the given
// channel count.
func NewMatFromFloats(rows, cols, channels int, data []float32, memTracker MemoryTracker, tag string) (*Mat, error) {
	if err := ValidateDimensions(cols, rows, tag); err != nil {
		return nil, err
	}

	if len(data) != rows*cols*channels {
		return nil, fmt.Errorf("float data length %d does not match %dx%dx%d", len(data), rows, cols, channels)
	}

	matType, err := floatMatType(channels)
	if err != nil {
		return nil, err
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
	view, err := gocv.NewMatFromBytes(rows, cols, matType, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap float data: %w", err)
	}
	defer view.Close()

	// Detach from Go memory so the Mat outlives data.
	owned := view.Clone()
	if owned.Empty() {
		owned.Close()
		return nil, fmt.Errorf("failed to clone float Mat")
	}

	return wrap(owned, memTracker, tag), nil
}

// Adopt takes ownership of mat without copying it.
func Adopt(mat gocv.Mat, memTracker MemoryTracker, tag string) (*Mat, error) {
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("cannot adopt empty Mat %q", tag)
	}
	return wrap(mat, memTracker, tag), nil
}

func wrap(mat gocv.Mat, memTracker MemoryTracker, tag string) *Mat {
	safeMat := &Mat{
		mat:        mat,
		isValid:    1,
		id:         atomic.AddUint64(&nextMatID, 1),
		memTracker: memTracker,
		tag:        tag,
	}

	if memTracker != nil {
		size := int64(mat.Rows() * mat.Cols() * MatTypeSize(mat.Type()))
		memTracker.TrackAllocation(safeMat.id, size, tag)
	}

	// Set finalizer for cleanup if Close() is not called
	runtime.SetFinalizer(safeMat, (*Mat).finalize)

	return safeMat
}

func (sm *Mat) IsValid() bool {
	return atomic.LoadInt32(&sm.isValid) == 1
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return true
	}

	return sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Cols()
}

func (sm *Mat) Channels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}

	return sm.mat.Type()
}

func (sm *Mat) Tag() string {
	return sm.tag
}

// ToFloats materializes a continuous CV_32F Mat into a plain slice that
// stays valid after Close.
func (sm *Mat) ToFloats() ([]float32, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("Mat %q is invalid", sm.tag)
	}

	view, err := sm.mat.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("Mat %q float access failed: %w", sm.tag, err)
	}

	out := make([]float32, len(view))
	copy(out, view)
	return out, nil
}

// MinMax returns the global minimum and maximum of a single-channel Mat.
func (sm *Mat) MinMax() (float32, float32, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0, 0, fmt.Errorf("Mat %q is invalid", sm.tag)
	}

	if sm.mat.Channels() != 1 {
		return 0, 0, fmt.Errorf("MinMax needs 1 channel, Mat %q has %d", sm.tag, sm.mat.Channels())
	}

	minVal, maxVal, _, _ := gocv.MinMaxLoc(sm.mat)
	return minVal, maxVal, nil
}

func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.mat
}

// GetMatPtr exposes the underlying Mat as a destination for gocv operations.
func (sm *Mat) GetMatPtr() *gocv.Mat {
	return &sm.mat
}

func (sm *Mat) ID() uint64 {
	return sm.id
}

func (sm *Mat) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		if sm.memTracker != nil {
			sm.memTracker.TrackDeallocation(sm.id, sm.tag)
		}

		sm.mat.Close()

		// Clear finalizer since we're cleaning up manually
		runtime.SetFinalizer(sm, nil)
	}
}

// finalize is called by Go's garbage collector as last resort cleanup
func (sm *Mat) finalize() {
	if atomic.LoadInt32(&sm.isValid) == 1 {
		sm.Close()
	}
}

func floatMatType(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV32FC1, nil
	case 3:
		return gocv.MatTypeCV32FC3, nil
	case 4:
		return gocv.MatTypeCV32FC4, nil
	default:
		return 0, fmt.Errorf("unsupported float channel count: %d", channels)
	}
}

// MatTypeSize is the byte size of one element of matType.
func MatTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV32FC3:
		return 12
	case gocv.MatTypeCV32FC4:
		return 16
	default:
		return 1
	}
}
