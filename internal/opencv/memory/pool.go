package memory

import (
	"gocv.io/x/gocv"

	"lympho-lens/internal/opencv/safe"
)

// shapePool holds released Mats of a single shape until the next GetMat of
// that shape or the owning manager's Cleanup. It is guarded by the
// manager's lock.
type shapePool struct {
	key      PoolKey
	free     []*safe.Mat
	capacity int
}

func newShapePool(key PoolKey, capacity int) *shapePool {
	return &shapePool{
		key:      key,
		free:     make([]*safe.Mat, 0, capacity),
		capacity: capacity,
	}
}

// take pops the most recently released Mat and zeroes it. Mats closed while
// pooled are skipped.
func (p *shapePool) take() *safe.Mat {
	for len(p.free) > 0 {
		mat := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]

		if mat.IsValid() && !mat.Empty() {
			mat.GetMatPtr().SetTo(gocv.NewScalar(0, 0, 0, 0))
			return mat
		}
	}
	return nil
}

func (p *shapePool) put(mat *safe.Mat) bool {
	if len(p.free) >= p.capacity {
		return false
	}
	if mat.Rows() != p.key.Rows || mat.Cols() != p.key.Cols || mat.Type() != p.key.MatType {
		return false
	}

	p.free = append(p.free, mat)
	return true
}

// drain empties the pool and hands its Mats to the caller for closing.
func (p *shapePool) drain() []*safe.Mat {
	mats := p.free
	p.free = nil
	return mats
}
