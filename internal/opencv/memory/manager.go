package memory

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"lympho-lens/internal/logger"
	"lympho-lens/internal/opencv/safe"
)

// Manager is the allocation ledger for one owner, normally a single pipeline
// run. Every Mat it hands out is tracked until closed or returned to a pool.
type Manager struct {
	pools       map[PoolKey]*shapePool
	allocations map[uint64]*AllocationRecord
	owned       map[uint64]*safe.Mat
	mu          sync.RWMutex
	stats       Stats
	log         logger.Logger
	name        string
}

type PoolKey struct {
	Rows    int
	Cols    int
	MatType gocv.MatType
}

type AllocationRecord struct {
	Tag       string
	CreatedAt time.Time
	Size      int64
}

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	PooledMats     int64
	PoolHits       int64
	PoolMisses     int64
	Untracked      int64
	MaxAllowed     int64
}

// DefaultMaxAllowed caps live bytes per manager.
const DefaultMaxAllowed = 512 * 1024 * 1024

const poolCapacity = 4

func NewManager(log logger.Logger, name string) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		pools:       make(map[PoolKey]*shapePool),
		allocations: make(map[uint64]*AllocationRecord),
		owned:       make(map[uint64]*safe.Mat),
		stats:       Stats{MaxAllowed: DefaultMaxAllowed},
		log:         log,
		name:        name,
	}
}

// TrackAllocation implements safe.MemoryTracker.
func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocations[id] = &AllocationRecord{Tag: tag, CreatedAt: time.Now(), Size: size}
	m.stats.TotalAllocated += size
	m.stats.ActiveMats++
}

// TrackDeallocation implements safe.MemoryTracker.
func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.allocations[id]
	if !exists {
		m.stats.Untracked++
		return
	}

	delete(m.allocations, id)
	delete(m.owned, id)
	m.stats.TotalReleased += record.Size
	m.stats.ActiveMats--
}

func (m *Manager) checkLimit(size int64) error {
	live := m.stats.TotalAllocated - m.stats.TotalReleased
	if live+size > m.stats.MaxAllowed {
		return fmt.Errorf("memory limit exceeded: %d bytes live, %d requested", live, size)
	}
	return nil
}

// GetMat returns a Mat of the requested shape, reusing a pooled one when
// available. A reused Mat is zeroed.
func (m *Manager) GetMat(rows, cols int, matType gocv.MatType, tag string) (*safe.Mat, error) {
	key := PoolKey{Rows: rows, Cols: cols, MatType: matType}

	m.mu.Lock()
	if pool, exists := m.pools[key]; exists {
		if mat := pool.take(); mat != nil {
			m.stats.PoolHits++
			m.stats.PooledMats--
			m.stats.ActiveMats++
			m.mu.Unlock()
			return mat, nil
		}
	}
	m.stats.PoolMisses++
	err := m.checkLimit(int64(rows * cols * safe.MatTypeSize(matType)))
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	mat, err := safe.NewMatWithTracker(rows, cols, matType, m, tag)
	if err != nil {
		return nil, err
	}
	m.own(mat)
	return mat, nil
}

// FromFloats copies data into a tracked CV_32F Mat.
func (m *Manager) FromFloats(rows, cols, channels int, data []float32, tag string) (*safe.Mat, error) {
	m.mu.Lock()
	err := m.checkLimit(int64(len(data) * 4))
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	mat, err := safe.NewMatFromFloats(rows, cols, channels, data, m, tag)
	if err != nil {
		return nil, err
	}
	m.own(mat)
	return mat, nil
}

// Adopt tracks a Mat produced by a gocv call such as Split.
func (m *Manager) Adopt(mat gocv.Mat, tag string) (*safe.Mat, error) {
	sm, err := safe.Adopt(mat, m, tag)
	if err != nil {
		return nil, err
	}
	m.own(sm)
	return sm, nil
}

func (m *Manager) own(mat *safe.Mat) {
	m.mu.Lock()
	m.owned[mat.ID()] = mat
	m.mu.Unlock()
}

// ReleaseMat ends the caller's use of mat. It goes back to its shape pool,
// unreachable outside this manager until zeroed and reused, or is closed
// when the pool is full.
func (m *Manager) ReleaseMat(mat *safe.Mat) {
	if mat == nil || !mat.IsValid() {
		return
	}

	m.mu.Lock()
	if _, exists := m.allocations[mat.ID()]; !exists {
		m.mu.Unlock()
		m.log.Warning("MemoryManager", "releasing untracked Mat", map[string]interface{}{
			"manager": m.name,
			"tag":     mat.Tag(),
		})
		mat.Close()
		return
	}

	key := PoolKey{Rows: mat.Rows(), Cols: mat.Cols(), MatType: mat.Type()}
	pool, exists := m.pools[key]
	if !exists {
		pool = newShapePool(key, poolCapacity)
		m.pools[key] = pool
	}

	if pool.put(mat) {
		m.stats.ActiveMats--
		m.stats.PooledMats++
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	mat.Close()
}

func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stats
}

// Cleanup closes pooled Mats and every Mat still outstanding. The manager
// remains usable afterwards.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[PoolKey]*shapePool)
	stragglers := make([]*safe.Mat, 0, len(m.owned))
	for _, mat := range m.owned {
		stragglers = append(stragglers, mat)
	}
	m.mu.Unlock()

	// Close outside the lock: Close calls back into TrackDeallocation.
	pooled := 0
	for _, pool := range pools {
		for _, mat := range pool.drain() {
			if mat.IsValid() {
				pooled++
			}
			mat.Close()
		}
	}

	leaked := 0
	for _, mat := range stragglers {
		if mat.IsValid() {
			leaked++
		}
		mat.Close()
	}

	m.mu.Lock()
	m.stats.PooledMats = 0
	// Pooled Mats were not counted active; undo the decrement their close caused.
	m.stats.ActiveMats += int64(pooled)
	active := m.stats.ActiveMats
	m.mu.Unlock()

	fields := map[string]interface{}{
		"manager": m.name,
		"pooled":  pooled,
		"leaked":  leaked,
		"active":  active,
	}
	if leaked > 0 {
		m.log.Warning("MemoryManager", "closed outstanding Mats", fields)
		return
	}
	m.log.Debug("MemoryManager", "cleanup complete", fields)
}
