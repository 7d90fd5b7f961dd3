package transition

import (
	"sort"
	"sync"
	"time"
)

// FrameID identifies a requested frame callback. Zero is never issued.
type FrameID uint64

// Scheduler is the clock that drives animations. A cancelled frame's
// callback is not invoked unless it had already started.
type Scheduler interface {
	Now() time.Time
	RequestFrame(fn func(now time.Time)) FrameID
	CancelFrame(id FrameID)
}

// TickerScheduler fires each requested frame once after a fixed interval
// of wall-clock time.
type TickerScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	nextID FrameID
	timers map[FrameID]*time.Timer
}

func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &TickerScheduler{
		interval: interval,
		timers:   make(map[FrameID]*time.Timer),
	}
}

func (s *TickerScheduler) Now() time.Time {
	return time.Now()
}

func (s *TickerScheduler) RequestFrame(fn func(now time.Time)) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.timers[id] = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()

		if live {
			fn(time.Now())
		}
	})
	return id
}

func (s *TickerScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Stop cancels every pending frame.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// ManualScheduler is a virtual clock. Frames fire only from Advance, in
// due order, each seeing its own due time as now.
type ManualScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	now    time.Time
	nextID FrameID
	frames map[FrameID]manualFrame
}

type manualFrame struct {
	due time.Time
	fn  func(time.Time)
}

func NewManualScheduler(start time.Time, interval time.Duration) *ManualScheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &ManualScheduler{
		interval: interval,
		now:      start,
		frames:   make(map[FrameID]manualFrame),
	}
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) RequestFrame(fn func(now time.Time)) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.frames[s.nextID] = manualFrame{due: s.now.Add(s.interval), fn: fn}
	return s.nextID
}

func (s *ManualScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.frames, id)
}

// Pending reports how many frames are waiting.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Advance moves the clock forward by d, firing every frame that falls due
// on the way, including frames requested by callbacks during the advance.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		id, frame, ok := s.earliestDue(target)
		if !ok {
			s.now = target
			s.mu.Unlock()
			return
		}
		delete(s.frames, id)
		s.now = frame.due
		s.mu.Unlock()

		frame.fn(frame.due)
	}
}

func (s *ManualScheduler) earliestDue(limit time.Time) (FrameID, manualFrame, bool) {
	ids := make([]FrameID, 0, len(s.frames))
	for id, f := range s.frames {
		if !f.due.After(limit) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, manualFrame{}, false
	}

	sort.Slice(ids, func(i, j int) bool {
		a, b := s.frames[ids[i]], s.frames[ids[j]]
		if a.due.Equal(b.due) {
			return ids[i] < ids[j]
		}
		return a.due.Before(b.due)
	})
	return ids[0], s.frames[ids[0]], true
}
