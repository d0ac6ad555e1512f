package editor

import (
	"sync"
	"time"
)

// Debounce windows and retry intervals, mirroring the browser timings the
// editor behavior is defined against.
const (
	ResizeDebounce   = 800 * time.Millisecond
	RescaleDebounce  = 1000 * time.Millisecond
	PrintSettleDelay = 800 * time.Millisecond
	BlurResolveDelay = 100 * time.Millisecond
	MountRetryDelay  = 100 * time.Millisecond
	ReinitRetryDelay = 200 * time.Millisecond
	ReinitAttempts   = 15
)

// Scheduler owns every timer the editor creates so they can be cancelled
// and rescheduled as a unit. Within one slot only the last scheduled task
// fires; scheduling cancels the previous timer.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Debounce schedules fn on the named slot, cancelling any pending task on
// the same slot.
func (s *Scheduler) Debounce(slot string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[slot]; ok {
		t.Stop()
	}
	s.timers[slot] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, slot)
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

// Cancel drops a pending task without running it.
func (s *Scheduler) Cancel(slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[slot]; ok {
		t.Stop()
		delete(s.timers, slot)
	}
}

// Pending reports whether the slot has a task waiting to fire.
func (s *Scheduler) Pending(slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[slot]
	return ok
}

// Retry runs fn up to attempts times, spaced by interval, stopping at the
// first nil error. It runs asynchronously; onGiveUp (optional) is called
// with the last error when every attempt failed.
func (s *Scheduler) Retry(attempts int, interval time.Duration, fn func() error, onGiveUp func(error)) {
	var attempt func(n int)
	attempt = func(n int) {
		err := fn()
		if err == nil {
			return
		}
		if n+1 >= attempts {
			if onGiveUp != nil {
				onGiveUp(err)
			}
			return
		}
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		time.AfterFunc(interval, func() { attempt(n + 1) })
	}
	go attempt(0)
}

// Stop cancels everything; the scheduler cannot be reused afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for slot, t := range s.timers {
		t.Stop()
		delete(s.timers, slot)
	}
}
