// Package scheduler runs delayed tasks keyed by entity id. Scheduling under
// an existing key replaces the pending task, so a manual reset can never race
// a respawn timer into firing twice.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Scheduler owns all pending timers. It satisfies the service worker
// contract: Start blocks until the context is cancelled, then stops every
// pending task.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func New() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
	}
}

// After schedules fn to run once after d. Any task already pending under key
// is cancelled and replaced. After a shutdown, calls are ignored.
func (s *Scheduler) After(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}

	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()

		fn()
	})
}

// Cancel stops any pending task under key. Returns true if one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, key)
	return true
}

// Pending returns the number of scheduled tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Start blocks until ctx is cancelled, then stops all pending timers.
func (s *Scheduler) Start(ctx context.Context) error {
	<-ctx.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	return nil
}
