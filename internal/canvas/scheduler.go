package canvas

import (
	"context"
	"sync"
	"time"
)

// DefaultSyncDelay is the quiet period after an undo or redo before the
// board is reconciled with the server.
const DefaultSyncDelay = time.Second

// Scheduler debounces triggers into single-flight runs. Each Trigger re-arms
// the timer; only the latest arming fires. A timer that fires while a run is
// in progress is deferred and re-armed once the run completes.
type Scheduler struct {
	delay time.Duration
	run   func(ctx context.Context)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	armed    bool
	running  bool
	deferred bool
	stopped  bool
}

func NewScheduler(delay time.Duration, run func(ctx context.Context)) *Scheduler {
	if delay <= 0 {
		delay = DefaultSyncDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{delay: delay, run: run, ctx: ctx, cancel: cancel}
}

// Trigger (re)starts the debounce window.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked()
}

func (s *Scheduler) armLocked() {
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.armed = true
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.armed = false
	s.timer = nil
	if s.running {
		s.deferred = true
		s.mu.Unlock()
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.run(s.ctx)

	s.mu.Lock()
	s.running = false
	if s.deferred {
		s.deferred = false
		s.armLocked()
	}
	s.mu.Unlock()
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Idle reports that nothing is armed, deferred or running.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.armed && !s.running && !s.deferred
}

// Stop cancels the pending timer and the context of a run in progress, then
// waits for that run to return. Later triggers are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.armed = false
	s.deferred = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
