package watchdog

import (
	"sync"
	"time"

	"shardfall/internal/logger"
)

// Scheduler runs submitted tasks on their own goroutines, fire-and-forget.
// Callers never observe a task's outcome; a panicking task is logged and
// absorbed so it cannot take the submitting path down with it.
type Scheduler struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewScheduler creates a scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Submit runs task on a new goroutine. Tasks submitted after Close are
// dropped.
func (s *Scheduler) Submit(task func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("detached task panicked", "panic", r)
			}
		}()

		task()
	}()
}

// Close stops accepting tasks and waits for in-flight ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
}

// Watchdog is a re-armable one-shot timeout. Arm schedules the expiry
// callback; re-arming or disarming before expiry cancels the previous
// schedule. The fallback path re-arms it after every accepted block so a
// stalled next round still gets detected.
type Watchdog struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64 // generation guards against a stale timer firing
}

// NewWatchdog creates a disarmed watchdog.
func NewWatchdog() *Watchdog {
	return &Watchdog{}
}

// Arm schedules onExpire to run once after d, replacing any previous
// schedule. onExpire runs on the timer's goroutine.
func (w *Watchdog) Arm(d time.Duration, onExpire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.gen++
	gen := w.gen

	w.timer = time.AfterFunc(d, func() {
		w.mu.Lock()
		stale := w.gen != gen
		w.mu.Unlock()

		if stale {
			return
		}

		onExpire()
	})
}

// Disarm cancels any pending expiry.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	w.gen++
}
