package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slok/sessionbox/internal/log"
)

// Scheduler runs one-shot deadlines keyed by an ID.
type Scheduler interface {
	// Schedule runs fn once after d, unless cancelled. Scheduling an ID that already has
	// a pending deadline replaces it. Returns [ErrStopped] after Stop.
	Schedule(id string, d time.Duration, fn func()) error
	// Cancel cancels a pending deadline. Returns false if there was nothing to cancel
	// (never scheduled, already cancelled or already fired).
	Cancel(id string) bool
	// Pending returns the number of deadlines that have not fired nor been cancelled.
	Pending() int
	// Stop cancels all the pending deadlines, after stopping, Schedule fails.
	Stop()
}

// ErrStopped is returned when scheduling on a stopped scheduler.
var ErrStopped = errors.New("scheduler stopped")

//go:generate mockery --case underscore --output schedulermock --outpkg schedulermock --name Scheduler

// TimerSchedulerConfig is the configuration for the timer scheduler.
type TimerSchedulerConfig struct {
	Logger log.Logger
}

func (c *TimerSchedulerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "scheduler.Timer"})
	return nil
}

type entry struct {
	timer *time.Timer
	// seq disambiguates a fired timer from a newer entry with the same ID.
	seq uint64
}

// TimerScheduler is a Scheduler based on runtime timers.
type TimerScheduler struct {
	entries map[string]entry
	seq     uint64
	stopped bool
	mu      sync.Mutex
	logger  log.Logger
}

// NewTimerScheduler returns a new timer based scheduler.
func NewTimerScheduler(cfg TimerSchedulerConfig) (*TimerScheduler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TimerScheduler{
		entries: map[string]entry{},
		logger:  cfg.Logger,
	}, nil
}

// Schedule satisfies Scheduler interface.
func (s *TimerScheduler) Schedule(id string, d time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("could not schedule deadline for %s: %w", id, ErrStopped)
	}

	if old, ok := s.entries[id]; ok {
		old.timer.Stop()
	}

	s.seq++
	seq := s.seq
	t := time.AfterFunc(d, func() {
		// Only the owner of the current entry can fire, a cancelled or replaced entry
		// that raced with its timer is ignored.
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok || e.seq != seq {
			s.mu.Unlock()
			return
		}
		delete(s.entries, id)
		s.mu.Unlock()

		s.logger.Debugf("Deadline reached for %s", id)
		fn()
	})
	s.entries[id] = entry{timer: t, seq: seq}

	return nil
}

// Cancel satisfies Scheduler interface.
func (s *TimerScheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, id)

	return true
}

// Pending satisfies Scheduler interface.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop satisfies Scheduler interface.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}
	s.stopped = true
}
