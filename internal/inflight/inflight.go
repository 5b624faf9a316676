package inflight

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/slok/sessionbox/internal/model"
)

type entry struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Int64
}

// Tracker tracks the in-flight operations of sessions, so teardown can cancel them
// and wait until they finish before reclaiming the session resources.
//
// An ID must be opened before operations can be acquired on it, once closed it
// can't be acquired again.
type Tracker struct {
	entries map[string]*entry
	mu      sync.Mutex
}

// NewTracker returns a new tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: map[string]*entry{},
	}
}

// Open starts tracking an ID.
func (t *Tracker) Open(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; ok {
		return fmt.Errorf("tracker entry %s: %w", id, model.ErrAlreadyExists)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.entries[id] = &entry{ctx: ctx, cancel: cancel}

	return nil
}

// Acquire registers a new in-flight operation on the ID. The returned context is
// cancelled when the parent is done or when the ID is closed. The release function
// must be called once the operation ends, it's safe to call it multiple times.
func (t *Tracker) Acquire(ctx context.Context, id string) (context.Context, func(), error) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return nil, nil, fmt.Errorf("tracker entry %s: %w", id, model.ErrNotFound)
	}
	e.wg.Add(1)
	e.running.Add(1)
	t.mu.Unlock()

	opCtx, opCancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, opCancel)

	var once sync.Once
	release := func() {
		once.Do(func() {
			stop()
			opCancel()
			e.running.Add(-1)
			e.wg.Done()
		})
	}

	return opCtx, release, nil
}

// Close stops tracking an ID, cancels its in-flight operations and waits until all
// of them have been released or ctx is done. Returns false if the ID was not tracked.
func (t *Tracker) Close(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return false, nil
	}

	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true, nil
	case <-ctx.Done():
		return true, fmt.Errorf("waiting for in-flight operations on %s: %w", id, ctx.Err())
	}
}

// InFlight returns the number of in-flight operations on an ID.
func (t *Tracker) InFlight(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return 0
	}
	return int(e.running.Load())
}
