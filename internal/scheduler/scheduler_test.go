package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/internal/scheduler"
)

func newScheduler(t *testing.T) *scheduler.TimerScheduler {
	s, err := scheduler.NewTimerScheduler(scheduler.TimerSchedulerConfig{})
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func TestTimerSchedulerFiresOnce(t *testing.T) {
	s := newScheduler(t)

	var calls atomic.Int32
	require.NoError(t, s.Schedule("s1", 10*time.Millisecond, func() { calls.Add(1) }))
	assert.Equal(t, 1, s.Pending())

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, s.Pending())
	assert.False(t, s.Cancel("s1"), "cancelling a fired deadline should report nothing cancelled")
}

func TestTimerSchedulerCancel(t *testing.T) {
	s := newScheduler(t)

	var calls atomic.Int32
	s.Schedule("s1", 20*time.Millisecond, func() { calls.Add(1) })

	assert.True(t, s.Cancel("s1"))
	assert.False(t, s.Cancel("s1"))
	assert.False(t, s.Cancel("unknown"))
	assert.Equal(t, 0, s.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTimerSchedulerReplace(t *testing.T) {
	s := newScheduler(t)

	var first, second atomic.Int32
	s.Schedule("s1", 20*time.Millisecond, func() { first.Add(1) })
	s.Schedule("s1", 40*time.Millisecond, func() { second.Add(1) })
	assert.Equal(t, 1, s.Pending())

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestTimerSchedulerIsNotResetByOtherEntries(t *testing.T) {
	s := newScheduler(t)

	fired := make(chan string, 2)
	s.Schedule("s1", 10*time.Millisecond, func() { fired <- "s1" })
	s.Schedule("s2", 200*time.Millisecond, func() { fired <- "s2" })

	select {
	case id := <-fired:
		assert.Equal(t, "s1", id)
	case <-time.After(time.Second):
		t.Fatal("deadline didn't fire")
	}
	assert.Equal(t, 1, s.Pending())
}

func TestTimerSchedulerStop(t *testing.T) {
	s := newScheduler(t)

	var calls atomic.Int32
	require.NoError(t, s.Schedule("s1", 10*time.Millisecond, func() { calls.Add(1) }))
	s.Stop()
	err := s.Schedule("s2", 10*time.Millisecond, func() { calls.Add(1) })
	assert.ErrorIs(t, err, scheduler.ErrStopped)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 0, s.Pending())
}
