package inflight_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/model"
)

func TestTrackerAcquireUnknown(t *testing.T) {
	tr := inflight.NewTracker()

	_, _, err := tr.Acquire(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTrackerOpenTwice(t *testing.T) {
	tr := inflight.NewTracker()

	require.NoError(t, tr.Open("s1"))
	assert.ErrorIs(t, tr.Open("s1"), model.ErrAlreadyExists)
}

func TestTrackerCloseCancelsAndWaits(t *testing.T) {
	tr := inflight.NewTracker()
	require.NoError(t, tr.Open("s1"))

	opCtx, release, err := tr.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.InFlight("s1"))

	released := make(chan struct{})
	go func() {
		<-opCtx.Done()
		time.Sleep(20 * time.Millisecond)
		release()
		close(released)
	}()

	closed, err := tr.Close(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, closed)

	select {
	case <-released:
	default:
		t.Fatal("close returned before the in-flight operation was released")
	}

	_, _, err = tr.Acquire(context.Background(), "s1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	closed, err = tr.Close(context.Background(), "s1")
	assert.NoError(t, err)
	assert.False(t, closed)
}

func TestTrackerCloseTimeout(t *testing.T) {
	tr := inflight.NewTracker()
	require.NoError(t, tr.Open("s1"))

	_, release, err := tr.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	closed, err := tr.Close(ctx, "s1")
	assert.True(t, closed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTrackerReleaseIsIdempotent(t *testing.T) {
	tr := inflight.NewTracker()
	require.NoError(t, tr.Open("s1"))

	opCtx, release, err := tr.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	release()
	release()

	assert.Error(t, opCtx.Err())
	assert.Equal(t, 0, tr.InFlight("s1"))

	closed, err := tr.Close(context.Background(), "s1")
	assert.NoError(t, err)
	assert.True(t, closed)
}

func TestTrackerParentCancellation(t *testing.T) {
	tr := inflight.NewTracker()
	require.NoError(t, tr.Open("s1"))

	parent, cancel := context.WithCancel(context.Background())
	opCtx, release, err := tr.Acquire(parent, "s1")
	require.NoError(t, err)
	defer release()

	cancel()
	assert.Error(t, opCtx.Err())
	assert.Equal(t, 1, tr.InFlight("s1"), "parent cancellation should not release the operation")
}
