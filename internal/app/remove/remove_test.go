package remove_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/internal/app/remove"
	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/scheduler/schedulermock"
	"github.com/slok/sessionbox/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    remove.ServiceConfig
		expErr bool
	}{
		"Valid configuration should create service successfully": {
			cfg: remove.ServiceConfig{
				Repository: &storagemock.MockRepository{},
				Scheduler:  &schedulermock.MockScheduler{},
				Tracker:    inflight.NewTracker(),
			},
		},

		"Missing repository should fail": {
			cfg: remove.ServiceConfig{
				Scheduler: &schedulermock.MockScheduler{},
				Tracker:   inflight.NewTracker(),
			},
			expErr: true,
		},

		"Missing scheduler should fail": {
			cfg: remove.ServiceConfig{
				Repository: &storagemock.MockRepository{},
				Tracker:    inflight.NewTracker(),
			},
			expErr: true,
		},

		"Missing tracker should fail": {
			cfg: remove.ServiceConfig{
				Repository: &storagemock.MockRepository{},
				Scheduler:  &schedulermock.MockScheduler{},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := remove.NewService(test.cfg)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		createDir bool
		removeErr error
		mock      func(dir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler)
		expResult remove.Result
		expDir    bool
	}{
		"Removing a session should cancel its lease, unregister it and delete its directory.": {
			createDir: true,
			mock: func(dir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(&model.Session{ID: "s1", Directory: dir}, nil)
				mSched.On("Cancel", "s1").Once().Return(true)
				mRepo.On("DeleteSession", mock.Anything, "s1").Once().Return(nil)
			},
			expResult: remove.Result{Removed: true},
			expDir:    false,
		},

		"Removing an unknown session should be a no-op.": {
			createDir: true,
			mock: func(dir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(nil, model.ErrNotFound)
			},
			expResult: remove.Result{},
			expDir:    true,
		},

		"Failing to get the session should be a no-op.": {
			createDir: true,
			mock: func(dir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(nil, errors.New("something"))
			},
			expResult: remove.Result{},
			expDir:    true,
		},

		"Losing the unregister race should leave the cleanup to the winner.": {
			createDir: true,
			mock: func(dir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(&model.Session{ID: "s1", Directory: dir}, nil)
				mSched.On("Cancel", "s1").Once().Return(false)
				mRepo.On("DeleteSession", mock.Anything, "s1").Once().Return(model.ErrNotFound)
			},
			expResult: remove.Result{},
			expDir:    true,
		},

		"A missing session directory should not fail the removal.": {
			createDir: false,
			mock: func(dir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(&model.Session{ID: "s1", Directory: dir}, nil)
				mSched.On("Cancel", "s1").Once().Return(false)
				mRepo.On("DeleteSession", mock.Anything, "s1").Once().Return(nil)
			},
			expResult: remove.Result{Removed: true},
			expDir:    false,
		},

		"A directory removal error should be ignored.": {
			createDir: true,
			removeErr: errors.New("permission denied"),
			mock: func(dir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(&model.Session{ID: "s1", Directory: dir}, nil)
				mSched.On("Cancel", "s1").Once().Return(true)
				mRepo.On("DeleteSession", mock.Anything, "s1").Once().Return(nil)
			},
			expResult: remove.Result{Removed: true},
			expDir:    true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "s1")
			if test.createDir {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("data"), 0o644))
			}

			mRepo := storagemock.NewMockRepository(t)
			mSched := schedulermock.NewMockScheduler(t)
			test.mock(dir, mRepo, mSched)

			var removeAll func(string) error
			if test.removeErr != nil {
				removeAll = func(string) error { return test.removeErr }
			}

			tracker := inflight.NewTracker()
			require.NoError(t, tracker.Open("s1"))

			svc, err := remove.NewService(remove.ServiceConfig{
				Repository: mRepo,
				Scheduler:  mSched,
				Tracker:    tracker,
				RemoveAll:  removeAll,
			})
			require.NoError(t, err)

			gotResult := svc.Run(context.Background(), remove.Request{SessionID: "s1"})
			assert.Equal(t, test.expResult, gotResult)

			_, statErr := os.Stat(dir)
			if test.expDir {
				assert.NoError(t, statErr)
			} else {
				assert.ErrorIs(t, statErr, os.ErrNotExist)
			}
		})
	}
}

func newDrainService(t *testing.T, dir string, tracker *inflight.Tracker, drainTimeout time.Duration) *remove.Service {
	mRepo := storagemock.NewMockRepository(t)
	mRepo.On("GetSession", mock.Anything, "s1").Once().Return(&model.Session{ID: "s1", Directory: dir}, nil)
	mRepo.On("DeleteSession", mock.Anything, "s1").Once().Return(nil)
	mSched := schedulermock.NewMockScheduler(t)
	mSched.On("Cancel", "s1").Once().Return(true)

	svc, err := remove.NewService(remove.ServiceConfig{
		Repository:   mRepo,
		Scheduler:    mSched,
		Tracker:      tracker,
		DrainTimeout: drainTimeout,
	})
	require.NoError(t, err)
	return svc
}

func TestServiceRunWaitsInFlightCommands(t *testing.T) {
	dir := t.TempDir()
	tracker := inflight.NewTracker()
	require.NoError(t, tracker.Open("s1"))

	ctx, release, err := tracker.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	// The command sees the cancellation and still writes to its directory before finishing.
	var wroteAfterCancel atomic.Bool
	go func() {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		if err := os.WriteFile(filepath.Join(dir, "out.txt"), []byte("x"), 0o644); err == nil {
			wroteAfterCancel.Store(true)
		}
		release()
	}()

	svc := newDrainService(t, dir, tracker, time.Second)
	gotResult := svc.Run(context.Background(), remove.Request{SessionID: "s1"})

	assert.Equal(t, remove.Result{Removed: true}, gotResult)
	assert.True(t, wroteAfterCancel.Load())
	_, statErr := os.Stat(dir)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestServiceRunDrainTimeout(t *testing.T) {
	dir := t.TempDir()
	tracker := inflight.NewTracker()
	require.NoError(t, tracker.Open("s1"))

	// Never released.
	_, _, err := tracker.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	svc := newDrainService(t, dir, tracker, 50*time.Millisecond)

	start := time.Now()
	gotResult := svc.Run(context.Background(), remove.Request{SessionID: "s1"})

	assert.Equal(t, remove.Result{Removed: true}, gotResult)
	assert.Less(t, time.Since(start), 5*time.Second)
	_, statErr := os.Stat(dir)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
