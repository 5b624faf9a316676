package create_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/internal/app/create"
	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/policy"
	"github.com/slok/sessionbox/internal/scheduler"
	"github.com/slok/sessionbox/internal/scheduler/schedulermock"
	"github.com/slok/sessionbox/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	builder, err := policy.NewBuilder(policy.BuilderConfig{})
	require.NoError(t, err)
	onExpire := func(context.Context, string) {}

	tests := map[string]struct {
		cfg    create.ServiceConfig
		expErr bool
	}{
		"Valid configuration should create service successfully": {
			cfg: create.ServiceConfig{
				Repository:    &storagemock.MockRepository{},
				Scheduler:     &schedulermock.MockScheduler{},
				Tracker:       inflight.NewTracker(),
				PolicyBuilder: builder,
				OnExpire:      onExpire,
				SessionsDir:   "/tmp/sessions",
				Logger:        log.Noop,
			},
		},

		"Missing repository should fail": {
			cfg: create.ServiceConfig{
				Scheduler:     &schedulermock.MockScheduler{},
				Tracker:       inflight.NewTracker(),
				PolicyBuilder: builder,
				OnExpire:      onExpire,
				SessionsDir:   "/tmp/sessions",
			},
			expErr: true,
		},

		"Missing scheduler should fail": {
			cfg: create.ServiceConfig{
				Repository:    &storagemock.MockRepository{},
				Tracker:       inflight.NewTracker(),
				PolicyBuilder: builder,
				OnExpire:      onExpire,
				SessionsDir:   "/tmp/sessions",
			},
			expErr: true,
		},

		"Missing expire func should fail": {
			cfg: create.ServiceConfig{
				Repository:    &storagemock.MockRepository{},
				Scheduler:     &schedulermock.MockScheduler{},
				Tracker:       inflight.NewTracker(),
				PolicyBuilder: builder,
				SessionsDir:   "/tmp/sessions",
			},
			expErr: true,
		},

		"Missing sessions dir should fail": {
			cfg: create.ServiceConfig{
				Repository:    &storagemock.MockRepository{},
				Scheduler:     &schedulermock.MockScheduler{},
				Tracker:       inflight.NewTracker(),
				PolicyBuilder: builder,
				OnExpire:      onExpire,
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := create.NewService(test.cfg)
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

func TestServiceCreate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := map[string]struct {
		req        create.Request
		relaxed    bool
		mock       func(t *testing.T, sessionsDir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler)
		expSession func(sessionsDir string) *model.Session
		expErr     error
		expDirs    bool
	}{
		"Creating a session should create the dirs, store it and start the lease.": {
			req: create.Request{Timeout: 30 * time.Second},
			mock: func(t *testing.T, sessionsDir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("CreateSession", mock.Anything, mock.Anything).Once().Return(nil)
				mSched.On("Schedule", "s1", 30*time.Second, mock.Anything).Once().Return(nil)
			},
			expSession: func(sessionsDir string) *model.Session {
				dir := filepath.Join(sessionsDir, "s1")
				return &model.Session{
					ID:                  "s1",
					Directory:           dir,
					PackageLibDirectory: filepath.Join(dir, "lib"),
					Policy: model.SandboxPolicy{
						Network: model.NetworkPolicy{AllowedDomains: []string{"*"}, DeniedDomains: []string{}, AllowLocalBinding: true},
						Filesystem: model.FilesystemPolicy{
							AllowWrite: []string{dir, "/tmp"},
							DenyWrite:  []string{"~/.ssh", "/etc/shadow", "/etc/gshadow", "/etc/sudoers"},
							DenyRead:   []string{"~/.ssh", "/etc/shadow", "/etc/gshadow", "/etc/sudoers"},
						},
					},
					Timeout:   30 * time.Second,
					CreatedAt: now,
					ExpiresAt: now.Add(30 * time.Second),
				}
			},
			expDirs: true,
		},

		"Creating a session without timeout should use the default one hour lease.": {
			req:     create.Request{},
			relaxed: true,
			mock: func(t *testing.T, sessionsDir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("CreateSession", mock.Anything, mock.MatchedBy(func(s model.Session) bool {
					return s.Timeout == time.Hour && s.Policy.EnableWeakerNestedSandbox
				})).Once().Return(nil)
				mSched.On("Schedule", "s1", time.Hour, mock.Anything).Once().Return(nil)
			},
			expDirs: true,
		},

		"A negative timeout should fail.": {
			req:    create.Request{Timeout: -time.Second},
			mock:   func(t *testing.T, sessionsDir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {},
			expErr: model.ErrNotValid,
		},

		"Failing to store the session should roll back the directory and not start the lease.": {
			req: create.Request{Timeout: time.Minute},
			mock: func(t *testing.T, sessionsDir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("CreateSession", mock.Anything, mock.Anything).Once().Return(model.ErrAlreadyExists)
			},
			expErr:  model.ErrAlreadyExists,
			expDirs: false,
		},

		"Failing to start the lease should remove the stored session and the directory.": {
			req: create.Request{Timeout: time.Minute},
			mock: func(t *testing.T, sessionsDir string, mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("CreateSession", mock.Anything, mock.Anything).Once().Return(nil)
				mSched.On("Schedule", "s1", time.Minute, mock.Anything).Once().Return(scheduler.ErrStopped)
				mRepo.On("DeleteSession", mock.Anything, "s1").Once().Return(nil)
			},
			expErr:  scheduler.ErrStopped,
			expDirs: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sessionsDir := t.TempDir()
			mRepo := storagemock.NewMockRepository(t)
			mSched := schedulermock.NewMockScheduler(t)
			test.mock(t, sessionsDir, mRepo, mSched)

			builder, err := policy.NewBuilder(policy.BuilderConfig{})
			require.NoError(t, err)

			svc, err := create.NewService(create.ServiceConfig{
				Repository:           mRepo,
				Scheduler:            mSched,
				Tracker:              inflight.NewTracker(),
				PolicyBuilder:        builder,
				OnExpire:             func(context.Context, string) {},
				SessionsDir:          sessionsDir,
				RelaxedNestedSandbox: test.relaxed,
				IDGenerator:          func() string { return "s1" },
				TimeNow:              func() time.Time { return now },
			})
			require.NoError(t, err)

			gotSession, err := svc.Create(context.Background(), test.req)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else {
				require.NoError(t, err)
				if test.expSession != nil {
					assert.Equal(t, test.expSession(sessionsDir), gotSession)
				}
			}

			_, statErr := os.Stat(filepath.Join(sessionsDir, "s1", "lib"))
			if test.expDirs {
				assert.NoError(t, statErr)
			} else {
				assert.True(t, errors.Is(statErr, os.ErrNotExist))
			}
		})
	}
}

func TestServiceCreateExpiry(t *testing.T) {
	mRepo := storagemock.NewMockRepository(t)
	mRepo.On("CreateSession", mock.Anything, mock.Anything).Once().Return(nil)

	var deadline func()
	mSched := schedulermock.NewMockScheduler(t)
	mSched.On("Schedule", "s1", time.Minute, mock.Anything).Once().Run(func(args mock.Arguments) {
		deadline = args.Get(2).(func())
	}).Return(nil)

	builder, err := policy.NewBuilder(policy.BuilderConfig{})
	require.NoError(t, err)

	expired := []string{}
	svc, err := create.NewService(create.ServiceConfig{
		Repository:    mRepo,
		Scheduler:     mSched,
		Tracker:       inflight.NewTracker(),
		PolicyBuilder: builder,
		OnExpire:      func(_ context.Context, id string) { expired = append(expired, id) },
		SessionsDir:   t.TempDir(),
		IDGenerator:   func() string { return "s1" },
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), create.Request{Timeout: time.Minute})
	require.NoError(t, err)
	require.NotNil(t, deadline)

	deadline()
	assert.Equal(t, []string{"s1"}, expired)
}

func TestServiceCreatePreExistingDirectory(t *testing.T) {
	tests := map[string]struct {
		mock   func(mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler)
		expErr error
	}{
		"A pre-existing directory should be reused.": {
			mock: func(mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("CreateSession", mock.Anything, mock.Anything).Once().Return(nil)
				mSched.On("Schedule", "s1", mock.Anything, mock.Anything).Once().Return(nil)
			},
		},

		"A failed creation should not remove a directory it didn't create.": {
			mock: func(mRepo *storagemock.MockRepository, mSched *schedulermock.MockScheduler) {
				mRepo.On("CreateSession", mock.Anything, mock.Anything).Once().Return(model.ErrAlreadyExists)
			},
			expErr: model.ErrAlreadyExists,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sessionsDir := t.TempDir()
			marker := filepath.Join(sessionsDir, "s1", "data.txt")
			require.NoError(t, os.MkdirAll(filepath.Join(sessionsDir, "s1", "lib"), 0o755))
			require.NoError(t, os.WriteFile(marker, []byte("keep"), 0o644))

			mRepo := storagemock.NewMockRepository(t)
			mSched := schedulermock.NewMockScheduler(t)
			test.mock(mRepo, mSched)

			builder, err := policy.NewBuilder(policy.BuilderConfig{})
			require.NoError(t, err)

			svc, err := create.NewService(create.ServiceConfig{
				Repository:    mRepo,
				Scheduler:     mSched,
				Tracker:       inflight.NewTracker(),
				PolicyBuilder: builder,
				OnExpire:      func(context.Context, string) {},
				SessionsDir:   sessionsDir,
				IDGenerator:   func() string { return "s1" },
			})
			require.NoError(t, err)

			_, err = svc.Create(context.Background(), create.Request{})
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else {
				assert.NoError(t, err)
			}

			_, err = os.Stat(marker)
			assert.NoError(t, err)
		})
	}
}

func TestServiceCreateIDCollisionKeepsLiveSession(t *testing.T) {
	sessionsDir := t.TempDir()
	tracker := inflight.NewTracker()

	mRepo := storagemock.NewMockRepository(t)
	mRepo.On("CreateSession", mock.Anything, mock.Anything).Once().Return(nil)
	mSched := schedulermock.NewMockScheduler(t)
	mSched.On("Schedule", "s1", mock.Anything, mock.Anything).Once().Return(nil)

	builder, err := policy.NewBuilder(policy.BuilderConfig{})
	require.NoError(t, err)

	svc, err := create.NewService(create.ServiceConfig{
		Repository:    mRepo,
		Scheduler:     mSched,
		Tracker:       tracker,
		PolicyBuilder: builder,
		OnExpire:      func(context.Context, string) {},
		SessionsDir:   sessionsDir,
		IDGenerator:   func() string { return "s1" },
	})
	require.NoError(t, err)

	live, err := svc.Create(context.Background(), create.Request{})
	require.NoError(t, err)
	marker := filepath.Join(live.Directory, "data.txt")
	require.NoError(t, os.WriteFile(marker, []byte("keep"), 0o644))

	// Same ID again.
	_, err = svc.Create(context.Background(), create.Request{})
	assert.ErrorIs(t, err, model.ErrAlreadyExists)

	_, err = os.Stat(marker)
	assert.NoError(t, err)

	// The live session is still tracked.
	_, release, err := tracker.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	release()
}
