package exec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/internal/app/exec"
	"github.com/slok/sessionbox/internal/executor"
	"github.com/slok/sessionbox/internal/executor/executormock"
	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/storage/storagemock"
)

func testSession() *model.Session {
	return &model.Session{
		ID:                  "s1",
		Directory:           "/tmp/sessions/s1",
		PackageLibDirectory: "/tmp/sessions/s1/lib",
	}
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    exec.ServiceConfig
		expErr bool
	}{
		"Valid configuration should create service successfully": {
			cfg: exec.ServiceConfig{
				Executor:   &executormock.MockExecutor{},
				Repository: &storagemock.MockRepository{},
				Tracker:    inflight.NewTracker(),
			},
		},

		"Missing executor should fail": {
			cfg: exec.ServiceConfig{
				Repository: &storagemock.MockRepository{},
				Tracker:    inflight.NewTracker(),
			},
			expErr: true,
		},

		"Missing repository should fail": {
			cfg: exec.ServiceConfig{
				Executor: &executormock.MockExecutor{},
				Tracker:  inflight.NewTracker(),
			},
			expErr: true,
		},

		"Missing tracker should fail": {
			cfg: exec.ServiceConfig{
				Executor:   &executormock.MockExecutor{},
				Repository: &storagemock.MockRepository{},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := exec.NewService(test.cfg)
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
		req       exec.Request
		tracked   bool
		mock      func(mRepo *storagemock.MockRepository, mExec *executormock.MockExecutor)
		expResult *model.CommandResult
		expErr    error
	}{
		"Running a command should execute it in the session.": {
			req:     exec.Request{SessionID: "s1", Command: "echo", Args: []string{"hello"}},
			tracked: true,
			mock: func(mRepo *storagemock.MockRepository, mExec *executormock.MockExecutor) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(testSession(), nil)
				expCmd := executor.Command{Line: "echo", Args: []string{"hello"}}
				mExec.On("Execute", mock.Anything, *testSession(), expCmd).Once().Return(model.NewCommandResult("hello\n", "", 0), nil)
			},
			expResult: &model.CommandResult{Stdout: "hello\n"},
		},

		"A non zero exit should be returned as a result, not as an error.": {
			req:     exec.Request{SessionID: "s1", Command: "false", WorkingDir: "sub"},
			tracked: true,
			mock: func(mRepo *storagemock.MockRepository, mExec *executormock.MockExecutor) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(testSession(), nil)
				expCmd := executor.Command{Line: "false", Cwd: "sub"}
				mExec.On("Execute", mock.Anything, *testSession(), expCmd).Once().Return(model.NewCommandResult("", "", 1), nil)
			},
			expResult: &model.CommandResult{ExitCode: 1, Error: "Exited with code 1"},
		},

		"An empty command should fail.": {
			req:     exec.Request{SessionID: "s1"},
			tracked: true,
			mock:    func(mRepo *storagemock.MockRepository, mExec *executormock.MockExecutor) {},
			expErr:  model.ErrNotValid,
		},

		"An unknown session should fail without executing anything.": {
			req:     exec.Request{SessionID: "s1", Command: "echo"},
			tracked: true,
			mock: func(mRepo *storagemock.MockRepository, mExec *executormock.MockExecutor) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(nil, model.ErrNotFound)
			},
			expErr: model.ErrNotFound,
		},

		"A session being torn down should fail without executing anything.": {
			req:     exec.Request{SessionID: "s1", Command: "echo"},
			tracked: false,
			mock: func(mRepo *storagemock.MockRepository, mExec *executormock.MockExecutor) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(testSession(), nil)
			},
			expErr: model.ErrNotFound,
		},

		"A launch failure should be returned as an error.": {
			req:     exec.Request{SessionID: "s1", Command: "missing"},
			tracked: true,
			mock: func(mRepo *storagemock.MockRepository, mExec *executormock.MockExecutor) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(testSession(), nil)
				mExec.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Return(nil, &model.LaunchError{Cause: errors.New("not found")})
			},
			expErr: model.ErrLaunchFailed,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			mRepo := storagemock.NewMockRepository(t)
			mExec := executormock.NewMockExecutor(t)
			test.mock(mRepo, mExec)

			tracker := inflight.NewTracker()
			if test.tracked {
				require.NoError(t, tracker.Open("s1"))
			}

			svc, err := exec.NewService(exec.ServiceConfig{
				Executor:   mExec,
				Repository: mRepo,
				Tracker:    tracker,
			})
			require.NoError(t, err)

			gotResult, err := svc.Run(context.Background(), test.req)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else if assert.NoError(t, err) {
				assert.Equal(t, test.expResult, gotResult)
			}

			// Commands are always released.
			assert.Equal(t, 0, tracker.InFlight("s1"))
		})
	}
}

func TestServiceRunIsCancelledByTeardown(t *testing.T) {
	mRepo := storagemock.NewMockRepository(t)
	mRepo.On("GetSession", mock.Anything, "s1").Once().Return(testSession(), nil)

	started := make(chan struct{})
	mExec := executormock.NewMockExecutor(t)
	mExec.On("Execute", mock.Anything, mock.Anything, mock.Anything).Once().Return(
		func(ctx context.Context, _ model.Session, _ executor.Command) *model.CommandResult {
			close(started)
			<-ctx.Done()
			return model.NewCommandResult("", "", 137)
		},
		func(context.Context, model.Session, executor.Command) error { return nil },
	)

	tracker := inflight.NewTracker()
	require.NoError(t, tracker.Open("s1"))

	svc, err := exec.NewService(exec.ServiceConfig{Executor: mExec, Repository: mRepo, Tracker: tracker})
	require.NoError(t, err)

	type runRes struct {
		res *model.CommandResult
		err error
	}
	done := make(chan runRes, 1)
	go func() {
		res, err := svc.Run(context.Background(), exec.Request{SessionID: "s1", Command: "sleep", Args: []string{"100"}})
		done <- runRes{res: res, err: err}
	}()

	<-started
	closed, err := tracker.Close(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, closed)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, 137, got.res.ExitCode)
}
