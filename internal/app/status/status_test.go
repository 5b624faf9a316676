package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/internal/app/status"
	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/storage/storagemock"
)

func TestServiceRun(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := map[string]struct {
		running   int
		mock      func(mRepo *storagemock.MockRepository)
		expResult *status.Result
		expErr    error
	}{
		"Getting the status should return the remaining lease and running commands.": {
			running: 2,
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(&model.Session{ID: "s1", ExpiresAt: now.Add(5 * time.Minute)}, nil)
			},
			expResult: &status.Result{
				Session:         model.Session{ID: "s1", ExpiresAt: now.Add(5 * time.Minute)},
				Remaining:       5 * time.Minute,
				RunningCommands: 2,
			},
		},

		"An already expired lease should have no remaining time.": {
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(&model.Session{ID: "s1", ExpiresAt: now.Add(-time.Second)}, nil)
			},
			expResult: &status.Result{
				Session: model.Session{ID: "s1", ExpiresAt: now.Add(-time.Second)},
			},
		},

		"An unknown session should fail.": {
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("GetSession", mock.Anything, "s1").Once().Return(nil, model.ErrNotFound)
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			mRepo := storagemock.NewMockRepository(t)
			test.mock(mRepo)

			tracker := inflight.NewTracker()
			require.NoError(t, tracker.Open("s1"))
			for range test.running {
				_, release, err := tracker.Acquire(context.Background(), "s1")
				require.NoError(t, err)
				t.Cleanup(release)
			}

			svc, err := status.NewService(status.ServiceConfig{
				Repository: mRepo,
				Tracker:    tracker,
				TimeNow:    func() time.Time { return now },
			})
			require.NoError(t, err)

			gotResult, err := svc.Run(context.Background(), status.Request{SessionID: "s1"})
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else if assert.NoError(t, err) {
				assert.Equal(t, test.expResult, gotResult)
			}
		})
	}
}
