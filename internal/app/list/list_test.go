package list_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/internal/app/list"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/storage/storagemock"
)

func TestServiceRun(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sessions := []model.Session{
		{ID: "s1", ExpiresAt: now.Add(time.Minute)},
		{ID: "s2", ExpiresAt: now.Add(time.Hour)},
		{ID: "s3", ExpiresAt: now.Add(10 * time.Minute)},
	}

	tests := map[string]struct {
		req         list.Request
		mock        func(mRepo *storagemock.MockRepository)
		expSessions []model.Session
		expErr      bool
	}{
		"Listing without filters should return all sessions.": {
			req: list.Request{},
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("ListSessions", mock.Anything).Once().Return(sessions, nil)
			},
			expSessions: sessions,
		},

		"Listing with an expiring filter should return only the sessions ending before the limit.": {
			req: list.Request{ExpiringWithin: 10 * time.Minute},
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("ListSessions", mock.Anything).Once().Return(sessions, nil)
			},
			expSessions: []model.Session{sessions[0], sessions[2]},
		},

		"Listing with no sessions should return an empty list.": {
			req: list.Request{},
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("ListSessions", mock.Anything).Once().Return([]model.Session{}, nil)
			},
			expSessions: []model.Session{},
		},

		"A repository error should fail.": {
			req: list.Request{},
			mock: func(mRepo *storagemock.MockRepository) {
				mRepo.On("ListSessions", mock.Anything).Once().Return(nil, errors.New("something"))
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			mRepo := storagemock.NewMockRepository(t)
			test.mock(mRepo)

			svc, err := list.NewService(list.ServiceConfig{
				Repository: mRepo,
				TimeNow:    func() time.Time { return now },
			})
			require.NoError(t, err)

			gotSessions, err := svc.Run(context.Background(), test.req)
			if test.expErr {
				assert.Error(t, err)
			} else if assert.NoError(t, err) {
				assert.Equal(t, test.expSessions, gotSessions)
			}
		})
	}
}
