package status

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/storage"
)

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	Repository storage.Repository
	Tracker    *inflight.Tracker
	// TimeNow is used to get the current time, defaults to time.Now.
	TimeNow func() time.Time
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Status"})

	return nil
}

// Service gets the status of a session.
type Service struct {
	repo    storage.Repository
	tracker *inflight.Tracker
	timeNow func() time.Time
	logger  log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		tracker: cfg.Tracker,
		timeNow: cfg.TimeNow,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	SessionID string
}

// Result is the status of a session.
type Result struct {
	Session model.Session
	// Remaining is the time left on the session lease.
	Remaining time.Duration
	// RunningCommands is the number of commands being executed in the session.
	RunningCommands int
}

// Run gets the status of a session.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("could not get session: %w", err)
	}

	remaining := session.ExpiresAt.Sub(s.timeNow())
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Session:         *session,
		Remaining:       remaining,
		RunningCommands: s.tracker.InFlight(session.ID),
	}, nil
}
