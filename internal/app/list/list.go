package list

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/storage"
)

// ServiceConfig is the configuration for the list service.
type ServiceConfig struct {
	Repository storage.Repository
	// TimeNow is used to get the current time, defaults to time.Now.
	TimeNow func() time.Time
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.List"})

	return nil
}

// Service lists live sessions with optional filtering.
type Service struct {
	repo    storage.Repository
	timeNow func() time.Time
	logger  log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		timeNow: cfg.TimeNow,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// ExpiringWithin is an optional filter to only show sessions whose lease ends
	// within this duration.
	ExpiringWithin time.Duration
}

// Run lists all live sessions, optionally filtered.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Session, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list sessions: %w", err)
	}

	if req.ExpiringWithin > 0 {
		limit := s.timeNow().Add(req.ExpiringWithin)
		filtered := make([]model.Session, 0, len(sessions))
		for _, ss := range sessions {
			if !ss.ExpiresAt.After(limit) {
				filtered = append(filtered, ss)
			}
		}
		sessions = filtered
	}

	s.logger.Debugf("found %d sessions", len(sessions))
	return sessions, nil
}
