package remove

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/scheduler"
	"github.com/slok/sessionbox/internal/storage"
)

// ServiceConfig is the configuration for the remove service.
type ServiceConfig struct {
	Repository storage.Repository
	Scheduler  scheduler.Scheduler
	Tracker    *inflight.Tracker
	// DrainTimeout is the max time waiting for the in-flight commands of the session to
	// finish after cancelling them.
	DrainTimeout time.Duration
	// RemoveAll removes the session directory, defaults to os.RemoveAll.
	RemoveAll func(path string) error
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Scheduler == nil {
		return fmt.Errorf("scheduler is required")
	}

	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}

	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}

	if c.RemoveAll == nil {
		c.RemoveAll = os.RemoveAll
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Remove"})

	return nil
}

// Service tears down sessions.
type Service struct {
	repo         storage.Repository
	scheduler    scheduler.Scheduler
	tracker      *inflight.Tracker
	drainTimeout time.Duration
	removeAll    func(path string) error
	logger       log.Logger
}

// NewService creates a new remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:         cfg.Repository,
		scheduler:    cfg.Scheduler,
		tracker:      cfg.Tracker,
		drainTimeout: cfg.DrainTimeout,
		removeAll:    cfg.RemoveAll,
		logger:       cfg.Logger,
	}, nil
}

// Request represents the remove request parameters.
type Request struct {
	SessionID string
}

// Result is the result of a remove.
type Result struct {
	// Removed is false when the session didn't exist (never created or already removed).
	Removed bool
}

// Run tears down a session. It's idempotent and never fails: unknown sessions are ignored
// and cleanup failures are only logged.
//
// Once the session is unregistered the in-flight commands of the session are cancelled
// and waited (up to the drain timeout) before deleting the session directory.
func (s *Service) Run(ctx context.Context, req Request) Result {
	logger := s.logger.WithCtxValues(ctx).WithValues(log.Kv{"session-id": req.SessionID})

	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			logger.Errorf("Could not get session: %s", err)
		}
		return Result{}
	}

	// Cancel the deadline first so an expiry can't fire for an already removed session.
	s.scheduler.Cancel(session.ID)

	// Unregister before deleting anything, so no new commands can be dispatched.
	if err := s.repo.DeleteSession(ctx, session.ID); err != nil {
		// Someone else removed it concurrently, they own the cleanup.
		if !errors.Is(err, model.ErrNotFound) {
			logger.Errorf("Could not delete session from repository: %s", err)
		}
		return Result{}
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drainTimeout)
	defer cancel()
	if _, err := s.tracker.Close(drainCtx, session.ID); err != nil {
		logger.Warningf("In-flight commands didn't finish, removing directory anyway: %s", err)
	}

	if err := s.removeAll(session.Directory); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Errorf("Could not remove session directory %s: %s", session.Directory, err)
	}

	logger.Infof("Removed session: %s", session.ID)
	return Result{Removed: true}
}
