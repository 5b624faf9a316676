package create

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/policy"
	"github.com/slok/sessionbox/internal/scheduler"
	"github.com/slok/sessionbox/internal/storage"
)

// DefaultTimeout is the session lease used when none is requested.
const DefaultTimeout = time.Hour

// ExpireFunc tears down an expired session.
type ExpireFunc func(ctx context.Context, sessionID string)

// ServiceConfig is the configuration for the create service.
type ServiceConfig struct {
	Repository    storage.Repository
	Scheduler     scheduler.Scheduler
	Tracker       *inflight.Tracker
	PolicyBuilder *policy.Builder
	// OnExpire is called when the session lease ends.
	OnExpire ExpireFunc
	// SessionsDir is the directory where the session directories are created.
	SessionsDir string
	// RelaxedNestedSandbox marks the host as already confined.
	RelaxedNestedSandbox bool
	DefaultTimeout       time.Duration
	// IDGenerator generates the session IDs, defaults to ULIDs.
	IDGenerator func() string
	// TimeNow is used to get the current time, defaults to time.Now.
	TimeNow func() time.Time
	Logger  log.Logger
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

	if c.PolicyBuilder == nil {
		return fmt.Errorf("policy builder is required")
	}

	if c.OnExpire == nil {
		return fmt.Errorf("expire func is required")
	}

	if c.SessionsDir == "" {
		return fmt.Errorf("sessions dir is required")
	}
	dir, err := filepath.Abs(c.SessionsDir)
	if err != nil {
		return fmt.Errorf("invalid sessions dir: %w", err)
	}
	c.SessionsDir = dir

	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}

	if c.IDGenerator == nil {
		c.IDGenerator = func() string {
			return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}
	}

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Create"})

	return nil
}

// Service handles session creation.
type Service struct {
	repo           storage.Repository
	scheduler      scheduler.Scheduler
	tracker        *inflight.Tracker
	policyBuilder  *policy.Builder
	onExpire       ExpireFunc
	sessionsDir    string
	relaxed        bool
	defaultTimeout time.Duration
	idGenerator    func() string
	timeNow        func() time.Time
	logger         log.Logger
}

// NewService creates a new create service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:           cfg.Repository,
		scheduler:      cfg.Scheduler,
		tracker:        cfg.Tracker,
		policyBuilder:  cfg.PolicyBuilder,
		onExpire:       cfg.OnExpire,
		sessionsDir:    cfg.SessionsDir,
		relaxed:        cfg.RelaxedNestedSandbox,
		defaultTimeout: cfg.DefaultTimeout,
		idGenerator:    cfg.IDGenerator,
		timeNow:        cfg.TimeNow,
		logger:         cfg.Logger,
	}, nil
}

// Request contains the parameters for creating a session.
type Request struct {
	// Timeout is the session lease, when zero the default is used.
	Timeout time.Duration
}

// Create creates a new session and starts its lease. The lease is not extended by
// the session usage.
func (s *Service) Create(ctx context.Context, req Request) (*model.Session, error) {
	if req.Timeout < 0 {
		return nil, fmt.Errorf("timeout can't be negative: %w", model.ErrNotValid)
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.defaultTimeout
	}

	id := s.idGenerator()
	dir := conventions.SessionDir(s.sessionsDir, id)
	now := s.timeNow().UTC()
	session := model.Session{
		ID:                  id,
		Directory:           dir,
		PackageLibDirectory: conventions.SessionPackageLibDir(s.sessionsDir, id),
		Policy:              s.policyBuilder.Build(dir, s.relaxed),
		Timeout:             timeout,
		CreatedAt:           now,
		ExpiresAt:           now.Add(timeout),
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	// 1. Materialize the directories (pre-existing ones are fine, but they are not ours
	// to remove).
	created, err := makeSessionDirs(session)
	if err != nil {
		return nil, fmt.Errorf("could not create session directory: %w", err)
	}
	rb := rollback{session: session, removeDir: created}

	// 2. Register.
	if err := s.tracker.Open(id); err != nil {
		s.rollback(rb)
		return nil, fmt.Errorf("could not track session: %w", err)
	}
	rb.tracked = true

	if err := s.repo.CreateSession(ctx, session); err != nil {
		s.rollback(rb)
		return nil, fmt.Errorf("could not save session: %w", err)
	}
	rb.stored = true

	// 3. Start the lease.
	err = s.scheduler.Schedule(id, timeout, func() {
		ctx := s.logger.SetValuesOnCtx(context.Background(), log.Kv{"trigger": "expiry"})
		s.logger.Infof("Session lease expired: %s", id)
		s.onExpire(ctx, id)
	})
	if err != nil {
		s.rollback(rb)
		return nil, fmt.Errorf("could not start session lease: %w", err)
	}

	s.logger.Infof("Created session: %s (timeout: %s)", id, timeout)

	return &session, nil
}

// makeSessionDirs creates the session directories and reports if the session
// directory was created by this call.
func makeSessionDirs(session model.Session) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(session.Directory), 0o755); err != nil {
		return false, err
	}

	created := true
	if err := os.Mkdir(session.Directory, 0o755); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return false, err
		}
		created = false
	}

	if err := os.MkdirAll(session.PackageLibDirectory, 0o755); err != nil {
		if created {
			_ = os.RemoveAll(session.Directory)
		}
		return false, err
	}

	return created, nil
}

type rollback struct {
	session   model.Session
	removeDir bool
	tracked   bool
	stored    bool
}

func (s *Service) rollback(rb rollback) {
	if rb.stored {
		err := s.repo.DeleteSession(context.Background(), rb.session.ID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			s.logger.Warningf("Could not delete session on rollback: %s", err)
		}
	}

	if rb.tracked {
		if _, err := s.tracker.Close(context.Background(), rb.session.ID); err != nil {
			s.logger.Warningf("Could not close session tracking on rollback: %s", err)
		}
	}

	if !rb.removeDir {
		return
	}
	if err := os.RemoveAll(rb.session.Directory); err != nil {
		s.logger.Errorf("Could not remove session directory on rollback: %s", err)
	}
}
