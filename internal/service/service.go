package service

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slok/sessionbox/internal/app/create"
	"github.com/slok/sessionbox/internal/app/exec"
	"github.com/slok/sessionbox/internal/app/install"
	"github.com/slok/sessionbox/internal/app/list"
	"github.com/slok/sessionbox/internal/app/remove"
	"github.com/slok/sessionbox/internal/app/status"
	"github.com/slok/sessionbox/internal/executor"
	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/policy"
	"github.com/slok/sessionbox/internal/scheduler"
	"github.com/slok/sessionbox/internal/storage"
	"github.com/slok/sessionbox/internal/storage/memory"
)

// Service is the remote session sandbox contract.
type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error)
	RunCommand(ctx context.Context, req RunCommandRequest) (*CommandResponse, error)
	InstallPip(ctx context.Context, req InstallPipRequest) (*CommandResponse, error)
	InstallNpm(ctx context.Context, req InstallNpmRequest) (*CommandResponse, error)
	DestroySession(ctx context.Context, req DestroySessionRequest) (*DestroySessionResponse, error)
	ListSessions(ctx context.Context, req ListSessionsRequest) (*ListSessionsResponse, error)
	GetSession(ctx context.Context, req GetSessionRequest) (*GetSessionResponse, error)
}

// SandboxConfig is the configuration of the sandbox service.
type SandboxConfig struct {
	// SessionsDir is where the session directories are created.
	SessionsDir string
	Executor    executor.Executor
	// Repository defaults to an in-memory repository.
	Repository storage.Repository
	// Scheduler defaults to a timer scheduler.
	Scheduler scheduler.Scheduler
	// PolicyBuilder defaults to a builder without extra defaults.
	PolicyBuilder        *policy.Builder
	RelaxedNestedSandbox bool
	DefaultTimeout       time.Duration
	DrainTimeout         time.Duration
	PipBinary            string
	NpmBinary            string
	// ShutdownConcurrency is the number of sessions destroyed in parallel on close.
	ShutdownConcurrency int
	TimeNow             func() time.Time
	Logger              log.Logger
}

func (c *SandboxConfig) defaults() error {
	if c.SessionsDir == "" {
		return fmt.Errorf("sessions dir is required")
	}

	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	if c.Repository == nil {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create repository: %w", err)
		}
		c.Repository = repo
	}

	if c.Scheduler == nil {
		sched, err := scheduler.NewTimerScheduler(scheduler.TimerSchedulerConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create scheduler: %w", err)
		}
		c.Scheduler = sched
	}

	if c.PolicyBuilder == nil {
		b, err := policy.NewBuilder(policy.BuilderConfig{})
		if err != nil {
			return fmt.Errorf("could not create policy builder: %w", err)
		}
		c.PolicyBuilder = b
	}

	if c.ShutdownConcurrency <= 0 {
		c.ShutdownConcurrency = 8
	}

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	return nil
}

// Sandbox is the Service implementation that runs commands in local session directories.
type Sandbox struct {
	createSvc  *create.Service
	execSvc    *exec.Service
	installSvc *install.Service
	removeSvc  *remove.Service
	listSvc    *list.Service
	statusSvc  *status.Service

	repo                storage.Repository
	scheduler           scheduler.Scheduler
	shutdownConcurrency int
	closed              atomic.Bool
	logger              log.Logger
}

var _ Service = &Sandbox{}

// NewSandbox returns a new sandbox service.
func NewSandbox(cfg SandboxConfig) (*Sandbox, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tracker := inflight.NewTracker()

	removeSvc, err := remove.NewService(remove.ServiceConfig{
		Repository:   cfg.Repository,
		Scheduler:    cfg.Scheduler,
		Tracker:      tracker,
		DrainTimeout: cfg.DrainTimeout,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create remove service: %w", err)
	}

	createSvc, err := create.NewService(create.ServiceConfig{
		Repository:    cfg.Repository,
		Scheduler:     cfg.Scheduler,
		Tracker:       tracker,
		PolicyBuilder: cfg.PolicyBuilder,
		OnExpire: func(ctx context.Context, id string) {
			removeSvc.Run(ctx, remove.Request{SessionID: id})
		},
		SessionsDir:          cfg.SessionsDir,
		RelaxedNestedSandbox: cfg.RelaxedNestedSandbox,
		DefaultTimeout:       cfg.DefaultTimeout,
		TimeNow:              cfg.TimeNow,
		Logger:               cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create create service: %w", err)
	}

	execSvc, err := exec.NewService(exec.ServiceConfig{
		Executor:   cfg.Executor,
		Repository: cfg.Repository,
		Tracker:    tracker,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create exec service: %w", err)
	}

	installSvc, err := install.NewService(install.ServiceConfig{
		Runner:     execSvc,
		Repository: cfg.Repository,
		PipBinary:  cfg.PipBinary,
		NpmBinary:  cfg.NpmBinary,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create install service: %w", err)
	}

	listSvc, err := list.NewService(list.ServiceConfig{
		Repository: cfg.Repository,
		TimeNow:    cfg.TimeNow,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create list service: %w", err)
	}

	statusSvc, err := status.NewService(status.ServiceConfig{
		Repository: cfg.Repository,
		Tracker:    tracker,
		TimeNow:    cfg.TimeNow,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create status service: %w", err)
	}

	return &Sandbox{
		createSvc:           createSvc,
		execSvc:             execSvc,
		installSvc:          installSvc,
		removeSvc:           removeSvc,
		listSvc:             listSvc,
		statusSvc:           statusSvc,
		repo:                cfg.Repository,
		scheduler:           cfg.Scheduler,
		shutdownConcurrency: cfg.ShutdownConcurrency,
		logger:              cfg.Logger.WithValues(log.Kv{"svc": "service.Sandbox"}),
	}, nil
}

// maxDurationMS is the biggest millisecond amount a time.Duration can hold.
const maxDurationMS = math.MaxInt64 / int64(time.Millisecond)

func (s *Sandbox) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("service is shutting down: %w", model.ErrNotValid)
	}
	if req.TimeoutMS < 0 {
		return nil, fmt.Errorf("timeout can't be negative: %w", model.ErrNotValid)
	}
	if req.TimeoutMS > maxDurationMS {
		return nil, fmt.Errorf("timeout can't be greater than %dms: %w", maxDurationMS, model.ErrNotValid)
	}

	session, err := s.createSvc.Create(ctx, create.Request{Timeout: time.Duration(req.TimeoutMS) * time.Millisecond})
	if err != nil {
		return nil, err
	}

	return &CreateSessionResponse{SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

func (s *Sandbox) RunCommand(ctx context.Context, req RunCommandRequest) (*CommandResponse, error) {
	return s.execSvc.Run(ctx, exec.Request{
		SessionID:  req.SessionID,
		Command:    req.Command,
		Args:       req.Args,
		WorkingDir: req.Cwd,
	})
}

func (s *Sandbox) InstallPip(ctx context.Context, req InstallPipRequest) (*CommandResponse, error) {
	return s.installSvc.Pip(ctx, install.Request{SessionID: req.SessionID, Package: req.Package})
}

func (s *Sandbox) InstallNpm(ctx context.Context, req InstallNpmRequest) (*CommandResponse, error) {
	return s.installSvc.Npm(ctx, install.Request{SessionID: req.SessionID, Package: req.Package})
}

// DestroySession never fails, destroying an unknown session is a no-op.
func (s *Sandbox) DestroySession(ctx context.Context, req DestroySessionRequest) (*DestroySessionResponse, error) {
	res := s.removeSvc.Run(ctx, remove.Request{SessionID: req.SessionID})
	return &DestroySessionResponse{Destroyed: res.Removed}, nil
}

func (s *Sandbox) ListSessions(ctx context.Context, req ListSessionsRequest) (*ListSessionsResponse, error) {
	if req.ExpiringWithinMS < 0 {
		return nil, fmt.Errorf("expiring window can't be negative: %w", model.ErrNotValid)
	}
	if req.ExpiringWithinMS > maxDurationMS {
		return nil, fmt.Errorf("expiring window can't be greater than %dms: %w", maxDurationMS, model.ErrNotValid)
	}

	sessions, err := s.listSvc.Run(ctx, list.Request{ExpiringWithin: time.Duration(req.ExpiringWithinMS) * time.Millisecond})
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, ss := range sessions {
		infos = append(infos, toSessionInfo(ss))
	}

	return &ListSessionsResponse{Sessions: infos}, nil
}

func (s *Sandbox) GetSession(ctx context.Context, req GetSessionRequest) (*GetSessionResponse, error) {
	res, err := s.statusSvc.Run(ctx, status.Request{SessionID: req.SessionID})
	if err != nil {
		return nil, err
	}

	info := toSessionInfo(res.Session)
	info.RemainingMS = res.Remaining.Milliseconds()
	info.RunningCommands = res.RunningCommands

	return &GetSessionResponse{Session: info}, nil
}

// Close stops accepting new sessions, stops the lease timers and destroys all
// the live sessions.
func (s *Sandbox) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.scheduler.Stop()

	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("could not list sessions: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.shutdownConcurrency)
	for _, ss := range sessions {
		g.Go(func() error {
			s.removeSvc.Run(gctx, remove.Request{SessionID: ss.ID})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Infof("Destroyed %d sessions on shutdown", len(sessions))
	return nil
}
