package install

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/slok/sessionbox/internal/app/exec"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/storage"
)

// Runner runs commands in sessions.
type Runner interface {
	Run(ctx context.Context, req exec.Request) (*model.CommandResult, error)
}

// ServiceConfig is the configuration for the install service.
type ServiceConfig struct {
	Runner     Runner
	Repository storage.Repository
	// PipBinary is the command line that starts pip, defaults to "pip".
	PipBinary string
	// NpmBinary defaults to "npm".
	NpmBinary string
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.PipBinary == "" {
		c.PipBinary = "pip"
	}
	if c.NpmBinary == "" {
		c.NpmBinary = "npm"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Install"})
	return nil
}

// Service installs language packages into sessions.
type Service struct {
	runner    Runner
	repo      storage.Repository
	pipBinary string
	npmBinary string
	logger    log.Logger
}

// NewService creates a new install service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runner:    cfg.Runner,
		repo:      cfg.Repository,
		pipBinary: cfg.PipBinary,
		npmBinary: cfg.NpmBinary,
		logger:    cfg.Logger,
	}, nil
}

// Request contains the parameters for installing a package.
type Request struct {
	SessionID string
	Package   string
}

// Pip installs a python package in the session package lib directory.
func (s *Service) Pip(ctx context.Context, req Request) (*model.CommandResult, error) {
	if err := validatePackage(req.Package); err != nil {
		return nil, err
	}

	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("could not find session: %w", err)
	}

	s.logger.Infof("Installing pip package %q in session %s", req.Package, session.ID)

	return s.runner.Run(ctx, exec.Request{
		SessionID: session.ID,
		Command:   s.pipBinary,
		Args:      []string{"install", req.Package, "--target", session.PackageLibDirectory},
	})
}

// Npm installs a node package in the session directory.
func (s *Service) Npm(ctx context.Context, req Request) (*model.CommandResult, error) {
	if err := validatePackage(req.Package); err != nil {
		return nil, err
	}

	s.logger.Infof("Installing npm package %q in session %s", req.Package, req.SessionID)

	return s.runner.Run(ctx, exec.Request{
		SessionID: req.SessionID,
		Command:   s.npmBinary,
		Args:      []string{"install", req.Package},
	})
}

// validatePackage rejects package names that would be taken as options by the
// package managers.
func validatePackage(pkg string) error {
	if pkg == "" {
		return fmt.Errorf("package is required: %w", model.ErrNotValid)
	}
	if strings.HasPrefix(pkg, "-") {
		return fmt.Errorf("package %q can't start with '-': %w", pkg, model.ErrNotValid)
	}
	if strings.IndexFunc(pkg, unicode.IsSpace) >= 0 {
		return fmt.Errorf("package %q can't contain spaces: %w", pkg, model.ErrNotValid)
	}
	return nil
}
