package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
// Nothing survives a process restart.
type Repository struct {
	sessions map[string]model.Session
	mu       sync.RWMutex
	logger   log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		sessions: make(map[string]model.Session),
		logger:   cfg.Logger,
	}, nil
}

// CreateSession stores a new session in the repository.
func (r *Repository) CreateSession(ctx context.Context, s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session with id %s: %w", s.ID, model.ErrAlreadyExists)
	}

	for _, existing := range r.sessions {
		if existing.Directory == s.Directory {
			return fmt.Errorf("session with directory %s: %w", s.Directory, model.ErrAlreadyExists)
		}
	}

	s.Policy = s.Policy.Clone()
	r.sessions[s.ID] = s
	r.logger.Debugf("Created session in repository: %s", s.ID)

	return nil
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	// Return a copy
	sessionCopy := session
	sessionCopy.Policy = session.Policy.Clone()
	return &sessionCopy, nil
}

// ListSessions returns all sessions sorted by creation time.
func (r *Repository) ListSessions(ctx context.Context) ([]model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]model.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		session.Policy = session.Policy.Clone()
		sessions = append(sessions, session)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// DeleteSession deletes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	delete(r.sessions, id)
	r.logger.Debugf("Deleted session from repository: %s", id)

	return nil
}
