package storage

import (
	"context"

	"github.com/slok/sessionbox/internal/model"
)

// Repository is the interface for the live session registry.
type Repository interface {
	CreateSession(ctx context.Context, s model.Session) error
	// GetSession returns model.ErrNotFound when the session is not present.
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	// DeleteSession returns model.ErrNotFound when the session is not present, so concurrent
	// deleters can know who removed it.
	DeleteSession(ctx context.Context, id string) error
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name Repository
