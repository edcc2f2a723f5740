package repository

import (
	"context"
	"errors"
	"time"

	"user-profile/internal/domain"
)

// ErrNotFound is returned when no user is stored under the requested id.
var ErrNotFound = errors.New("user not found")

// UserStore defines local persistence operations for fetched users.
type UserStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, id string) (*domain.User, error)
	HasFreshUser(ctx context.Context, id string, timeout time.Duration) (bool, error)
	ListRecent(ctx context.Context, since time.Time) ([]domain.User, error)
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}
