package cache

import (
	"context"
	"errors"

	"github.com/fjod/redclaw/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// Locker hands out short-lived exclusive locks keyed by name.
type Locker interface {
	// Acquire returns ErrLocked when another holder owns the key.
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrLocked    = errors.New("lock is held by another request")
)
