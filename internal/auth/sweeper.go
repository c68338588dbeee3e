package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/pkg/logger"
)

const DefaultSweepInterval = time.Hour

// Sweeper deletes signups whose verification window passed.
type Sweeper struct {
	users    repository.UserRepository
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(users repository.UserRepository, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{users: users, interval: interval, now: time.Now}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) int64 {
	n, err := s.users.DeleteExpiredUnverified(ctx, s.now())
	if err != nil {
		logger.FromContext(ctx).Error("unverified signup sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		logger.FromContext(ctx).Info("deleted unverified signups", zap.Int64("count", n))
	}
	return n
}
