package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/redclaw/internal/cache"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/pkg/logger"
)

// TokenStore keeps the refresh token currently valid for each user.
type TokenStore interface {
	RefreshToken(ctx context.Context, userID uuid.UUID) (string, error)
	SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error
	DeleteRefreshToken(ctx context.Context, userID uuid.UUID) error
}

// Session is the token pair handed back to the client.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for a new session and rotates the
// stored refresh token. Concurrent calls with the same refresh token share
// one issuance.
type Refresher struct {
	tokens *Tokens
	store  TokenStore
	users  repository.UserRepository
	sfg    singleflight.Group
}

func NewRefresher(tokens *Tokens, store TokenStore, users repository.UserRepository) *Refresher {
	return &Refresher{tokens: tokens, store: store, users: users}
}

func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, domain.Unauthenticated("no refresh token provided")
	}
	v, err, shared := r.sfg.Do(refreshToken, func() (any, error) {
		// detached so one caller going away does not fail the others
		return r.issue(context.WithoutCancel(ctx), refreshToken)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.FromContext(ctx).Debug("refresh coalesced")
	}
	return v.(*Session), nil
}

func (r *Refresher) issue(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := r.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, domain.Unauthenticated("invalid refresh token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.Unauthenticated("invalid refresh token")
	}

	stored, err := r.store.RefreshToken(ctx, userID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, domain.Unauthenticated("invalid refresh token")
	}
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if stored != refreshToken {
		return nil, domain.Unauthenticated("invalid refresh token")
	}

	user, err := r.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domain.Unauthenticated("user no longer exists")
	}
	if err != nil {
		return nil, domain.Persistence("load user", err)
	}

	// the old token stops working once the new one is stored
	session, err := issueSession(ctx, r.tokens, r.store, user)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("session refreshed", zap.String("user_id", userID.String()))
	return session, nil
}

// Logout forgets the stored refresh token of the token's owner. Tokens that
// do not verify are ignored so clients can always clear their cookies.
func (r *Refresher) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := r.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil
	}
	if err := r.store.DeleteRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	logger.FromContext(ctx).Info("logged out", zap.String("user_id", userID.String()))
	return nil
}
