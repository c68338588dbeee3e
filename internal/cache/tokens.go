package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisTokenStore keeps the current refresh token and the pending e-mail
// verification code of each user.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// RefreshToken returns ErrCacheMiss when the user has no stored token.
func (s *RedisTokenStore) RefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := s.client.Get(ctx, refreshKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) DeleteRefreshToken(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) SaveVerificationCode(ctx context.Context, userID uuid.UUID, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, verifyKey(userID), code, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// VerificationCode returns ErrCacheMiss once the code expired or was used.
func (s *RedisTokenStore) VerificationCode(ctx context.Context, userID uuid.UUID) (string, error) {
	code, err := s.client.Get(ctx, verifyKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return code, nil
}

func (s *RedisTokenStore) DeleteVerificationCode(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, verifyKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func refreshKey(userID uuid.UUID) string {
	return "refresh_token:" + userID.String()
}

func verifyKey(userID uuid.UUID) string {
	return "verify_email:" + userID.String()
}
