package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fjod/redclaw/internal/domain"
)

// DefaultCartTTL applies when NewRedisCache is given a non-positive ttl.
const DefaultCartTTL = 15 * time.Minute

const (
	linePrefix     = "p:"
	fieldUpdatedAt = "updated_at"
	fieldCreatedAt = "created_at"
	maxJitter      = 5 * time.Minute
)

// RedisCache stores each cart as a hash: one field per line plus timestamps,
// so an empty cart is still a cache hit.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	fields, err := r.client.HGetAll(ctx, cacheKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	cart, err := decodeCart(userID, fields)
	if err != nil {
		return nil, fmt.Errorf("decode cart failed: %w", err)
	}
	return cart, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	key := cacheKey(userID)
	values := encodeCart(cart)

	// jitter spreads expiry of carts cached at the same moment
	ttl := r.ttl + rand.N(maxJitter)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

func encodeCart(cart *domain.Cart) map[string]any {
	values := map[string]any{
		fieldCreatedAt: cart.CreatedAt.UnixMilli(),
		fieldUpdatedAt: cart.UpdatedAt.UnixMilli(),
	}
	for _, it := range cart.Items {
		values[linePrefix+strconv.FormatInt(it.ProductID, 10)] =
			strconv.Itoa(it.Quantity) + ":" + strconv.FormatInt(it.AddedAt.UnixMilli(), 10)
	}
	return values
}

func decodeCart(userID string, fields map[string]string) (*domain.Cart, error) {
	cart := &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	for name, raw := range fields {
		switch {
		case name == fieldCreatedAt:
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			cart.CreatedAt = time.UnixMilli(ms).UTC()
		case name == fieldUpdatedAt:
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			cart.UpdatedAt = time.UnixMilli(ms).UTC()
		case strings.HasPrefix(name, linePrefix):
			item, err := decodeLine(strings.TrimPrefix(name, linePrefix), raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			cart.Items = append(cart.Items, item)
		}
	}

	// hash fields have no order; keep the order lines were added in
	sort.Slice(cart.Items, func(i, j int) bool {
		a, b := cart.Items[i], cart.Items[j]
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.ProductID < b.ProductID
	})
	return cart, nil
}

func decodeLine(id, raw string) (domain.CartItem, error) {
	productID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.CartItem{}, err
	}
	qty, added, ok := strings.Cut(raw, ":")
	if !ok {
		return domain.CartItem{}, errors.New("malformed cart line")
	}
	quantity, err := strconv.Atoi(qty)
	if err != nil {
		return domain.CartItem{}, err
	}
	ms, err := strconv.ParseInt(added, 10, 64)
	if err != nil {
		return domain.CartItem{}, err
	}
	return domain.CartItem{ProductID: productID, Quantity: quantity, AddedAt: time.UnixMilli(ms).UTC()}, nil
}
