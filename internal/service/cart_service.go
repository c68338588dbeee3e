package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/redclaw/internal/cache"
	"github.com/fjod/redclaw/internal/cartstore"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/pkg/logger"
)

type CartService struct {
	repo    cartstore.CartRepository
	cache   cache.CartCache
	catalog ProductCatalog
	sfg     singleflight.Group // coalesces concurrent cache misses per user
}

func NewCartService(repo cartstore.CartRepository, cache cache.CartCache, catalog ProductCatalog) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	key := userID.String()
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, key)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromContext(ctx).Warn("cart cache get failed", zap.Error(err))
		}

		cart, errGet := s.repo.GetCart(ctx, key)
		if errors.Is(errGet, cartstore.ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{UserID: key, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		if errGet != nil {
			return nil, toDomainError(errGet, "load cart")
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, key, cart); errSet != nil {
				logger.L().Warn("cart cache set failed", zap.String("user_id", key), zap.Error(errSet))
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem adds quantity of a catalog product to the cart.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) error {
	if quantity < 1 {
		return domain.Validation("quantity must be at least 1")
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return toDomainError(err, "load product")
	}
	if !product.IsAvailable {
		return domain.Validation("product %d is not available", productID)
	}

	if err := s.repo.AddItem(ctx, userID.String(), productID, quantity); err != nil {
		return toDomainError(err, "add cart item")
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// UpdateQuantity sets the quantity of a cart line; zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, productID int64, quantity int) error {
	if quantity < 0 {
		return domain.Validation("quantity must not be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	if err := s.repo.UpdateItemQuantity(ctx, userID.String(), productID, quantity); err != nil {
		return toDomainError(err, "update cart item")
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID int64) error {
	if err := s.repo.RemoveItem(ctx, userID.String(), productID); err != nil {
		return toDomainError(err, "remove cart item")
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteCart(ctx, userID.String()); err != nil {
		return toDomainError(err, "clear cart")
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) invalidateCache(ctx context.Context, userID uuid.UUID) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, userID.String()); err != nil {
		logger.FromContext(ctx).Warn("cart cache invalidate failed", zap.Error(err))
	}
}
