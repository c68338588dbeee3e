package service

import (
	"errors"

	"github.com/fjod/redclaw/internal/cartstore"
	"github.com/fjod/redclaw/internal/catalog"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/repository"
)

// toDomainError translates storage errors into the application taxonomy.
// Errors that already belong to it pass through unchanged.
func toDomainError(err error, msg string) error {
	var appErr *domain.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrOrderNotFound):
		return domain.NotFound("order")
	case errors.Is(err, repository.ErrAddressNotFound):
		return domain.NotFound("address")
	case errors.Is(err, repository.ErrCouponNotFound):
		return domain.NotFound("coupon")
	case errors.Is(err, repository.ErrUserNotFound):
		return domain.NotFound("user")
	case errors.Is(err, catalog.ErrProductNotFound):
		return domain.NotFound("product")
	case errors.Is(err, cartstore.ErrItemNotFound):
		return domain.NotFound("cart item")
	case errors.Is(err, repository.ErrStatusChanged):
		return domain.Conflict("order status changed, reload and retry")
	default:
		return domain.Persistence(msg, err)
	}
}
