package repository

import "errors"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrDuplicateOrder  = errors.New("order for this gateway order already exists")
	ErrStatusChanged   = errors.New("order status changed concurrently")
	ErrAddressNotFound = errors.New("address not found")
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrAttemptNotFound = errors.New("payment attempt not found")
)
