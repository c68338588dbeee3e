package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Checkout  *CheckoutHandler
	Orders    *OrdersHandler
	Addresses *AddressHandler
	Cart      *CartHandler
	Coupons   *CouponHandler
	Auth      *AuthHandler
	Products  *ProductHandler
}

type RouterConfig struct {
	Tokens         TokenParser
	Limiter        *RateLimiter
	RequestTimeout time.Duration
}

// NewRouter mounts the storefront API under /api/v1.
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Middleware)
			}
			r.Post("/auth/signup", h.Auth.Signup)
			r.Post("/auth/login", h.Auth.Login)
			r.Post("/auth/refresh-token", h.Auth.RefreshToken)
			r.Post("/auth/logout", h.Auth.Logout)
			r.Get("/products", h.Products.List)
			r.Get("/products/featured", h.Products.Featured)
			r.Get("/products/recommendations", h.Products.Recommended)
			r.Get("/products/{product_id}", h.Products.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.Tokens))
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Middleware)
			}

			r.Get("/auth/profile", h.Auth.Profile)
			r.Post("/auth/verify-email", h.Auth.VerifyEmail)

			r.Route("/payment", func(r chi.Router) {
				r.Post("/create-checkout-session", h.Checkout.CreateSession)
				r.Post("/checkout-success", h.Checkout.VerifyPayment)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Get("/{order_id}", h.Orders.GetOrder)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminOnly)
				r.Get("/orders", h.Orders.ListAllOrders)
				r.Patch("/orders/{order_id}/status", h.Orders.UpdateStatus)
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", h.Addresses.List)
				r.Post("/", h.Addresses.Add)
				r.Get("/{address_id}", h.Addresses.Get)
				r.Put("/{address_id}", h.Addresses.Update)
				r.Delete("/{address_id}", h.Addresses.Delete)
				r.Patch("/{address_id}/default", h.Addresses.SetDefault)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", h.Coupons.GetCoupon)
				r.Post("/validate", h.Coupons.ValidateCoupon)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
