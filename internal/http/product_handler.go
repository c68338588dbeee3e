package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/redclaw/internal/domain"
)

type ProductService interface {
	ListProducts(ctx context.Context, category string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	FeaturedProducts(ctx context.Context) ([]*domain.Product, error)
	RecommendedProducts(ctx context.Context, n int) ([]*domain.Product, error)
}

type ProductHandler struct {
	products ProductService
	timeout  time.Duration
}

func NewProductHandler(products ProductService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{products: products, timeout: timeout}
}

type ProductDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Stock       int32   `json:"stock"`
	IsAvailable bool    `json:"isAvailable"`
	IsFeatured  bool    `json:"isFeatured"`
}

type ProductsResponseDTO struct {
	Products []ProductDTO `json:"products"`
}

const maxRecommendations = 20

func convertProducts(products []*domain.Product) ProductsResponseDTO {
	resp := ProductsResponseDTO{Products: make([]ProductDTO, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, convertProduct(p))
	}
	return resp
}

func convertProduct(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Category:    p.Category,
		Image:       p.Image,
		Stock:       p.Stock,
		IsAvailable: p.IsAvailable && p.InStock(),
		IsFeatured:  p.IsFeatured,
	}
}

// GET /api/v1/products?category=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.products.ListProducts(ctx, r.URL.Query().Get("category"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, convertProducts(products))
}

// GET /api/v1/products/featured
func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.products.FeaturedProducts(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertProducts(products))
}

// GET /api/v1/products/recommendations?limit=
func (h *ProductHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return
	}
	if limit < 0 || limit > maxRecommendations {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 0 and 20")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.products.RecommendedProducts(ctx, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertProducts(products))
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.GetProduct(ctx, productID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertProduct(p))
}
