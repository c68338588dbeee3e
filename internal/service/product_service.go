package service

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/fjod/redclaw/internal/domain"
)

// ProductLister is the read side of the catalog used by the storefront listing.
type ProductLister interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetFeaturedProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// DefaultRecommendations is how many products a recommendation sample holds.
const DefaultRecommendations = 4

type ProductService struct {
	catalog ProductLister
	shuffle func(n int, swap func(i, j int))
}

func NewProductService(catalog ProductLister) *ProductService {
	return &ProductService{catalog: catalog, shuffle: rand.Shuffle}
}

// ListProducts returns the catalog, optionally narrowed to one category
// (matched case-insensitively).
func (s *ProductService) ListProducts(ctx context.Context, category string) ([]*domain.Product, error) {
	products, err := s.catalog.GetAllProducts(ctx)
	if err != nil {
		return nil, toDomainError(err, "list products")
	}

	category = strings.TrimSpace(category)
	if category == "" {
		return products, nil
	}
	filtered := products[:0:0]
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, domain.Validation("product id must be positive")
	}
	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, toDomainError(err, "load product")
	}
	return p, nil
}

func (s *ProductService) FeaturedProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.catalog.GetFeaturedProducts(ctx)
	if err != nil {
		return nil, toDomainError(err, "list featured products")
	}
	if products == nil {
		products = []*domain.Product{}
	}
	return products, nil
}

// RecommendedProducts returns a random sample of at most n products that can
// currently be bought.
func (s *ProductService) RecommendedProducts(ctx context.Context, n int) ([]*domain.Product, error) {
	if n <= 0 {
		n = DefaultRecommendations
	}
	products, err := s.catalog.GetAllProducts(ctx)
	if err != nil {
		return nil, toDomainError(err, "list products")
	}

	buyable := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if p.IsAvailable && p.InStock() {
			buyable = append(buyable, p)
		}
	}
	s.shuffle(len(buyable), func(i, j int) { buyable[i], buyable[j] = buyable[j], buyable[i] })
	if len(buyable) > n {
		buyable = buyable[:n]
	}
	return buyable, nil
}
