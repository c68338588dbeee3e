package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/auth"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/service"
)

type MockCheckout struct {
	sessionReq *domain.CheckoutRequest
	session    *domain.CheckoutSession
	verifyReq  *domain.VerifyRequest
	result     *domain.VerifyResult
	err        error
}

func (m *MockCheckout) CreateSession(_ context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	m.sessionReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *MockCheckout) VerifyPayment(_ context.Context, req *domain.VerifyRequest) (*domain.VerifyResult, error) {
	m.verifyReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type MockOrders struct {
	orders       []*domain.Order
	order        *domain.Order
	err          error
	limit        int
	offset       int
	statusCalled string
}

func (m *MockOrders) ListUserOrders(context.Context, uuid.UUID) ([]*domain.Order, error) {
	return m.orders, m.err
}

func (m *MockOrders) GetOrder(context.Context, uuid.UUID, uuid.UUID) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *MockOrders) ListAllOrders(_ context.Context, limit, offset int) ([]*domain.Order, error) {
	m.limit, m.offset = limit, offset
	return m.orders, m.err
}

func (m *MockOrders) UpdateStatus(_ context.Context, _ uuid.UUID, status string) (*domain.Order, error) {
	m.statusCalled = status
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

type MockAddresses struct {
	addresses []*domain.Address
	added     service.AddressInput
	patch     domain.AddressPatch
	deleted   uuid.UUID
	err       error
}

func (m *MockAddresses) List(context.Context, uuid.UUID) ([]*domain.Address, error) {
	return m.addresses, m.err
}

func (m *MockAddresses) Get(_ context.Context, _ uuid.UUID, id uuid.UUID) (*domain.Address, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.addresses {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, domain.NotFound("address")
}

func (m *MockAddresses) Add(_ context.Context, userID uuid.UUID, in service.AddressInput) (*domain.Address, error) {
	m.added = in
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Address{ID: uuid.New(), UserID: userID, FullName: in.FullName, Pincode: in.Pincode, IsDefault: true}, nil
}

func (m *MockAddresses) Update(ctx context.Context, userID, id uuid.UUID, patch domain.AddressPatch) (*domain.Address, error) {
	m.patch = patch
	a, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(a)
	return a, nil
}

func (m *MockAddresses) Delete(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	m.deleted = id
	return m.err
}

func (m *MockAddresses) SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	a, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	a.IsDefault = true
	return a, nil
}

type MockCart struct {
	mu    sync.Mutex
	items map[int64]int
	err   error
}

func NewMockCart() *MockCart {
	return &MockCart{items: make(map[int64]int)}
}

func (m *MockCart) GetCart(_ context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := &domain.Cart{UserID: userID.String()}
	for id, qty := range m.items {
		cart.Items = append(cart.Items, domain.CartItem{ProductID: id, Quantity: qty})
	}
	return cart, nil
}

func (m *MockCart) AddItem(_ context.Context, _ uuid.UUID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items[productID] += quantity
	return nil
}

func (m *MockCart) UpdateQuantity(_ context.Context, _ uuid.UUID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.items[productID]; !ok {
		return domain.NotFound("cart item")
	}
	if quantity == 0 {
		delete(m.items, productID)
		return nil
	}
	m.items[productID] = quantity
	return nil
}

func (m *MockCart) RemoveItem(_ context.Context, _ uuid.UUID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, productID)
	return m.err
}

func (m *MockCart) ClearCart(context.Context, uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[int64]int)
	return m.err
}

type MockProducts struct {
	products []*domain.Product
	category string
	limit    int
	err      error
}

func (m *MockProducts) FeaturedProducts(context.Context) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Product
	for _, p := range m.products {
		if p.IsFeatured {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockProducts) RecommendedProducts(_ context.Context, n int) ([]*domain.Product, error) {
	m.limit = n
	return m.products, m.err
}

func (m *MockProducts) ListProducts(_ context.Context, category string) ([]*domain.Product, error) {
	m.category = category
	return m.products, m.err
}

func (m *MockProducts) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.NotFound("product")
}

type MockCoupons struct {
	coupon *domain.Coupon
	code   string
	err    error
}

func (m *MockCoupons) GetActiveCoupon(context.Context, uuid.UUID) (*domain.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.coupon, nil
}

func (m *MockCoupons) ValidateCoupon(_ context.Context, _ uuid.UUID, code string) (*domain.Coupon, error) {
	m.code = code
	if m.err != nil {
		return nil, m.err
	}
	return m.coupon, nil
}

type MockRefresher struct {
	token     string
	got       string
	loggedOut string
	err       error
}

func (m *MockRefresher) Refresh(_ context.Context, refreshToken string) (*auth.Session, error) {
	m.got = refreshToken
	if m.err != nil {
		return nil, m.err
	}
	return &auth.Session{AccessToken: m.token, RefreshToken: "next-" + refreshToken}, nil
}

func (m *MockRefresher) Logout(_ context.Context, refreshToken string) error {
	m.loggedOut = refreshToken
	return m.err
}

type MockAccounts struct {
	user       *domain.User
	signup     auth.SignupInput
	email      string
	password   string
	verifiedID uuid.UUID
	code       string
	err        error
}

func (m *MockAccounts) session() *auth.Session {
	return &auth.Session{AccessToken: "access-" + m.user.Email, RefreshToken: "refresh-" + m.user.Email}
}

func (m *MockAccounts) Signup(_ context.Context, in auth.SignupInput) (*domain.User, *auth.Session, error) {
	m.signup = in
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.user, m.session(), nil
}

func (m *MockAccounts) Login(_ context.Context, email, password string) (*domain.User, *auth.Session, error) {
	m.email, m.password = email, password
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.user, m.session(), nil
}

func (m *MockAccounts) Profile(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user == nil || m.user.ID != userID {
		return nil, domain.NotFound("user")
	}
	return m.user, nil
}

func (m *MockAccounts) VerifyEmail(_ context.Context, userID uuid.UUID, code string) error {
	m.verifiedID, m.code = userID, code
	return m.err
}

// --- helpers ---

func withUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(WithPrincipal(r.Context(), Principal{UserID: userID, Role: domain.RoleCustomer}))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
