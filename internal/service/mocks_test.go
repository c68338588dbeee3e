package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/redclaw/internal/cache"
	"github.com/fjod/redclaw/internal/cartstore"
	"github.com/fjod/redclaw/internal/catalog"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/gateway"
	"github.com/fjod/redclaw/internal/repository"
)

// MockOrders implements repository.OrderRepository in memory.
type MockOrders struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*domain.Order
	events    []*repository.OutboxEvent
	createErr error
}

func NewMockOrders() *MockOrders {
	return &MockOrders{byID: make(map[uuid.UUID]*domain.Order)}
}

func (m *MockOrders) CreateOrderWithEvent(_ context.Context, order *domain.Order, event *repository.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, o := range m.byID {
		if o.GatewayOrderID == order.GatewayOrderID {
			return repository.ErrDuplicateOrder
		}
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	cp := *order
	m.byID[order.ID] = &cp
	if event != nil {
		m.events = append(m.events, event)
	}
	return nil
}

func (m *MockOrders) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrders) GetOrderByGatewayID(_ context.Context, gatewayOrderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.GatewayOrderID == gatewayOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrders) sorted(filter func(*domain.Order) bool) []*domain.Order {
	var out []*domain.Order
	for _, o := range m.byID {
		if filter(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MockOrders) ListOrdersByUserSince(_ context.Context, userID uuid.UUID, since time.Time) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(o *domain.Order) bool {
		return o.UserID == userID && !o.CreatedAt.Before(since)
	}), nil
}

func (m *MockOrders) ListOrders(_ context.Context, limit, offset int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(*domain.Order) bool { return true })
	if offset >= len(all) {
		return []*domain.Order{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MockOrders) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != from {
		return repository.ErrStatusChanged
	}
	o.Status = to
	return nil
}

func (m *MockOrders) put(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[o.ID] = o
}

func (m *MockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// MockAddresses implements repository.AddressRepository with the default rules
// of the Postgres implementation.
type MockAddresses struct {
	mu   sync.Mutex
	rows []*domain.Address
	err  error
}

func (m *MockAddresses) ListAddresses(_ context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Address
	for _, a := range m.rows {
		if a.UserID == userID && a.IsDefault {
			cp := *a
			out = append(out, &cp)
		}
	}
	for _, a := range m.rows {
		if a.UserID == userID && !a.IsDefault {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockAddresses) find(userID, id uuid.UUID) *domain.Address {
	for _, a := range m.rows {
		if a.ID == id && a.UserID == userID {
			return a
		}
	}
	return nil
}

func (m *MockAddresses) clearDefault(userID uuid.UUID) {
	for _, a := range m.rows {
		if a.UserID == userID {
			a.IsDefault = false
		}
	}
}

func (m *MockAddresses) GetAddress(_ context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a := m.find(userID, id)
	if a == nil {
		return nil, repository.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockAddresses) CreateAddress(_ context.Context, a *domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	hasAny := false
	for _, r := range m.rows {
		if r.UserID == a.UserID {
			hasAny = true
		}
	}
	if !hasAny {
		a.IsDefault = true
	}
	if a.IsDefault {
		m.clearDefault(a.UserID)
	}
	a.CreatedAt = time.Now()
	cp := *a
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockAddresses) UpdateAddress(_ context.Context, a *domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.find(a.UserID, a.ID)
	if cur == nil {
		return repository.ErrAddressNotFound
	}
	if cur.IsDefault {
		a.IsDefault = true
	} else if a.IsDefault {
		m.clearDefault(a.UserID)
	}
	*cur = *a
	return nil
}

func (m *MockAddresses) DeleteAddress(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.find(userID, id)
	if cur == nil {
		return repository.ErrAddressNotFound
	}
	wasDefault := cur.IsDefault
	kept := m.rows[:0]
	for _, a := range m.rows {
		if a != cur {
			kept = append(kept, a)
		}
	}
	m.rows = kept
	if wasDefault {
		for _, a := range m.rows {
			if a.UserID == userID {
				a.IsDefault = true
				break
			}
		}
	}
	return nil
}

func (m *MockAddresses) SetDefaultAddress(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.find(userID, id)
	if cur == nil {
		return repository.ErrAddressNotFound
	}
	m.clearDefault(userID)
	cur.IsDefault = true
	return nil
}

func (m *MockAddresses) defaults(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.rows {
		if a.UserID == userID && a.IsDefault {
			n++
		}
	}
	return n
}

// MockCoupons implements repository.CouponRepository.
type MockCoupons struct {
	mu         sync.Mutex
	rows       []*domain.Coupon
	replaceErr error
}

func (m *MockCoupons) GetActiveCoupon(_ context.Context, userID uuid.UUID) (*domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.UserID == userID && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrCouponNotFound
}

func (m *MockCoupons) FindActiveCoupon(_ context.Context, userID uuid.UUID, code string) (*domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.UserID == userID && c.Code == code && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrCouponNotFound
}

func (m *MockCoupons) ReplaceCoupon(_ context.Context, c *domain.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.UserID != c.UserID {
			kept = append(kept, r)
		}
	}
	cp := *c
	m.rows = append(kept, &cp)
	return nil
}

func (m *MockCoupons) DeactivateCoupon(_ context.Context, userID uuid.UUID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.UserID == userID && c.Code == code {
			c.IsActive = false
		}
	}
	return nil
}

func (m *MockCoupons) forUser(userID uuid.UUID) []domain.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Coupon
	for _, c := range m.rows {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out
}

// MockUsers implements repository.UserRepository.
type MockUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func NewMockUsers(users ...*domain.User) *MockUsers {
	m := &MockUsers{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *MockUsers) GetUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUsers) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MockUsers) GetUserByEmail(context.Context, string) (*domain.User, error) {
	return nil, repository.ErrUserNotFound
}

func (m *MockUsers) MarkUserVerified(context.Context, uuid.UUID) error { return nil }

func (m *MockUsers) DeleteExpiredUnverified(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, u := range m.users {
		if !u.IsVerified && u.VerificationExpiresAt != nil && u.VerificationExpiresAt.Before(now) {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

// MockAttempts implements repository.PaymentAttemptRepository.
type MockAttempts struct {
	mu   sync.Mutex
	rows []*domain.PaymentAttempt
}

func (m *MockAttempts) RecordAttempt(_ context.Context, a *domain.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Status == domain.AttemptReconcile {
		for _, r := range m.rows {
			if r.GatewayOrderID == a.GatewayOrderID && r.Status == domain.AttemptReconcile {
				r.Reason = a.Reason
				a.ID = r.ID
				return nil
			}
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockAttempts) ListReconcilable(_ context.Context, maxAttempts, limit int) ([]*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PaymentAttempt
	for _, r := range m.rows {
		if r.Status == domain.AttemptReconcile && r.Attempts < maxAttempts && len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockAttempts) MarkAttempt(_ context.Context, id uuid.UUID, status domain.AttemptStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			r.Status = status
			r.Reason = reason
			r.Attempts++
			return nil
		}
	}
	return repository.ErrAttemptNotFound
}

func (m *MockAttempts) withStatus(status domain.AttemptStatus) []domain.PaymentAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PaymentAttempt
	for _, r := range m.rows {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out
}

// MockCatalog implements ProductCatalog.
type MockCatalog struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	err      error
}

func NewMockCatalog(products ...*domain.Product) *MockCatalog {
	m := &MockCatalog{products: make(map[int64]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalog) GetAllProducts(_ context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockCatalog) GetFeaturedProducts(ctx context.Context) ([]*domain.Product, error) {
	all, err := m.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.Product
	for _, p := range all {
		if p.IsFeatured {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockCatalog) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]*domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MockCatalog) DecreaseStock(_ context.Context, items []domain.HoldItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		p, ok := m.products[it.ProductID]
		if !ok {
			return catalog.ErrProductNotFound
		}
		if p.Stock < it.Quantity {
			return catalog.ErrInsufficientStock
		}
		p.Stock -= it.Quantity
		p.SoldCount += it.Quantity
	}
	return nil
}

func (m *MockCatalog) stock(id int64) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

// MockGateway implements PaymentGateway. Orders it creates start as "created";
// tests flip them with pay.
type MockGateway struct {
	mu        sync.Mutex
	secret    string
	orders    map[string]*gateway.Order
	seq       int
	createErr error
	fetchErr  error
	requests  []gateway.CreateOrderRequest
}

func NewMockGateway() *MockGateway {
	return &MockGateway{secret: "test_secret", orders: make(map[string]*gateway.Order)}
}

func (m *MockGateway) KeyID() string { return "rzp_test_key" }

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(m.secret, orderID, paymentID, signature)
}

func (m *MockGateway) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	m.requests = append(m.requests, req)
	o := &gateway.Order{
		ID:       fmt.Sprintf("order_%04d", m.seq),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   gateway.StatusCreated,
		Notes:    req.Notes,
	}
	m.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (m *MockGateway) FetchOrder(_ context.Context, orderID string) (*gateway.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, &gateway.APIError{StatusCode: 400, Code: "BAD_REQUEST_ERROR", Description: "order not found"}
	}
	cp := *o
	return &cp, nil
}

// pay marks the gateway order paid and returns a payment id with its signature.
func (m *MockGateway) pay(orderID string) (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	o.Status = gateway.StatusPaid
	o.AmountPaid = o.Amount
	paymentID := "pay_" + orderID
	return paymentID, gateway.Sign(m.secret, orderID, paymentID)
}

func (m *MockGateway) sign(orderID, paymentID string) string {
	return gateway.Sign(m.secret, orderID, paymentID)
}

// MockLocker implements cache.Locker in memory.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.held[key] {
		return nil, cache.ErrLocked
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		return nil
	}, nil
}

// MockCartRepo implements cartstore.CartRepository.
type MockCartRepo struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	gets  int
	err   error
}

func NewMockCartRepo() *MockCartRepo {
	return &MockCartRepo{carts: make(map[string]*domain.Cart)}
}

func (m *MockCartRepo) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cartstore.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *MockCartRepo) AddItem(_ context.Context, userID string, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		m.carts[userID] = c
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return nil
		}
	}
	c.Items = append(c.Items, domain.CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *MockCartRepo) UpdateItemQuantity(_ context.Context, userID string, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return cartstore.ErrItemNotFound
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return cartstore.ErrItemNotFound
}

func (m *MockCartRepo) RemoveItem(_ context.Context, userID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return cartstore.ErrItemNotFound
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return cartstore.ErrItemNotFound
}

func (m *MockCartRepo) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

// MockCartCache implements cache.CartCache.
type MockCartCache struct {
	mu      sync.Mutex
	data    map[string]*domain.Cart
	deletes int
	getErr  error
}

func NewMockCartCache() *MockCartCache {
	return &MockCartCache{data: make(map[string]*domain.Cart)}
}

func (m *MockCartCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.data[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *MockCartCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = cart
	return nil
}

func (m *MockCartCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, userID)
	return nil
}

func (m *MockCartCache) has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[userID]
	return ok
}

var errBoom = errors.New("boom")

func testProduct(id int64, name string, price int64, stock int32) *domain.Product {
	return &domain.Product{
		ID:          id,
		Name:        name,
		Price:       decimal.NewFromInt(price),
		Image:       fmt.Sprintf("/img/%d.png", id),
		Stock:       stock,
		IsAvailable: true,
	}
}
