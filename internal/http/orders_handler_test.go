package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/redclaw/internal/domain"
)

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Items: []domain.OrderItem{
			{ProductID: 1, Name: "Red Claw Hoodie", Quantity: 2, Price: decimal.NewFromInt(1000)},
		},
		TotalAmount:     decimal.NewFromInt(1900),
		DiscountAmount:  decimal.NewFromInt(100),
		Currency:        "INR",
		CouponCode:      "GIFTAB12CD",
		ShippingAddress: domain.AddressSnapshot{FullName: "Asha Rao", City: "Pune", Pincode: "411001", Country: "India"},
		Status:          domain.OrderStatusPending,
		GatewayOrderID:  "order_N1",
		CreatedAt:       time.Now(),
	}
}

func TestListOrders_Success(t *testing.T) {
	order := sampleOrder()
	handler := NewOrdersHandler(&MockOrders{orders: []*domain.Order{order}}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.ListOrders(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), order.UserID))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []OrderResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, order.ID.String(), resp[0].ID)
	assert.Equal(t, 1900.0, resp[0].TotalAmount)
	assert.Equal(t, "pending", resp[0].OrderStatus)
	assert.Equal(t, "Pune", resp[0].ShippingAddress.City)
	require.Len(t, resp[0].Products, 1)
	assert.Equal(t, "Red Claw Hoodie", resp[0].Products[0].Name)
}

func TestListOrders_EmptyList(t *testing.T) {
	handler := NewOrdersHandler(&MockOrders{}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.ListOrders(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), uuid.New()))

	assert.Equal(t, http.StatusOK, rec.Code)
	// must be a JSON array, not null
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestListOrders_Unauthorized(t *testing.T) {
	handler := NewOrdersHandler(&MockOrders{}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.ListOrders(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetOrder(t *testing.T) {
	order := sampleOrder()

	rec := httptest.NewRecorder()
	req := withURLParam(withUser(httptest.NewRequest(http.MethodGet, "/", nil), order.UserID), "order_id", order.ID.String())
	NewOrdersHandler(&MockOrders{order: order}, 5*time.Second).GetOrder(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = withURLParam(withUser(httptest.NewRequest(http.MethodGet, "/", nil), order.UserID), "order_id", "42")
	NewOrdersHandler(&MockOrders{order: order}, 5*time.Second).GetOrder(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = withURLParam(withUser(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New()), "order_id", order.ID.String())
	NewOrdersHandler(&MockOrders{err: domain.NotFound("order")}, 5*time.Second).GetOrder(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAllOrders_Paging(t *testing.T) {
	mock := &MockOrders{orders: []*domain.Order{sampleOrder()}}
	rec := httptest.NewRecorder()

	NewOrdersHandler(mock, 5*time.Second).ListAllOrders(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?limit=20&offset=40", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, mock.limit)
	assert.Equal(t, 40, mock.offset)
	var page OrderPageDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Len(t, page.Orders, 1)

	rec = httptest.NewRecorder()
	NewOrdersHandler(mock, 5*time.Second).ListAllOrders(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	order := sampleOrder()
	order.Status = domain.OrderStatusShipped

	mock := &MockOrders{order: order}
	rec := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"orderStatus":"shipped"}`)), "order_id", order.ID.String())
	NewOrdersHandler(mock, 5*time.Second).UpdateStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipped", mock.statusCalled)
	assert.Contains(t, rec.Body.String(), `"orderStatus":"shipped"`)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	mock := &MockOrders{err: domain.IllegalTransition(domain.OrderStatusDelivered, domain.OrderStatusPending)}
	rec := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"orderStatus":"pending"}`)), "order_id", uuid.NewString())
	NewOrdersHandler(mock, 5*time.Second).UpdateStatus(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"illegal_transition"`)
}

func TestUpdateStatus_MissingStatus(t *testing.T) {
	mock := &MockOrders{}
	rec := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`)), "order_id", uuid.NewString())
	NewOrdersHandler(mock, 5*time.Second).UpdateStatus(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mock.statusCalled)
}
