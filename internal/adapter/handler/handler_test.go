package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeOrders struct {
	err         error
	lastReq     domain.OrderRequest
	lastKey     string
	stored      map[string]domain.Order
	getErr      error
	orderNumber string
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (string, error) {
	f.lastReq = req
	f.lastKey = idempotencyKey
	if f.err != nil {
		return "", f.err
	}
	return f.orderNumber, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	order, ok := f.stored[orderNumber]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &order, nil
}

type fakeInventory struct {
	availability []domain.InventoryAvailability
	inStock      map[string]bool
	reserveErr   error
	reserved     []domain.StockReservationItem
	err          error
	lastSkus     []string
}

func (f *fakeInventory) CheckStock(ctx context.Context, skus []string) ([]domain.InventoryAvailability, error) {
	f.lastSkus = skus
	return f.availability, f.err
}

func (f *fakeInventory) IsInStock(ctx context.Context, skuCode string) (bool, error) {
	return f.inStock[skuCode], f.err
}

func (f *fakeInventory) ReserveStock(ctx context.Context, items []domain.StockReservationItem) error {
	f.reserved = items
	return f.reserveErr
}

func newOrderRouter(orders *fakeOrders) *gin.Engine {
	health := NewHealthHandler("order-service", zap.NewNop())
	return NewOrderRouter(NewOrderHandler(orders, zap.NewNop()), health, nil, zap.NewNop())
}

func doRequest(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPlaceOrder_Created(t *testing.T) {
	orders := &fakeOrders{orderNumber: "8f2d"}
	router := newOrderRouter(orders)

	w := doRequest(router, http.MethodPost, "/api/order",
		`{"orderLineItemsDtoList":[{"skuCode":"iphone_17","price":999,"quantity":1}]}`,
		map[string]string{"Idempotency-Key": "abc"})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp PlaceOrderHTTPResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "8f2d", resp.OrderNumber)

	require.Len(t, orders.lastReq.LineItems, 1)
	assert.Equal(t, "iphone_17", orders.lastReq.LineItems[0].SkuCode)
	assert.True(t, orders.lastReq.LineItems[0].Price.Equal(decimal.NewFromInt(999)))
	assert.Equal(t, "abc", orders.lastKey)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid", err: fmt.Errorf("%w: line item 0: sku code is required", service.ErrInvalidRequest), status: http.StatusBadRequest},
		{name: "out of stock", err: fmt.Errorf("%w: iphone_17_white", service.ErrOutOfStock), status: http.StatusGone},
		{name: "duplicate", err: service.ErrDuplicateRequest, status: http.StatusConflict},
		{name: "upstream", err: fmt.Errorf("%w: %w", service.ErrUpstreamUnavailable, errors.New("dial tcp")), status: http.StatusServiceUnavailable},
		{name: "store", err: fmt.Errorf("%w: %w", service.ErrStore, errors.New("deadlock")), status: http.StatusInternalServerError},
		{name: "idempotency store", err: fmt.Errorf("%w: %w", service.ErrIdempotency, errors.New("redis down")), status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newOrderRouter(&fakeOrders{err: tt.err})
			w := doRequest(router, http.MethodPost, "/api/order",
				`{"orderLineItemsDtoList":[{"skuCode":"iphone_17","price":999,"quantity":1}]}`, nil)

			assert.Equal(t, tt.status, w.Code)
			var resp PlaceOrderHTTPResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Empty(t, resp.OrderNumber)
		})
	}
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	orders := &fakeOrders{}
	router := newOrderRouter(orders)

	w := doRequest(router, http.MethodPost, "/api/order", `{"orderLineItemsDtoList":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, orders.lastReq.LineItems)
}

func TestGetOrder(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	orders := &fakeOrders{stored: map[string]domain.Order{
		"o-1": {OrderNumber: "o-1", CreatedAt: created, LineItems: []domain.OrderLineItem{
			{SkuCode: "iphone_17", Quantity: 2, Price: decimal.NewFromInt(999)},
		}},
	}}
	router := newOrderRouter(orders)

	w := doRequest(router, http.MethodGet, "/api/order/o-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp OrderHTTPResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "o-1", resp.OrderNumber)
	assert.Equal(t, created.Format(timeFormat), resp.CreatedAt)
	require.Len(t, resp.OrderLineItemsDtoList, 1)
	assert.Equal(t, 2, resp.OrderLineItemsDtoList[0].Quantity)

	w = doRequest(router, http.MethodGet, "/api/order/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	orders.getErr = errors.New("connection refused")
	w = doRequest(router, http.MethodGet, "/api/order/o-1", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func newInventoryRouter(inventory *fakeInventory) *gin.Engine {
	health := NewHealthHandler("inventory-service", zap.NewNop())
	return NewInventoryRouter(NewInventoryHandler(inventory, zap.NewNop()), health, nil, zap.NewNop())
}

func TestCheckStock(t *testing.T) {
	inventory := &fakeInventory{availability: []domain.InventoryAvailability{
		{SkuCode: "iphone_17", InStock: true},
		{SkuCode: "iphone_17_white", InStock: false},
	}}
	router := newInventoryRouter(inventory)

	w := doRequest(router, http.MethodGet, "/api/inventory?skuCode=iphone_17&skuCode=iphone_17_white&skuCode=unknown", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"skuCode":"iphone_17","isInStock":true},{"skuCode":"iphone_17_white","isInStock":false}]`, w.Body.String())
	assert.Equal(t, []string{"iphone_17", "iphone_17_white", "unknown"}, inventory.lastSkus)
}

func TestCheckStock_EmptyListIsArray(t *testing.T) {
	router := newInventoryRouter(&fakeInventory{})

	w := doRequest(router, http.MethodGet, "/api/inventory?skuCode=unknown", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestIsInStock(t *testing.T) {
	router := newInventoryRouter(&fakeInventory{inStock: map[string]bool{"iphone_17": true}})

	w := doRequest(router, http.MethodGet, "/api/inventory/iphone_17", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/inventory/iphone_17_white", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Body.String())
}

func TestReserveStock(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "reserved", status: http.StatusOK},
		{name: "insufficient", err: service.ErrInsufficientStock, status: http.StatusConflict},
		{name: "invalid", err: fmt.Errorf("%w: item 0: quantity must be positive", service.ErrInvalidRequest), status: http.StatusBadRequest},
		{name: "failure", err: errors.New("redis down"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inventory := &fakeInventory{reserveErr: tt.err}
			router := newInventoryRouter(inventory)

			w := doRequest(router, http.MethodPost, "/api/inventory/reservations",
				`{"items":[{"skuCode":"iphone_17","quantity":2}]}`, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, []domain.StockReservationItem{{SkuCode: "iphone_17", Quantity: 2}}, inventory.reserved)
		})
	}
}

func TestRequestID_Propagated(t *testing.T) {
	router := newInventoryRouter(&fakeInventory{})

	w := doRequest(router, http.MethodGet, "/api/inventory", "", map[string]string{requestIDHeader: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}
