package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const idempotencyKeyHeader = "Idempotency-Key"

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (string, error)
	GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error)
}

type OrderHandler struct {
	orders OrderPlacer
	logger *zap.Logger
}

type OrderLineItemDTO struct {
	SkuCode  string          `json:"skuCode"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type PlaceOrderHTTPRequest struct {
	OrderLineItemsDtoList []OrderLineItemDTO `json:"orderLineItemsDtoList"`
}

type PlaceOrderHTTPResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OrderNumber string `json:"orderNumber,omitempty"`
}

type OrderHTTPResponse struct {
	OrderNumber           string             `json:"orderNumber"`
	CreatedAt             string             `json:"createdAt"`
	OrderLineItemsDtoList []OrderLineItemDTO `json:"orderLineItemsDtoList"`
}

func NewOrderHandler(orders OrderPlacer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, PlaceOrderHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	orderReq := domain.OrderRequest{LineItems: make([]domain.OrderLineItemRequest, 0, len(req.OrderLineItemsDtoList))}
	for _, item := range req.OrderLineItemsDtoList {
		orderReq.LineItems = append(orderReq.LineItems, domain.OrderLineItemRequest{
			SkuCode:  item.SkuCode,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	orderNumber, err := h.orders.PlaceOrder(c.Request.Context(), orderReq, c.GetHeader(idempotencyKeyHeader))
	if err != nil {
		status, message := placeOrderError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to place order",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.Error(err))
		}
		c.JSON(status, PlaceOrderHTTPResponse{
			Success: false,
			Message: message,
		})
		return
	}

	c.JSON(http.StatusCreated, PlaceOrderHTTPResponse{
		Success:     true,
		Message:     "Order Placed Successfully",
		OrderNumber: orderNumber,
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		h.logger.Error("failed to load order", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := OrderHTTPResponse{
		OrderNumber:           order.OrderNumber,
		CreatedAt:             order.CreatedAt.Format(timeFormat),
		OrderLineItemsDtoList: make([]OrderLineItemDTO, 0, len(order.LineItems)),
	}
	for _, item := range order.LineItems {
		resp.OrderLineItemsDtoList = append(resp.OrderLineItemsDtoList, OrderLineItemDTO{
			SkuCode:  item.SkuCode,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// placeOrderError maps a placement failure to a status code. Business
// rejections stay distinguishable from upstream and storage faults.
func placeOrderError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrOutOfStock):
		return http.StatusGone, err.Error()
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "inventory service unavailable"
	case errors.Is(err, service.ErrIdempotency):
		return http.StatusServiceUnavailable, "idempotency store unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
