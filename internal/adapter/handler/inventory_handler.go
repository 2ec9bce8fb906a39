package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type InventoryChecker interface {
	CheckStock(ctx context.Context, skus []string) ([]domain.InventoryAvailability, error)
	IsInStock(ctx context.Context, skuCode string) (bool, error)
	ReserveStock(ctx context.Context, items []domain.StockReservationItem) error
}

type InventoryHandler struct {
	inventory InventoryChecker
	logger    *zap.Logger
}

type InventoryHTTPResponse struct {
	SkuCode   string `json:"skuCode"`
	IsInStock bool   `json:"isInStock"`
}

type ReservationItemDTO struct {
	SkuCode  string `json:"skuCode"`
	Quantity int    `json:"quantity"`
}

type ReserveStockHTTPRequest struct {
	Items []ReservationItemDTO `json:"items"`
}

func NewInventoryHandler(inventory InventoryChecker, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, logger: logger}
}

// CheckStock answers GET /api/inventory?skuCode=A&skuCode=B with one entry
// per SKU known to the store.
func (h *InventoryHandler) CheckStock(c *gin.Context) {
	availability, err := h.inventory.CheckStock(c.Request.Context(), c.QueryArray("skuCode"))
	if err != nil {
		h.logger.Error("failed to check stock", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := make([]InventoryHTTPResponse, 0, len(availability))
	for _, a := range availability {
		resp = append(resp, InventoryHTTPResponse{SkuCode: a.SkuCode, IsInStock: a.InStock})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InventoryHandler) IsInStock(c *gin.Context) {
	inStock, err := h.inventory.IsInStock(c.Request.Context(), c.Param("skuCode"))
	if err != nil {
		h.logger.Error("failed to check stock", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, inStock)
}

func (h *InventoryHandler) ReserveStock(c *gin.Context) {
	var req ReserveStockHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	items := make([]domain.StockReservationItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.StockReservationItem{SkuCode: item.SkuCode, Quantity: item.Quantity})
	}

	if err := h.inventory.ReserveStock(c.Request.Context(), items); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock"})
		default:
			h.logger.Error("failed to reserve stock", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"reserved": true})
}
