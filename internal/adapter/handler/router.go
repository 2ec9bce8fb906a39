package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newEngine(health *HealthHandler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(Logger(logger))

	router.GET("/health", health.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}

func NewOrderRouter(orders *OrderHandler, health *HealthHandler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	router := newEngine(health, metrics, logger)

	api := router.Group("/api/order")
	{
		api.POST("", orders.PlaceOrder)
		api.GET("/:orderNumber", orders.GetOrder)
	}
	return router
}

func NewInventoryRouter(inventory *InventoryHandler, health *HealthHandler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	router := newEngine(health, metrics, logger)

	api := router.Group("/api/inventory")
	{
		api.GET("", inventory.CheckStock)
		api.GET("/:skuCode", inventory.IsInStock)
		api.POST("/reservations", inventory.ReserveStock)
	}
	return router
}
