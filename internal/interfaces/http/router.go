package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paymentcore.backend/internal/interfaces/http/handlers"
	"paymentcore.backend/internal/interfaces/http/middleware"
)

// NewRouter wires the backend's HTTP surface: request id and
// structured-logging middleware run for every request, identity
// extraction runs for everything under /api/v1 since the Edge Filter
// is the only thing that reaches this service directly in production.
func NewRouter(paymentHandler *handlers.PaymentHandler, walletHandler *handlers.WalletHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())

	router.GET("/actuator/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.IdentityMiddleware())
	{
		api.POST("/payment", paymentHandler.Initiate)
		api.GET("/payment", paymentHandler.List)
		api.POST("/payment/:id/process", paymentHandler.Process)
		api.GET("/payment/:id/status", paymentHandler.Status)

		api.POST("/wallet", walletHandler.Create)
		api.POST("/wallet/:id/reserve", walletHandler.Reserve)
		api.POST("/wallet/:id/confirm", walletHandler.Confirm)
		api.POST("/wallet/:id/cancel", walletHandler.Cancel)
		api.POST("/wallet/:id/topup", walletHandler.TopUp)
		api.POST("/wallet/:id/transfer", walletHandler.Transfer)
		api.GET("/wallet/:id/balance", walletHandler.Balance)
		api.GET("/wallet/:id/transactions", walletHandler.History)
		api.GET("/wallet/:id/aggregate", walletHandler.MonthlyAggregate)
	}

	return router
}
