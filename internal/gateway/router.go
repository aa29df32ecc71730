package gateway

import (
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paymentcore.backend/internal/config"
	"paymentcore.backend/internal/gateway/circuitbreaker"
	gwmiddleware "paymentcore.backend/internal/gateway/middleware"
	"paymentcore.backend/internal/gateway/proxy"
	"paymentcore.backend/internal/interfaces/http/middleware"
	"paymentcore.backend/pkg/jwt"
)

const (
	paymentServiceRoute = "payment_service"
	walletServiceRoute  = "wallet_service"
)

// NewRouter assembles the Edge Filter: auth + identity
// injection ahead of a prefix-dispatched reverse proxy that sends
// /api/v1/wallet to the wallet service and every other path to the
// payment service, each target behind its own circuit breaker. CORS is a single permissive header pass since the
// gateway is the only browser-facing surface.
func NewRouter(cfg *config.Config, validator *jwt.Validator) (*gin.Engine, error) {
	paymentTarget, err := url.Parse(cfg.Gateway.PaymentServiceURL)
	if err != nil {
		return nil, err
	}
	walletTarget, err := url.Parse(cfg.Gateway.WalletServiceURL)
	if err != nil {
		return nil, err
	}

	breakers := circuitbreaker.NewManager(cfg.Gateway, paymentServiceRoute, walletServiceRoute)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(corsMiddleware(cfg.Gateway.CORSAllowedOrigin))

	router.GET("/actuator/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.Use(gwmiddleware.AuthMiddleware(validator))
	router.NoRoute(proxy.Dispatch([]proxy.Route{
		{Prefix: "/api/v1/wallet", Target: walletTarget, ServiceName: walletServiceRoute},
		{Prefix: "/", Target: paymentTarget, ServiceName: paymentServiceRoute},
	}, breakers))

	return router, nil
}

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
