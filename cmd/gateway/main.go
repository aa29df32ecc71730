package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"paymentcore.backend/internal/config"
	"paymentcore.backend/internal/gateway"
	"paymentcore.backend/pkg/jwt"
	"paymentcore.backend/pkg/logger"
)

var (
	loadDotenv   = godotenv.Load
	loadCfg      = config.Load
	initLog      = logger.Init
	newValidator = jwt.NewValidator
	runServer    = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
)

// main runs the Edge Filter as its own process, reverse
// proxying authenticated traffic to the wallet and payment services.
func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()
	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "gateway logger initialized", zap.String("env", cfg.Server.Env))

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator, err := newValidator(cfg.JWT.PublicKeyPath, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		return err
	}

	router, err := gateway.NewRouter(cfg, validator)
	if err != nil {
		return err
	}

	log.Printf("paymentcore edge filter starting on port %s", cfg.Gateway.Port)
	return runServer(router, cfg.Gateway.Port)
}
