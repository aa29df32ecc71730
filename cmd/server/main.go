package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"paymentcore.backend/internal/config"
	domainprovider "paymentcore.backend/internal/domain/provider"
	"paymentcore.backend/internal/infrastructure/jobs"
	"paymentcore.backend/internal/infrastructure/provider"
	"paymentcore.backend/internal/infrastructure/walletclient"
	"paymentcore.backend/internal/infrastructure/repositories"
	httprouter "paymentcore.backend/internal/interfaces/http"
	"paymentcore.backend/internal/interfaces/http/handlers"
	"paymentcore.backend/internal/usecases"
	"paymentcore.backend/pkg/logger"
	"paymentcore.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{PrepareStmt: false})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
)

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
	logger.Info(context.Background(), "logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(context.Background(), "failed to initialize redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("connected to postgresql via gorm")
	}

	paymentRepo := repositories.NewPaymentRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	uow := repositories.NewUnitOfWork(db)

	walletUsecase := usecases.NewWalletUsecase(walletRepo, uow)

	mockProvider := provider.NewMockProvider(
		cfg.Provider.SuccessRate,
		cfg.Provider.MinLatencyMs,
		cfg.Provider.MaxLatencyMs,
		cfg.Provider.TestTokenOutcomes,
	)
	adapters := map[string]domainprovider.Adapter{mockProvider.ProviderName(): mockProvider}

	var ledger usecases.WalletLedger = walletUsecase
	if cfg.Server.WalletLedgerURL != "" {
		ledger = walletclient.New(cfg.Server.WalletLedgerURL, 10*time.Second)
		logger.Info(context.Background(), "using remote wallet ledger", zap.String("url", cfg.Server.WalletLedgerURL))
	}
	paymentUsecase := usecases.NewPaymentUsecase(paymentRepo, ledger, uow, adapters, mockProvider.ProviderName())
	paymentUsecase.UseIdempotencyCache(usecases.NewRedisIdempotencyCache(cfg.Server.IdempotencyCacheTTL))

	paymentHandler := handlers.NewPaymentHandler(paymentUsecase)
	walletHandler := handlers.NewWalletHandler(walletUsecase)

	router := httprouter.NewRouter(paymentHandler, walletHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instanceID := uuid.NewString()
	reconciler := usecases.NewReconciliationWorker(paymentUsecase, walletUsecase, cfg.Reconciler.PendingAgeThreshold, cfg.Reconciler.LockTTL, instanceID)
	go reconciler.Run(ctx, cfg.Reconciler.Interval)

	expiryJob := jobs.NewPaymentExpiryJob(paymentUsecase, cfg.Expiry.Interval, cfg.Expiry.MaxAge, cfg.Expiry.BatchSize)
	go expiryJob.Start(ctx)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down server...")
		cancel()
	}()

	log.Printf("paymentcore backend starting on port %s", cfg.Server.Port)
	if err := runServer(router, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
