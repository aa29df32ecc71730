package main

import (
	"errors"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paymentcore.backend/internal/config"
)

func withMainHooks(t *testing.T) {
	t.Helper()
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origInitRedis := initRedis
	origOpenDB := openDB
	origRunServer := runServer

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		initRedis = origInitRedis
		openDB = origOpenDB
		runServer = origRunServer
	})
}

func baseTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:                "18080",
			Env:                 "development",
			IdempotencyCacheTTL: time.Hour,
		},
		Database: config.DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres",
			Password: "postgres", DBName: "paymentcore", SSLMode: "disable",
		},
		Redis: config.RedisConfig{URL: "redis://localhost:6379"},
		Provider: config.ProviderConfig{
			SuccessRate:       1.0,
			TestTokenOutcomes: map[string]string{"tok_visa_success": "SUCCESS"},
		},
		Reconciler: config.ReconcilerConfig{
			Interval:            time.Minute,
			PendingAgeThreshold: 2 * time.Minute,
			LockTTL:             30 * time.Second,
		},
		Expiry: config.ExpiryConfig{
			Interval:  time.Minute,
			MaxAge:    30 * time.Minute,
			BatchSize: 100,
		},
	}
}

func stubHappyHooks(t *testing.T) {
	t.Helper()
	loadDotenv = func(...string) error { return nil }
	loadCfg = baseTestConfig
	initLog = func(string) {}
	initRedis = func(url, password string) error { return nil }
	openDB = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	}
}

func TestRunMainProcess_RedisInitError(t *testing.T) {
	withMainHooks(t)
	stubHappyHooks(t)

	initRedis = func(url, password string) error { return errors.New("redis down") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestRunMainProcess_DatabaseOpenError(t *testing.T) {
	withMainHooks(t)
	stubHappyHooks(t)

	openDB = func(dsn string) (*gorm.DB, error) { return nil, errors.New("no route to host") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestRunMainProcess_StartsAndServes(t *testing.T) {
	withMainHooks(t)
	stubHappyHooks(t)

	var servedPort string
	runServer = func(r *gin.Engine, port string) error {
		servedPort = port
		require.NotNil(t, r)
		return nil
	}

	require.NoError(t, runMainProcess())
	assert.Equal(t, "18080", servedPort)
}

func TestRunMainProcess_ServerErrorPropagates(t *testing.T) {
	withMainHooks(t)
	stubHappyHooks(t)

	runServer = func(r *gin.Engine, port string) error { return errors.New("port in use") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start server")
}
