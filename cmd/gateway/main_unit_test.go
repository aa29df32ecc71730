package main

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymentcore.backend/internal/config"
	"paymentcore.backend/pkg/jwt"
)

func withGatewayHooks(t *testing.T) {
	t.Helper()
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origNewValidator := newValidator
	origRunServer := runServer

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		newValidator = origNewValidator
		runServer = origRunServer
	})
}

func gatewayTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Env: "development"},
		JWT: config.JWTConfig{
			PublicKeyPath: "/nonexistent/public.pem",
			Issuer:        "paymentcore",
			Audience:      "paymentcore-api",
		},
		Gateway: config.GatewayConfig{
			Port:                  "18081",
			CORSAllowedOrigin:     "*",
			PaymentServiceURL:     "http://localhost:18080",
			WalletServiceURL:      "http://localhost:18080",
			BreakerMaxRequests:    5,
			BreakerInterval:       time.Minute,
			BreakerTimeout:        30 * time.Second,
			BreakerConsecutiveErr: 5,
		},
	}
}

func stubGatewayHooks(t *testing.T) {
	t.Helper()
	loadDotenv = func(...string) error { return nil }
	loadCfg = gatewayTestConfig
	initLog = func(string) {}
	newValidator = func(publicKeyPath, issuer, audience string) (*jwt.Validator, error) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		return jwt.NewValidatorFromKey(&key.PublicKey, issuer, audience), nil
	}
}

func TestGatewayMain_ValidatorLoadErrorPropagates(t *testing.T) {
	withGatewayHooks(t)
	stubGatewayHooks(t)

	newValidator = func(publicKeyPath, issuer, audience string) (*jwt.Validator, error) {
		return nil, errors.New("open /nonexistent/public.pem: no such file")
	}

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public.pem")
}

func TestGatewayMain_BadServiceURLRejected(t *testing.T) {
	withGatewayHooks(t)
	stubGatewayHooks(t)

	loadCfg = func() *config.Config {
		cfg := gatewayTestConfig()
		cfg.Gateway.PaymentServiceURL = "http://bad url with spaces"
		return cfg
	}

	err := runMainProcess()
	assert.Error(t, err)
}

func TestGatewayMain_StartsAndServes(t *testing.T) {
	withGatewayHooks(t)
	stubGatewayHooks(t)

	var servedPort string
	runServer = func(r *gin.Engine, port string) error {
		servedPort = port
		require.NotNil(t, r)
		return nil
	}

	require.NoError(t, runMainProcess())
	assert.Equal(t, "18081", servedPort)
}
