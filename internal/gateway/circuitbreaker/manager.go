package circuitbreaker

import (
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"paymentcore.backend/internal/config"
	"paymentcore.backend/pkg/logger"
)

// Manager holds one circuit breaker per routed service, keyed by the
// route prefix the Edge Filter dispatches on. A tripped breaker on one
// backend route never affects another.
type Manager struct {
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      config.GatewayConfig
}

// NewManager builds a Manager with one breaker per named route.
func NewManager(cfg config.GatewayConfig, routes ...string) *Manager {
	m := &Manager{breakers: make(map[string]*gobreaker.CircuitBreaker, len(routes)), cfg: cfg}
	for _, route := range routes {
		m.breakers[route] = gobreaker.NewCircuitBreaker(settingsFor(route, cfg))
	}
	return m
}

func settingsFor(name string, cfg config.GatewayConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.BreakerConsecutiveErr > 0 && counts.ConsecutiveFailures >= cfg.BreakerConsecutiveErr {
				return true
			}
			if cfg.BreakerFailureRatio > 0 && cfg.BreakerMinRequests > 0 && counts.Requests >= cfg.BreakerMinRequests {
				return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(nil, "circuit breaker state change",
				zap.String("route", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
}

// Execute runs fn through the named route's breaker. Routes with no
// registered breaker run fn directly (pass-through).
func (m *Manager) Execute(route string, fn func() (interface{}, error)) (interface{}, error) {
	breaker, ok := m.breakers[route]
	if !ok {
		return fn()
	}
	return breaker.Execute(fn)
}

// IsOpen reports whether the named route's breaker is currently open.
func (m *Manager) IsOpen(route string) bool {
	breaker, ok := m.breakers[route]
	if !ok {
		return false
	}
	return breaker.State() == gobreaker.StateOpen
}
