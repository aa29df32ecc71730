package provider

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"paymentcore.backend/internal/domain/entities"
	domainprovider "paymentcore.backend/internal/domain/provider"
)

// transientError models a provider exception for a retryable outcome.
// The orchestrator treats this the same as an adapter-raised retryable
// fault.
type transientError struct {
	code entities.ProviderFailureCode
}

func (e *transientError) Error() string {
	return fmt.Sprintf("provider transient fault: %s", e.code)
}

func (e *transientError) Retryable() bool { return true }

// IsRetryable reports whether err is a retryable provider fault, for
// callers that only hold an error value (e.g. after retry exhaustion).
func IsRetryable(err error) bool {
	type retryabler interface{ Retryable() bool }
	if r, ok := err.(retryabler); ok {
		return r.Retryable()
	}
	return false
}

// MockProvider is the reference Provider Adapter implementation:
// deterministic for configured test tokens, otherwise a weighted random
// outcome against SuccessRate.
type MockProvider struct {
	name              string
	successRate       float64
	minLatency        time.Duration
	maxLatency        time.Duration
	testTokenOutcomes map[string]string

	mu        sync.Mutex
	outcomes  map[string]entities.ChargeOutcome
	byIdemKey map[string]entities.ChargeOutcome

	sleep func(time.Duration)
	rng   *rand.Rand
}

func NewMockProvider(successRate float64, minLatencyMs, maxLatencyMs int, testTokenOutcomes map[string]string) *MockProvider {
	return &MockProvider{
		name:              "mock",
		successRate:       successRate,
		minLatency:        time.Duration(minLatencyMs) * time.Millisecond,
		maxLatency:        time.Duration(maxLatencyMs) * time.Millisecond,
		testTokenOutcomes: testTokenOutcomes,
		outcomes:          make(map[string]entities.ChargeOutcome),
		byIdemKey:         make(map[string]entities.ChargeOutcome),
		sleep:             time.Sleep,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) ProviderName() string { return m.name }

func (m *MockProvider) Charge(ctx context.Context, req domainprovider.ChargeRequest) (entities.ChargeOutcome, error) {
	m.simulateLatency()

	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = req.PaymentID.String()
	}

	// A settled charge replayed under the same idempotency key returns
	// the stored outcome rather than charging again. Transient faults
	// are not stored, so retries still reach the charge path.
	m.mu.Lock()
	if prior, ok := m.byIdemKey[idemKey]; ok {
		m.mu.Unlock()
		return prior, nil
	}
	m.mu.Unlock()

	outcome, err := m.charge(req)
	if err != nil {
		return entities.ChargeOutcome{}, err
	}

	m.mu.Lock()
	m.byIdemKey[idemKey] = outcome
	m.mu.Unlock()
	return outcome, nil
}

func (m *MockProvider) charge(req domainprovider.ChargeRequest) (entities.ChargeOutcome, error) {
	if outcomeName, ok := m.testTokenOutcomes[req.PaymentMethodToken]; ok {
		return m.resolveOutcome(entities.ProviderFailureCode(outcomeName))
	}

	if m.rng.Float64() < m.successRate {
		return m.storeSuccess(), nil
	}

	return m.resolveOutcome(m.weightedFailureCode())
}

func (m *MockProvider) GetTransactionStatus(ctx context.Context, providerTransactionID string) (entities.ChargeOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcome, ok := m.outcomes[providerTransactionID]
	if !ok {
		return entities.ChargeOutcome{
			Status:      entities.ChargeFailed,
			Provider:    m.name,
			FailureCode: entities.FailureTransactionNotFound,
			Message:     "no transaction found for id",
			Retryable:   false,
			ProcessedAt: time.Now(),
		}, nil
	}
	return outcome, nil
}

func (m *MockProvider) simulateLatency() {
	span := m.maxLatency - m.minLatency
	latency := m.minLatency
	if span > 0 {
		latency += time.Duration(m.rng.Int63n(int64(span)))
	}
	m.sleep(latency)
}

// resolveOutcome turns a named outcome into either a stored
// ChargeOutcome (SUCCESS or a non-retryable FAILED) or a transient
// error (the three retryable failure classes).
func (m *MockProvider) resolveOutcome(code entities.ProviderFailureCode) (entities.ChargeOutcome, error) {
	if code == "SUCCESS" {
		return m.storeSuccess(), nil
	}
	if code.Retryable() {
		return entities.ChargeOutcome{}, &transientError{code: code}
	}
	return m.storeFailure(code), nil
}

func (m *MockProvider) storeSuccess() entities.ChargeOutcome {
	outcome := entities.ChargeOutcome{
		Status:                entities.ChargeSuccess,
		Provider:              m.name,
		ProviderTransactionID: uuid.Must(uuid.NewV7()).String(),
		Retryable:             false,
		ProcessedAt:           time.Now(),
	}
	m.mu.Lock()
	m.outcomes[outcome.ProviderTransactionID] = outcome
	m.mu.Unlock()
	return outcome
}

func (m *MockProvider) storeFailure(code entities.ProviderFailureCode) entities.ChargeOutcome {
	outcome := entities.ChargeOutcome{
		Status:                entities.ChargeFailed,
		Provider:              m.name,
		ProviderTransactionID: uuid.Must(uuid.NewV7()).String(),
		FailureCode:           code,
		Message:               string(code),
		Retryable:             code.Retryable(),
		ProcessedAt:           time.Now(),
	}
	m.mu.Lock()
	m.outcomes[outcome.ProviderTransactionID] = outcome
	m.mu.Unlock()
	return outcome
}

// weightedFailureCode draws from the random-failure distribution:
// CARD_DECLINED 40%, INSUFFICIENT_FUNDS 20%, NETWORK_ERROR 20%,
// PROVIDER_UNAVAILABLE 20%.
func (m *MockProvider) weightedFailureCode() entities.ProviderFailureCode {
	roll := m.rng.Float64()
	switch {
	case roll < 0.40:
		return entities.FailureCardDeclined
	case roll < 0.60:
		return entities.FailureInsufficientFunds
	case roll < 0.80:
		return entities.FailureNetworkError
	default:
		return entities.FailureProviderUnavailable
	}
}
