package usecases

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymentcore.backend/internal/domain/entities"
	domainerrors "paymentcore.backend/internal/domain/errors"
	domainprovider "paymentcore.backend/internal/domain/provider"
)

// TestMain shrinks the real inter-attempt waits for every test in this
// directory so retry-path tests run in milliseconds.
func TestMain(m *testing.M) {
	chargeBaseDelay = time.Millisecond
	versionRetrySleep = func(time.Duration) {}
	os.Exit(m.Run())
}

// scriptedAdapter plays back a fixed sequence of charge results, one
// per attempt; the last step repeats if the retry loop calls again.
type scriptedAdapter struct {
	steps []func() (entities.ChargeOutcome, error)
	calls int
}

func (a *scriptedAdapter) ProviderName() string { return "scripted" }

func (a *scriptedAdapter) Charge(ctx context.Context, req domainprovider.ChargeRequest) (entities.ChargeOutcome, error) {
	i := a.calls
	if i >= len(a.steps) {
		i = len(a.steps) - 1
	}
	a.calls++
	return a.steps[i]()
}

func (a *scriptedAdapter) GetTransactionStatus(ctx context.Context, providerTransactionID string) (entities.ChargeOutcome, error) {
	return entities.ChargeOutcome{}, errors.New("not scripted")
}

type classifiedErr struct {
	retryable bool
}

func (e *classifiedErr) Error() string   { return "provider fault" }
func (e *classifiedErr) Retryable() bool { return e.retryable }

func successStep() func() (entities.ChargeOutcome, error) {
	return func() (entities.ChargeOutcome, error) {
		return entities.ChargeOutcome{
			Status:                entities.ChargeSuccess,
			Provider:              "scripted",
			ProviderTransactionID: uuid.NewString(),
			ProcessedAt:           time.Now(),
		}, nil
	}
}

func failedStep(code entities.ProviderFailureCode) func() (entities.ChargeOutcome, error) {
	return func() (entities.ChargeOutcome, error) {
		return entities.ChargeOutcome{
			Status:      entities.ChargeFailed,
			Provider:    "scripted",
			FailureCode: code,
			Message:     string(code),
			Retryable:   code.Retryable(),
			ProcessedAt: time.Now(),
		}, nil
	}
}

func raiseStep(retryable bool) func() (entities.ChargeOutcome, error) {
	return func() (entities.ChargeOutcome, error) {
		return entities.ChargeOutcome{}, &classifiedErr{retryable: retryable}
	}
}

func chargeReq() domainprovider.ChargeRequest {
	return domainprovider.ChargeRequest{
		PaymentID: uuid.Must(uuid.NewV7()),
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "SGD",
	}
}

func TestChargeWithRetry_RetryableFailuresThenSuccess(t *testing.T) {
	adapter := &scriptedAdapter{steps: []func() (entities.ChargeOutcome, error){
		failedStep(entities.FailureNetworkError),
		failedStep(entities.FailureNetworkError),
		successStep(),
	}}

	u := &PaymentUsecase{}
	outcome := u.chargeWithRetry(context.Background(), adapter, chargeReq())

	assert.Equal(t, entities.ChargeSuccess, outcome.Status)
	assert.Equal(t, 3, adapter.calls)
}

func TestChargeWithRetry_NonRetryableReturnsImmediately(t *testing.T) {
	adapter := &scriptedAdapter{steps: []func() (entities.ChargeOutcome, error){
		failedStep(entities.FailureCardDeclined),
	}}

	u := &PaymentUsecase{}
	outcome := u.chargeWithRetry(context.Background(), adapter, chargeReq())

	assert.Equal(t, entities.ChargeFailed, outcome.Status)
	assert.Equal(t, entities.FailureCardDeclined, outcome.FailureCode)
	assert.Equal(t, 1, adapter.calls, "a declined card must not be retried")
}

func TestChargeWithRetry_ExhaustionReturnsLastObservedOutcome(t *testing.T) {
	adapter := &scriptedAdapter{steps: []func() (entities.ChargeOutcome, error){
		failedStep(entities.FailureNetworkError),
	}}

	u := &PaymentUsecase{}
	outcome := u.chargeWithRetry(context.Background(), adapter, chargeReq())

	assert.Equal(t, entities.ChargeFailed, outcome.Status)
	assert.Equal(t, entities.FailureNetworkError, outcome.FailureCode)
	assert.Equal(t, chargeMaxAttempts, adapter.calls)
}

func TestChargeWithRetry_RaisedErrorKeepsEarlierOutcome(t *testing.T) {
	adapter := &scriptedAdapter{steps: []func() (entities.ChargeOutcome, error){
		failedStep(entities.FailureRateLimited),
		raiseStep(true),
		raiseStep(true),
	}}

	u := &PaymentUsecase{}
	outcome := u.chargeWithRetry(context.Background(), adapter, chargeReq())

	// The last observed response wins over later raised faults.
	assert.Equal(t, entities.ChargeFailed, outcome.Status)
	assert.Equal(t, entities.FailureRateLimited, outcome.FailureCode)
	assert.Equal(t, 3, adapter.calls)
}

func TestChargeWithRetry_AllRaisedSynthesizesUnavailable(t *testing.T) {
	adapter := &scriptedAdapter{steps: []func() (entities.ChargeOutcome, error){
		raiseStep(true),
	}}

	u := &PaymentUsecase{}
	outcome := u.chargeWithRetry(context.Background(), adapter, chargeReq())

	assert.Equal(t, entities.ChargeFailed, outcome.Status)
	assert.Equal(t, entities.FailureProviderUnavailable, outcome.FailureCode)
	assert.False(t, outcome.Retryable)
	assert.Equal(t, chargeMaxAttempts, adapter.calls)
}

func TestChargeWithRetry_NonRetryableRaiseStopsEarly(t *testing.T) {
	adapter := &scriptedAdapter{steps: []func() (entities.ChargeOutcome, error){
		raiseStep(false),
	}}

	u := &PaymentUsecase{}
	outcome := u.chargeWithRetry(context.Background(), adapter, chargeReq())

	assert.Equal(t, entities.ChargeFailed, outcome.Status)
	assert.Equal(t, entities.FailureProviderUnavailable, outcome.FailureCode)
	assert.Equal(t, 1, adapter.calls)
}

func TestChargeWithRetry_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &scriptedAdapter{steps: []func() (entities.ChargeOutcome, error){
		func() (entities.ChargeOutcome, error) {
			cancel()
			return entities.ChargeOutcome{}, &classifiedErr{retryable: true}
		},
	}}

	u := &PaymentUsecase{}
	outcome := u.chargeWithRetry(ctx, adapter, chargeReq())

	assert.Equal(t, entities.ChargeFailed, outcome.Status)
	assert.False(t, outcome.Retryable)
	assert.Equal(t, 1, adapter.calls, "the inter-attempt wait must honor cancellation")
}

func TestWithVersionRetry_SucceedsAfterConflicts(t *testing.T) {
	attempts := 0
	err := withVersionRetry(func() error {
		attempts++
		if attempts < 3 {
			return domainerrors.ErrConcurrentModified
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithVersionRetry_ExhaustsAfterThreeAttempts(t *testing.T) {
	attempts := 0
	err := withVersionRetry(func() error {
		attempts++
		return domainerrors.ErrConcurrentModified
	})
	assert.ErrorIs(t, err, domainerrors.ErrConcurrentModified)
	assert.Equal(t, 3, attempts)
}

func TestWithVersionRetry_OtherErrorsNotRetried(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")
	err := withVersionRetry(func() error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}
