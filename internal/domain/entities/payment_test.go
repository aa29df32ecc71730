package entities

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestPayment_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from  PaymentStatus
		to    PaymentStatus
		legal bool
	}{
		{PaymentInitiated, PaymentPending, true},
		{PaymentInitiated, PaymentSuccess, true},
		{PaymentInitiated, PaymentFailed, true},
		{PaymentInitiated, PaymentExpired, true},
		{PaymentPending, PaymentSuccess, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentExpired, false},
		{PaymentSuccess, PaymentFailed, false},
		{PaymentSuccess, PaymentInitiated, false},
		{PaymentFailed, PaymentSuccess, false},
		{PaymentExpired, PaymentPending, false},
	}
	for _, tc := range cases {
		p := Payment{Status: tc.from}
		assert.Equal(t, tc.legal, p.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestPayment_ResetForReuse(t *testing.T) {
	walletTxID := uuid.Must(uuid.NewV7())
	p := &Payment{
		Status:                PaymentExpired,
		Amount:                decimal.RequireFromString("10.00"),
		Currency:              "USD",
		Provider:              null.StringFrom("mock"),
		ProviderTransactionID: null.StringFrom("stale"),
		WalletTransactionID:   &walletTxID,
		FailureCode:           null.StringFrom("NETWORK_ERROR"),
		FailureMessage:        null.StringFrom("timed out"),
	}

	newWallet := uuid.Must(uuid.NewV7())
	p.ResetForReuse(decimal.RequireFromString("42.00"), "SGD", newWallet)

	assert.Equal(t, PaymentInitiated, p.Status)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("42.00")))
	assert.Equal(t, "SGD", p.Currency)
	assert.Equal(t, newWallet, p.WalletID)
	assert.False(t, p.Provider.Valid)
	assert.False(t, p.ProviderTransactionID.Valid)
	assert.Nil(t, p.WalletTransactionID)
	assert.False(t, p.FailureCode.Valid)
	assert.False(t, p.FailureMessage.Valid)
}

func TestProviderFailureCode_Retryable(t *testing.T) {
	retryable := []ProviderFailureCode{FailureNetworkError, FailureProviderUnavailable, FailureRateLimited}
	terminal := []ProviderFailureCode{
		FailureCardDeclined, FailureInsufficientFunds, FailureExpiredCard,
		FailureInvalidCard, FailureFraudSuspected, FailureTransactionNotFound,
	}

	for _, code := range retryable {
		assert.True(t, code.Retryable(), string(code))
	}
	for _, code := range terminal {
		assert.False(t, code.Retryable(), string(code))
	}
}
