package entities

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWallet_Available(t *testing.T) {
	w := &Wallet{
		Balance:         decimal.RequireFromString("100.00"),
		ReservedBalance: decimal.RequireFromString("37.50"),
	}
	assert.True(t, w.Available().Equal(decimal.RequireFromString("62.50")))
}

func TestWalletTransaction_CanTransitionTo(t *testing.T) {
	pending := WalletTransaction{Status: TransactionPending}
	assert.True(t, pending.CanTransitionTo(TransactionCompleted))
	assert.True(t, pending.CanTransitionTo(TransactionCancelled))
	assert.False(t, pending.CanTransitionTo(TransactionPending))

	// Terminal states are final.
	completed := WalletTransaction{Status: TransactionCompleted}
	assert.False(t, completed.CanTransitionTo(TransactionCancelled))
	cancelled := WalletTransaction{Status: TransactionCancelled}
	assert.False(t, cancelled.CanTransitionTo(TransactionCompleted))
}
