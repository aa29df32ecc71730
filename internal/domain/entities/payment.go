package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// PaymentStatus is the lifecycle state of a Payment.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentExpired   PaymentStatus = "EXPIRED"
)

// legalTransitions enumerates INITIATED -> PENDING|SUCCESS|FAILED,
// PENDING -> SUCCESS|FAILED, INITIATED -> EXPIRED. EXPIRED -> INITIATED
// is handled separately by ResetForReuse since it is a field-clearing
// reset, not a plain status move.
var legalTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentInitiated: {PaymentPending: true, PaymentSuccess: true, PaymentFailed: true, PaymentExpired: true},
	PaymentPending:   {PaymentSuccess: true, PaymentFailed: true},
}

// Payment is the Payment Orchestrator's sole persisted entity.
// (ClientRequestID, UserID) is unique; SUCCESS and FAILED never
// transition further.
type Payment struct {
	ID                    uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	UserID                uuid.UUID       `json:"userId" gorm:"index:idx_payment_client_request,unique"`
	Amount                decimal.Decimal `json:"amount" gorm:"type:decimal(15,2)"`
	Currency              string          `json:"currency" gorm:"type:varchar(3)"`
	ClientRequestID       string          `json:"clientRequestId" gorm:"index:idx_payment_client_request,unique"`
	WalletID              uuid.UUID       `json:"walletId"`
	Status                PaymentStatus   `json:"status"`
	Version               int64           `json:"version"`
	Provider              null.String     `json:"provider,omitempty"`
	ProviderTransactionID null.String     `json:"providerTransactionId,omitempty"`
	WalletTransactionID   *uuid.UUID      `json:"walletTransactionId,omitempty"`
	FailureCode           null.String     `json:"failureCode,omitempty"`
	FailureMessage        null.String     `json:"failureMessage,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

func (Payment) TableName() string { return "payments" }

// CanTransitionTo reports whether moving to next is legal.
func (p Payment) CanTransitionTo(next PaymentStatus) bool {
	return legalTransitions[p.Status][next]
}

// ResetForReuse implements the EXPIRED -> INITIATED reuse path: amount/currency/walletId are overwritten from the new
// request and provider/wallet fields are cleared. Only legal when the
// payment is currently EXPIRED.
func (p *Payment) ResetForReuse(amount decimal.Decimal, currency string, walletID uuid.UUID) {
	p.Status = PaymentInitiated
	p.Amount = amount
	p.Currency = currency
	p.WalletID = walletID
	p.Provider = null.StringFromPtr(nil)
	p.ProviderTransactionID = null.StringFromPtr(nil)
	p.WalletTransactionID = nil
	p.FailureCode = null.StringFromPtr(nil)
	p.FailureMessage = null.StringFromPtr(nil)
}

// ProviderFailureCode enumerates the Provider Adapter's failure
// taxonomy. Retryability is intrinsic to the code, not a
// separate configuration.
type ProviderFailureCode string

const (
	FailureCardDeclined        ProviderFailureCode = "CARD_DECLINED"
	FailureInsufficientFunds   ProviderFailureCode = "INSUFFICIENT_FUNDS"
	FailureExpiredCard         ProviderFailureCode = "EXPIRED_CARD"
	FailureInvalidCard         ProviderFailureCode = "INVALID_CARD"
	FailureFraudSuspected      ProviderFailureCode = "FRAUD_SUSPECTED"
	FailureNetworkError        ProviderFailureCode = "NETWORK_ERROR"
	FailureProviderUnavailable ProviderFailureCode = "PROVIDER_UNAVAILABLE"
	FailureRateLimited         ProviderFailureCode = "RATE_LIMITED"
	FailureTransactionNotFound ProviderFailureCode = "TRANSACTION_NOT_FOUND"
)

// Retryable reports whether the adapter failure code is intrinsically
// retryable: network/unavailable/rate-limited are, the rest
// (declined, insufficient funds, expired/invalid card, fraud, not
// found) are not.
func (c ProviderFailureCode) Retryable() bool {
	switch c {
	case FailureNetworkError, FailureProviderUnavailable, FailureRateLimited:
		return true
	default:
		return false
	}
}

// ChargeOutcomeStatus tags the sum type returned by the Provider
// Adapter's charge operation.
type ChargeOutcomeStatus string

const (
	ChargeSuccess ChargeOutcomeStatus = "SUCCESS"
	ChargePending ChargeOutcomeStatus = "PENDING"
	ChargeFailed  ChargeOutcomeStatus = "FAILED"
)

// ChargeOutcome is the non-persistent value returned by the Provider
// Adapter contract. It is a tagged variant: callers switch on Status
// rather than relying on a thrown exception to signal failure.
type ChargeOutcome struct {
	Status                ChargeOutcomeStatus
	Provider              string
	ProviderTransactionID string
	FailureCode           ProviderFailureCode
	Message               string
	Retryable             bool
	ProcessedAt           time.Time
}
