package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paymentcore.backend/internal/domain/entities"
)

// ChargeRequest carries everything the Provider Adapter needs to
// attempt an external charge. IdempotencyKey defaults to the
// stringified PaymentID when the caller leaves it empty.
type ChargeRequest struct {
	PaymentID          uuid.UUID
	Amount             decimal.Decimal
	Currency           string
	PaymentMethodToken string
	Description        string
	IdempotencyKey      string
}

// Adapter is the Provider Adapter contract: a synchronous charge and a
// status lookup, both returning a tagged ChargeOutcome rather than
// throwing as control flow.
type Adapter interface {
	Charge(ctx context.Context, req ChargeRequest) (entities.ChargeOutcome, error)
	GetTransactionStatus(ctx context.Context, providerTransactionID string) (entities.ChargeOutcome, error)
	ProviderName() string
}
