package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"paymentcore.backend/internal/domain/entities"
)

// PaymentRepository defines payment data operations. Only the Payment
// Orchestrator reads or writes this table.
type PaymentRepository interface {
	Create(ctx context.Context, payment *entities.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Payment, error)
	GetByClientRequestID(ctx context.Context, userID uuid.UUID, clientRequestID string) (*entities.Payment, error)
	// Update performs a compare-and-set on Version: the WHERE clause
	// includes version = expectedVersion, and the new row's Version is
	// expectedVersion+1. Returns ErrConcurrentModified if no row matched.
	Update(ctx context.Context, payment *entities.Payment, expectedVersion int64) error
	// ListByUserID returns a page of payments for a user, newest first.
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Payment, int64, error)
	// ListPendingOlderThan finds payments stuck in PENDING for the
	// reconciliation worker's direct payment-side sweep.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.Payment, error)
	// ListInitiatedOlderThan finds INITIATED payments the client never
	// processed, for the expiry job. Bounded by limit per sweep.
	ListInitiatedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Payment, error)
}
