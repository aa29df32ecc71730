package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"paymentcore.backend/internal/domain/entities"
)

// WalletRepository defines wallet and wallet-transaction data
// operations. Only the Wallet Ledger reads or writes these tables;
// other components hold identifiers, never rows.
type WalletRepository interface {
	Create(ctx context.Context, wallet *entities.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	// Update performs a compare-and-set on Version: the row is written
	// only if its persisted version still equals expectedVersion.
	// Returns ErrConcurrentModified when no row matched.
	Update(ctx context.Context, wallet *entities.Wallet, expectedVersion int64) error

	CreateTransaction(ctx context.Context, tx *entities.WalletTransaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*entities.WalletTransaction, error)
	GetTransactionByReference(ctx context.Context, referenceID uuid.UUID, referenceType entities.WalletTransactionReferenceType) (*entities.WalletTransaction, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status entities.WalletTransactionStatus) error
	ListTransactionsByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.WalletTransaction, int64, error)
	// ListPendingOlderThan supports the reconciliation worker's sweep
	// over stuck reservations.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.WalletTransaction, error)
	// SumCompletedByTypeInMonth supports the monthly aggregate query.
	SumCompletedByTypeInMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month, txType entities.WalletTransactionType) (string, error)
}
