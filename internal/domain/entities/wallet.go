package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds one user's spendable balance.
//
// Invariants (enforced by the Wallet Ledger, never by callers):
//
//	ReservedBalance >= 0
//	Balance - ReservedBalance >= 0  (available balance never negative)
//	Version strictly increases on every mutation
type Wallet struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	UserID          uuid.UUID       `json:"userId" gorm:"index"`
	Balance         decimal.Decimal `json:"balance" gorm:"type:decimal(15,2)"`
	ReservedBalance decimal.Decimal `json:"reservedBalance" gorm:"type:decimal(15,2)"`
	Currency        string          `json:"currency" gorm:"type:varchar(3)"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Available returns the spendable balance: Balance - ReservedBalance.
func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.ReservedBalance)
}

// TableName pins the GORM table name explicitly; entity names are
// domain nouns, not table names.
func (Wallet) TableName() string { return "wallets" }

// WalletTransactionType distinguishes ledger entries.
type WalletTransactionType string

const (
	TransactionCredit WalletTransactionType = "CREDIT"
	TransactionDebit  WalletTransactionType = "DEBIT"
)

// WalletTransactionStatus is the lifecycle of one ledger entry.
type WalletTransactionStatus string

const (
	TransactionPending   WalletTransactionStatus = "PENDING"
	TransactionCompleted WalletTransactionStatus = "COMPLETED"
	TransactionCancelled WalletTransactionStatus = "CANCELLED"
)

// WalletTransactionReferenceType names the external subsystem a
// transaction's ReferenceID points at.
type WalletTransactionReferenceType string

const (
	ReferenceTopUp    WalletTransactionReferenceType = "TOPUP"
	ReferenceTransfer WalletTransactionReferenceType = "TRANSFER"
	ReferencePayment  WalletTransactionReferenceType = "PAYMENT"
)

// WalletTransaction is an immutable-except-status journal entry for one
// wallet. Status only moves PENDING -> COMPLETED|CANCELLED, terminal
// is final. (ReferenceID, ReferenceType=PAYMENT) is unique, used for
// reservation idempotency.
type WalletTransaction struct {
	ID            uuid.UUID                       `json:"id" gorm:"type:uuid;primary_key"`
	WalletID      uuid.UUID                       `json:"walletId" gorm:"index"`
	Amount        decimal.Decimal                 `json:"amount" gorm:"type:decimal(15,2)"`
	Type          WalletTransactionType            `json:"transactionType" gorm:"column:transaction_type"`
	Status        WalletTransactionStatus          `json:"status"`
	ReferenceID   *uuid.UUID                       `json:"referenceId,omitempty" gorm:"index:idx_wallet_tx_reference,unique,where:reference_type='PAYMENT'"`
	ReferenceType *WalletTransactionReferenceType  `json:"referenceType,omitempty" gorm:"index:idx_wallet_tx_reference,unique,where:reference_type='PAYMENT'"`
	Description   string                           `json:"description"`
	CreatedAt     time.Time                        `json:"createdAt"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }

// CanTransitionTo reports whether moving from the current status to next
// is a legal transition.
func (t WalletTransaction) CanTransitionTo(next WalletTransactionStatus) bool {
	if t.Status != TransactionPending {
		return false
	}
	return next == TransactionCompleted || next == TransactionCancelled
}
