package usecases_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paymentcore.backend/internal/domain/entities"
	domainRepos "paymentcore.backend/internal/domain/repositories"
	infrarepos "paymentcore.backend/internal/infrastructure/repositories"
	"paymentcore.backend/internal/usecases"
)

var usecaseDBCounter int

// ledgerFixture wires real repositories and a real unit of work over an
// in-memory SQLite database, so the usecase tests exercise the actual
// transactional composition rather than mock choreography.
type ledgerFixture struct {
	db          *gorm.DB
	walletRepo  domainRepos.WalletRepository
	paymentRepo domainRepos.PaymentRepository
	uow         domainRepos.UnitOfWork
	wallets     *usecases.WalletUsecase
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	usecaseDBCounter++
	dsn := fmt.Sprintf("file:usecase_%d_%d?mode=memory&cache=shared", usecaseDBCounter, len(t.Name()))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE wallets (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			balance DECIMAL(15,2),
			reserved_balance DECIMAL(15,2),
			currency TEXT,
			version INTEGER,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE wallet_transactions (
			id TEXT PRIMARY KEY,
			wallet_id TEXT,
			amount DECIMAL(15,2),
			transaction_type TEXT,
			status TEXT,
			reference_id TEXT,
			reference_type TEXT,
			description TEXT,
			created_at DATETIME
		)`,
		`CREATE UNIQUE INDEX idx_wallet_tx_reference ON wallet_transactions(reference_id, reference_type) WHERE reference_type = 'PAYMENT'`,
		`CREATE TABLE payments (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			amount DECIMAL(15,2),
			currency TEXT,
			client_request_id TEXT,
			wallet_id TEXT,
			status TEXT,
			version INTEGER,
			provider TEXT,
			provider_transaction_id TEXT,
			wallet_transaction_id TEXT,
			failure_code TEXT,
			failure_message TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE UNIQUE INDEX idx_payment_client_request ON payments(user_id, client_request_id)`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}

	walletRepo := infrarepos.NewWalletRepository(db)
	paymentRepo := infrarepos.NewPaymentRepository(db)
	uow := infrarepos.NewUnitOfWork(db)

	return &ledgerFixture{
		db:          db,
		walletRepo:  walletRepo,
		paymentRepo: paymentRepo,
		uow:         uow,
		wallets:     usecases.NewWalletUsecase(walletRepo, uow),
	}
}

func (f *ledgerFixture) seedWallet(t *testing.T, userID uuid.UUID, balance, reserved string) *entities.Wallet {
	t.Helper()
	w := &entities.Wallet{
		ID:              uuid.Must(uuid.NewV7()),
		UserID:          userID,
		Balance:         decimal.RequireFromString(balance),
		ReservedBalance: decimal.RequireFromString(reserved),
		Currency:        "SGD",
		Version:         1,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, f.db.Create(w).Error)
	return w
}

func (f *ledgerFixture) reloadWallet(t *testing.T, id uuid.UUID) *entities.Wallet {
	t.Helper()
	var w entities.Wallet
	require.NoError(t, f.db.First(&w, "id = ?", id).Error)
	return &w
}

func (f *ledgerFixture) reloadTransaction(t *testing.T, id uuid.UUID) *entities.WalletTransaction {
	t.Helper()
	var tx entities.WalletTransaction
	require.NoError(t, f.db.First(&tx, "id = ?", id).Error)
	return &tx
}

func (f *ledgerFixture) reloadPayment(t *testing.T, id uuid.UUID) *entities.Payment {
	t.Helper()
	var p entities.Payment
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return &p
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimalEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}
