package repositories

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBCounter int

// newTestDB opens an in-memory SQLite database unique to the calling
// test, mirroring the production schema closely enough to exercise the
// repository implementations without a real Postgres instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:test_%d_%d?mode=memory&cache=shared", testDBCounter, len(t.Name()))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	createWalletTable(t, db)
	createWalletTransactionTable(t, db)
	createPaymentTable(t, db)

	return db
}

func mustExec(t *testing.T, db *gorm.DB, query string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(query, args...).Error)
}

func createWalletTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		balance DECIMAL(15,2),
		reserved_balance DECIMAL(15,2),
		currency TEXT,
		version INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	)`)
}

func createWalletTransactionTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE wallet_transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT,
		amount DECIMAL(15,2),
		transaction_type TEXT,
		status TEXT,
		reference_id TEXT,
		reference_type TEXT,
		description TEXT,
		created_at DATETIME
	)`)
	mustExec(t, db, `CREATE UNIQUE INDEX idx_wallet_tx_reference ON wallet_transactions(reference_id, reference_type) WHERE reference_type = 'PAYMENT'`)
}

func createPaymentTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE payments (
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
	)`)
	mustExec(t, db, `CREATE UNIQUE INDEX idx_payment_client_request ON payments(user_id, client_request_id)`)
}
