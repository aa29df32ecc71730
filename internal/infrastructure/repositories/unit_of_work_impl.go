package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	domainRepos "paymentcore.backend/internal/domain/repositories"
)

type contextKey string

const (
	txKey   contextKey = "tx_db"
	lockKey contextKey = "lock"
)

// UnitOfWorkImpl implements UnitOfWork using GORM.
type UnitOfWorkImpl struct {
	db *gorm.DB
}

// NewUnitOfWork creates a new UnitOfWork.
func NewUnitOfWork(db *gorm.DB) domainRepos.UnitOfWork {
	return &UnitOfWorkImpl{db: db}
}

// Do executes the given function within a transaction scope.
func (u *UnitOfWorkImpl) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.run(ctx, u.GetDB(ctx), fn)
}

// DoIndependent opens a fresh transaction off the root connection,
// detached from any transaction already carried on ctx. This is the
// "requires-new-transaction" pattern: the caller's outer
// transaction may be poisoned (e.g. after a unique-constraint
// violation) and is never touched here.
func (u *UnitOfWorkImpl) DoIndependent(ctx context.Context, fn func(ctx context.Context) error) error {
	cleanCtx := context.WithValue(ctx, txKey, nil)
	return u.run(cleanCtx, u.db, fn)
}

// run wraps fn in a transaction on base. When base is itself already a
// transaction (the Wallet Ledger called from inside the orchestrator's
// scope), GORM nests via a savepoint, so the ledger's methods compose
// either standalone or nested.
func (u *UnitOfWorkImpl) run(ctx context.Context, base *gorm.DB, fn func(ctx context.Context) error) error {
	return base.Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

// WithLock adds a locking clause to the context for subsequent
// repository calls.
func (u *UnitOfWorkImpl) WithLock(ctx context.Context) context.Context {
	return context.WithValue(ctx, lockKey, true)
}

// GetDB extracts the transaction DB from context if present, otherwise
// returns the standard DB.
func (u *UnitOfWorkImpl) GetDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx
	}
	return u.db
}

// GetDB is the package-level helper used by other repositories in this
// package: resolves the ambient transaction (if any) and applies a
// pessimistic row lock when the context was marked via WithLock.
func GetDB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	db := fallback
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		db = tx
	}

	// SQLite has no SELECT ... FOR UPDATE; its single-writer lock
	// serializes instead, so the clause is only added on Postgres.
	if lock, ok := ctx.Value(lockKey).(bool); ok && lock && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	return db
}
