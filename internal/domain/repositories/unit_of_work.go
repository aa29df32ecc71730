package repositories

import (
	"context"
)

// UnitOfWork defines the interface for atomic operations.
type UnitOfWork interface {
	// Do executes the given function within a transaction scope.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	// DoIndependent opens a brand-new transaction regardless of any
	// transaction already present on ctx, ignoring it rather than
	// nesting inside it. Used for the "requires-new-transaction"
	// pattern: recovery work that must commit even though the
	// outer transaction is poisoned and headed for rollback, e.g.
	// duplicate-key recovery during payment initiation.
	DoIndependent(ctx context.Context, fn func(ctx context.Context) error) error
	// WithLock adds a locking clause to the context for subsequent
	// repository calls.
	WithLock(ctx context.Context) context.Context
}
