package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paymentcore.backend/internal/domain/entities"
	domainerrors "paymentcore.backend/internal/domain/errors"
	"paymentcore.backend/internal/domain/repositories"
	"paymentcore.backend/pkg/utils"
)

// ReservationResult is the response shape for reserveFunds.
type ReservationResult struct {
	WalletTransactionID uuid.UUID
	WalletID            uuid.UUID
	AmountReserved      decimal.Decimal
	RemainingBalance    decimal.Decimal
}

// TransactionHistoryPage is one page of the wallet transaction
// journal: ten entries, newest first.
type TransactionHistoryPage struct {
	Transactions []*entities.WalletTransaction
	Meta         utils.PaginationMeta
}

const walletHistoryPageSize = 10

// WalletUsecase implements the Wallet Ledger: balance/reserved
// balance bookkeeping and the reserve/confirm/cancel protocol. Every
// mutating method except CreateWallet (a single insert) opens its own
// unit-of-work scope; when called from
// inside the Payment Orchestrator's own transaction, GORM nests it as
// a savepoint, so the methods compose safely either standalone (the
// direct wallet HTTP endpoints) or nested (processPayment).
type WalletUsecase struct {
	walletRepo repositories.WalletRepository
	uow        repositories.UnitOfWork
}

func NewWalletUsecase(walletRepo repositories.WalletRepository, uow repositories.UnitOfWork) *WalletUsecase {
	return &WalletUsecase{walletRepo: walletRepo, uow: uow}
}

// CreateWallet opens a new empty wallet for userID. Wallets are never
// destroyed once created.
func (u *WalletUsecase) CreateWallet(ctx context.Context, userID uuid.UUID, currency string) (*entities.Wallet, error) {
	if currency == "" {
		currency = "SGD"
	}
	if len(currency) != 3 {
		return nil, domainerrors.BadRequest("currency must be a 3-letter code")
	}

	wallet := &entities.Wallet{
		ID:              uuid.Must(uuid.NewV7()),
		UserID:          userID,
		Balance:         decimal.Zero,
		ReservedBalance: decimal.Zero,
		Currency:        currency,
		Version:         1,
	}
	if err := u.walletRepo.Create(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ReserveFunds earmarks amount on wallet walletID for paymentID.
// Idempotent: repeated calls with the same paymentID return the first
// reservation's result without debiting again.
func (u *WalletUsecase) ReserveFunds(ctx context.Context, walletID, userID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID) (*ReservationResult, error) {
	var result *ReservationResult

	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		if existing, err := u.walletRepo.GetTransactionByReference(txCtx, paymentID, entities.ReferencePayment); err == nil {
			wallet, err := u.walletRepo.GetByID(txCtx, existing.WalletID)
			if err != nil {
				return err
			}
			result = &ReservationResult{
				WalletTransactionID: existing.ID,
				WalletID:            existing.WalletID,
				AmountReserved:      existing.Amount,
				RemainingBalance:    wallet.Available(),
			}
			return nil
		} else if !errors.Is(err, domainerrors.ErrNotFound) {
			return err
		}

		wallet, err := u.walletRepo.GetByID(txCtx, walletID)
		if err != nil {
			return err
		}
		// Ownership is checked before disclosure of any balance detail;
		// a foreign wallet reads as not found.
		if wallet.UserID != userID {
			return domainerrors.NotFound("wallet not found")
		}
		if currency != "" && wallet.Currency != currency {
			return domainerrors.BadRequest("currency mismatch")
		}
		if wallet.Available().LessThan(amount) {
			return domainerrors.InsufficientBalance("insufficient balance")
		}

		expectedVersion := wallet.Version
		wallet.ReservedBalance = wallet.ReservedBalance.Add(amount)
		wallet.Version++

		if err := u.walletRepo.Update(txCtx, wallet, expectedVersion); err != nil {
			if errors.Is(err, domainerrors.ErrConcurrentModified) {
				reread, rerr := u.walletRepo.GetByID(txCtx, walletID)
				if rerr != nil {
					return rerr
				}
				if reread.Version != expectedVersion {
					return domainerrors.New(domainerrors.KindConflict, "concurrent modification", domainerrors.ErrConcurrentModified)
				}
				return domainerrors.InsufficientBalance("insufficient balance")
			}
			return err
		}

		refType := entities.ReferencePayment
		tx := &entities.WalletTransaction{
			ID:            uuid.Must(uuid.NewV7()),
			WalletID:      walletID,
			Amount:        amount,
			Type:          entities.TransactionDebit,
			Status:        entities.TransactionPending,
			ReferenceID:   &paymentID,
			ReferenceType: &refType,
			Description:   "payment reservation",
		}
		if err := u.walletRepo.CreateTransaction(txCtx, tx); err != nil {
			return err
		}

		result = &ReservationResult{
			WalletTransactionID: tx.ID,
			WalletID:            walletID,
			AmountReserved:      amount,
			RemainingBalance:    wallet.Available(),
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConfirmReservation settles a reservation after a successful external
// charge. Idempotent on an already-COMPLETED transaction.
func (u *WalletUsecase) ConfirmReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, providerTransactionID, provider string, userID uuid.UUID) error {
	return u.uow.Do(ctx, func(txCtx context.Context) error {
		tx, err := u.walletRepo.GetTransactionByID(txCtx, walletTransactionID)
		if err != nil {
			return err
		}
		if tx.WalletID != walletID {
			return domainerrors.BadRequest("transaction does not belong to wallet")
		}
		wallet, err := u.walletRepo.GetByID(txCtx, tx.WalletID)
		if err != nil {
			return err
		}
		if wallet.UserID != userID {
			return domainerrors.Forbidden("wallet transaction does not belong to user")
		}
		if tx.Status == entities.TransactionCompleted {
			return nil
		}
		if tx.Status != entities.TransactionPending {
			return domainerrors.New(domainerrors.KindConflict, "transaction is not in a confirmable state", domainerrors.ErrInvalidStatus)
		}

		expectedVersion := wallet.Version
		wallet.Balance = wallet.Balance.Sub(tx.Amount)
		wallet.ReservedBalance = wallet.ReservedBalance.Sub(tx.Amount)
		wallet.Version++

		if wallet.ReservedBalance.IsNegative() {
			return domainerrors.New(domainerrors.KindConflict, "reserved balance would go negative", domainerrors.ErrInvalidStatus)
		}

		if err := u.walletRepo.Update(txCtx, wallet, expectedVersion); err != nil {
			return err
		}
		return u.walletRepo.UpdateTransactionStatus(txCtx, tx.ID, entities.TransactionCompleted)
	})
}

// CancelReservation releases a reservation without settling it.
// Idempotent on an already-CANCELLED transaction; not permitted
// from any other terminal status.
func (u *WalletUsecase) CancelReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, userID uuid.UUID) error {
	return u.uow.Do(ctx, func(txCtx context.Context) error {
		tx, err := u.walletRepo.GetTransactionByID(txCtx, walletTransactionID)
		if err != nil {
			return err
		}
		if tx.WalletID != walletID {
			return domainerrors.BadRequest("transaction does not belong to wallet")
		}
		wallet, err := u.walletRepo.GetByID(txCtx, tx.WalletID)
		if err != nil {
			return err
		}
		if wallet.UserID != userID {
			return domainerrors.Forbidden("wallet transaction does not belong to user")
		}
		if tx.Status == entities.TransactionCancelled {
			return nil
		}
		if tx.Status != entities.TransactionPending {
			return domainerrors.New(domainerrors.KindConflict, "transaction is not cancellable", domainerrors.ErrInvalidStatus)
		}

		expectedVersion := wallet.Version
		wallet.ReservedBalance = wallet.ReservedBalance.Sub(tx.Amount)
		wallet.Version++

		if err := u.walletRepo.Update(txCtx, wallet, expectedVersion); err != nil {
			return err
		}
		return u.walletRepo.UpdateTransactionStatus(txCtx, tx.ID, entities.TransactionCancelled)
	})
}

const (
	versionConflictRetries = 3
)

// TopUp credits a wallet directly, retrying the optimistic-lock
// compare-and-set up to 3 times with a 100ms backoff before surfacing
// CONCURRENT_MODIFICATION.
func (u *WalletUsecase) TopUp(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error {
	return withVersionRetry(func() error {
		return u.uow.Do(ctx, func(txCtx context.Context) error {
			wallet, err := u.walletRepo.GetByID(txCtx, walletID)
			if err != nil {
				return err
			}
			expectedVersion := wallet.Version
			wallet.Balance = wallet.Balance.Add(amount)
			wallet.Version++
			if err := u.walletRepo.Update(txCtx, wallet, expectedVersion); err != nil {
				return err
			}
			return u.walletRepo.CreateTransaction(txCtx, &entities.WalletTransaction{
				ID:          uuid.Must(uuid.NewV7()),
				WalletID:    walletID,
				Amount:      amount,
				Type:        entities.TransactionCredit,
				Status:      entities.TransactionCompleted,
				Description: "top up",
			})
		})
	})
}

// Transfer moves funds between two wallets atomically, writing
// paired DEBIT/CREDIT COMPLETED transactions of type TRANSFER. Same
// retry policy as TopUp.
func (u *WalletUsecase) Transfer(ctx context.Context, payerWalletID, recipientWalletID uuid.UUID, amount decimal.Decimal) error {
	if payerWalletID == recipientWalletID {
		return domainerrors.BadRequest("cannot transfer to the same wallet")
	}

	return withVersionRetry(func() error {
		return u.uow.Do(ctx, func(txCtx context.Context) error {
			payer, err := u.walletRepo.GetByID(txCtx, payerWalletID)
			if err != nil {
				return err
			}
			if payer.Available().LessThan(amount) {
				return domainerrors.InsufficientBalance("insufficient balance")
			}
			recipient, err := u.walletRepo.GetByID(txCtx, recipientWalletID)
			if err != nil {
				return err
			}

			payerExpectedVersion := payer.Version
			payer.Balance = payer.Balance.Sub(amount)
			payer.Version++
			if err := u.walletRepo.Update(txCtx, payer, payerExpectedVersion); err != nil {
				return err
			}

			recipientExpectedVersion := recipient.Version
			recipient.Balance = recipient.Balance.Add(amount)
			recipient.Version++
			if err := u.walletRepo.Update(txCtx, recipient, recipientExpectedVersion); err != nil {
				return err
			}

			debitID := uuid.Must(uuid.NewV7())
			creditID := uuid.Must(uuid.NewV7())
			refType := entities.ReferenceTransfer
			if err := u.walletRepo.CreateTransaction(txCtx, &entities.WalletTransaction{
				ID:            debitID,
				WalletID:      payerWalletID,
				Amount:        amount,
				Type:          entities.TransactionDebit,
				Status:        entities.TransactionCompleted,
				ReferenceID:   &creditID,
				ReferenceType: &refType,
				Description:   "transfer out",
			}); err != nil {
				return err
			}
			return u.walletRepo.CreateTransaction(txCtx, &entities.WalletTransaction{
				ID:            creditID,
				WalletID:      recipientWalletID,
				Amount:        amount,
				Type:          entities.TransactionCredit,
				Status:        entities.TransactionCompleted,
				ReferenceID:   &debitID,
				ReferenceType: &refType,
				Description:   "transfer in",
			})
		})
	})
}

// GetBalance returns the wallet's current balance for (walletID,
// userID), verifying ownership first.
func (u *WalletUsecase) GetBalance(ctx context.Context, walletID, userID uuid.UUID) (*entities.Wallet, error) {
	wallet, err := u.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.UserID != userID {
		return nil, domainerrors.NotFound("wallet not found")
	}
	return wallet, nil
}

// TransactionHistory returns a 10-per-page, newest-first view of a
// wallet's transaction journal.
func (u *WalletUsecase) TransactionHistory(ctx context.Context, walletID, userID uuid.UUID, page int) (*TransactionHistoryPage, error) {
	if _, err := u.GetBalance(ctx, walletID, userID); err != nil {
		return nil, err
	}
	params := utils.GetPaginationParams(page, walletHistoryPageSize)
	txs, count, err := u.walletRepo.ListTransactionsByWalletID(ctx, walletID, walletHistoryPageSize, params.CalculateOffset())
	if err != nil {
		return nil, err
	}
	return &TransactionHistoryPage{
		Transactions: txs,
		Meta:         utils.CalculateMeta(count, params.Page, walletHistoryPageSize),
	}, nil
}

// MonthlyAggregate returns the sum of COMPLETED transactions of txType
// for userID in the given year/month.
func (u *WalletUsecase) MonthlyAggregate(ctx context.Context, userID uuid.UUID, year int, month time.Month, txType entities.WalletTransactionType) (string, error) {
	return u.walletRepo.SumCompletedByTypeInMonth(ctx, userID, year, month, txType)
}

// withVersionRetry retries fn up to versionConflictRetries times with a
// 100ms backoff whenever it fails with ErrConcurrentModified.
func withVersionRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < versionConflictRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domainerrors.ErrConcurrentModified) {
			return err
		}
		versionRetrySleep(100 * time.Millisecond)
	}
	return err
}

var versionRetrySleep = time.Sleep
