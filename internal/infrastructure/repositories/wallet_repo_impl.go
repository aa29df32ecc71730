package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	domainerrors "paymentcore.backend/internal/domain/errors"

	"paymentcore.backend/internal/domain/entities"
	domainRepos "paymentcore.backend/internal/domain/repositories"
)

// WalletRepoImpl implements WalletRepository on top of GORM.
type WalletRepoImpl struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) domainRepos.WalletRepository {
	return &WalletRepoImpl{db: db}
}

func (r *WalletRepoImpl) Create(ctx context.Context, wallet *entities.Wallet) error {
	return GetDB(ctx, r.db).Create(wallet).Error
}

func (r *WalletRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	var w entities.Wallet
	if err := GetDB(ctx, r.db).First(&w, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// Update performs the compare-and-set described by reserveFunds/
// confirmReservation/cancelReservation/topUp/transfer: the
// WHERE clause pins version = expectedVersion, and the caller has
// already set wallet.Version = expectedVersion+1 on the in-memory
// struct before calling Update.
func (r *WalletRepoImpl) Update(ctx context.Context, wallet *entities.Wallet, expectedVersion int64) error {
	result := GetDB(ctx, r.db).Model(&entities.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, expectedVersion).
		Updates(map[string]interface{}{
			"balance":          wallet.Balance,
			"reserved_balance": wallet.ReservedBalance,
			"version":          wallet.Version,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConcurrentModified
	}
	return nil
}

func (r *WalletRepoImpl) CreateTransaction(ctx context.Context, tx *entities.WalletTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *WalletRepoImpl) GetTransactionByID(ctx context.Context, id uuid.UUID) (*entities.WalletTransaction, error) {
	var t entities.WalletTransaction
	if err := GetDB(ctx, r.db).First(&t, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *WalletRepoImpl) GetTransactionByReference(ctx context.Context, referenceID uuid.UUID, referenceType entities.WalletTransactionReferenceType) (*entities.WalletTransaction, error) {
	var t entities.WalletTransaction
	err := GetDB(ctx, r.db).
		Where("reference_id = ? AND reference_type = ?", referenceID, referenceType).
		First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *WalletRepoImpl) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status entities.WalletTransactionStatus) error {
	return GetDB(ctx, r.db).Model(&entities.WalletTransaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *WalletRepoImpl) ListTransactionsByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.WalletTransaction, int64, error) {
	var txs []*entities.WalletTransaction
	var count int64

	db := GetDB(ctx, r.db).Model(&entities.WalletTransaction{}).Where("wallet_id = ?", walletID)
	if err := db.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	err := GetDB(ctx, r.db).Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	return txs, count, nil
}

func (r *WalletRepoImpl) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.WalletTransaction, error) {
	var txs []*entities.WalletTransaction
	err := GetDB(ctx, r.db).
		Where("status = ? AND reference_type = ? AND created_at < ?", entities.TransactionPending, entities.ReferencePayment, cutoff).
		Find(&txs).Error
	return txs, err
}

func (r *WalletRepoImpl) SumCompletedByTypeInMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month, txType entities.WalletTransactionType) (string, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var sum *string
	err := GetDB(ctx, r.db).Model(&entities.WalletTransaction{}).
		Joins("JOIN wallets ON wallets.id = wallet_transactions.wallet_id").
		Where("wallets.user_id = ? AND wallet_transactions.transaction_type = ? AND wallet_transactions.status = ? AND wallet_transactions.created_at >= ? AND wallet_transactions.created_at < ?",
			userID, txType, entities.TransactionCompleted, start, end).
		Select("SUM(wallet_transactions.amount)").
		Scan(&sum).Error
	if err != nil {
		return "0", err
	}
	if sum == nil {
		return "0", nil
	}
	return *sum, nil
}
