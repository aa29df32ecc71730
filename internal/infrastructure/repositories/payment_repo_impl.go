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

// PaymentRepoImpl implements PaymentRepository on top of GORM.
type PaymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) domainRepos.PaymentRepository {
	return &PaymentRepoImpl{db: db}
}

func (r *PaymentRepoImpl) Create(ctx context.Context, payment *entities.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *PaymentRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Payment, error) {
	var p entities.Payment
	if err := GetDB(ctx, r.db).First(&p, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepoImpl) GetByClientRequestID(ctx context.Context, userID uuid.UUID, clientRequestID string) (*entities.Payment, error) {
	var p entities.Payment
	err := GetDB(ctx, r.db).
		Where("user_id = ? AND client_request_id = ?", userID, clientRequestID).
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update performs a compare-and-set on the payment row: the WHERE
// clause pins version = expectedVersion, and
// payment.Version must already be expectedVersion+1 on the in-memory
// struct.
func (r *PaymentRepoImpl) Update(ctx context.Context, payment *entities.Payment, expectedVersion int64) error {
	result := GetDB(ctx, r.db).Model(&entities.Payment{}).
		Where("id = ? AND version = ?", payment.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":                  payment.Status,
			"amount":                  payment.Amount,
			"currency":                payment.Currency,
			"wallet_id":               payment.WalletID,
			"version":                 payment.Version,
			"provider":                payment.Provider,
			"provider_transaction_id": payment.ProviderTransactionID,
			"wallet_transaction_id":   payment.WalletTransactionID,
			"failure_code":            payment.FailureCode,
			"failure_message":         payment.FailureMessage,
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConcurrentModified
	}
	return nil
}

func (r *PaymentRepoImpl) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Payment, int64, error) {
	var payments []*entities.Payment
	var count int64

	if err := GetDB(ctx, r.db).Model(&entities.Payment{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, 0, err
	}

	err := GetDB(ctx, r.db).Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, count, nil
}

func (r *PaymentRepoImpl) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.Payment, error) {
	var payments []*entities.Payment
	err := GetDB(ctx, r.db).
		Where("status = ? AND updated_at < ?", entities.PaymentPending, cutoff).
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepoImpl) ListInitiatedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Payment, error) {
	var payments []*entities.Payment
	err := GetDB(ctx, r.db).
		Where("status = ? AND created_at < ?", entities.PaymentInitiated, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
