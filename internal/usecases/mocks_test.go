package usecases_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"paymentcore.backend/internal/domain/entities"
	domainprovider "paymentcore.backend/internal/domain/provider"
)

// MockUnitOfWork runs fn directly against the calling goroutine rather
// than a real transaction, for the few usecase tests that drive the
// orchestrator against repository mocks to inject failures; the rest
// run on the real repositories over SQLite (testdb_test.go).
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, fn func(context.Context) error) error {
	m.Called(ctx)
	return fn(ctx)
}

func (m *MockUnitOfWork) DoIndependent(ctx context.Context, fn func(context.Context) error) error {
	m.Called(ctx)
	return fn(ctx)
}

func (m *MockUnitOfWork) WithLock(ctx context.Context) context.Context {
	m.Called(ctx)
	return ctx
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *entities.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByClientRequestID(ctx context.Context, userID uuid.UUID, clientRequestID string) (*entities.Payment, error) {
	args := m.Called(ctx, userID, clientRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *entities.Payment, expectedVersion int64) error {
	args := m.Called(ctx, payment, expectedVersion)
	return args.Error(0)
}

func (m *MockPaymentRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Payment, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.Payment, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListInitiatedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Payment, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Payment), args.Error(1)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Create(ctx context.Context, wallet *entities.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

func (m *MockWalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Update(ctx context.Context, wallet *entities.Wallet, expectedVersion int64) error {
	args := m.Called(ctx, wallet, expectedVersion)
	return args.Error(0)
}

func (m *MockWalletRepository) CreateTransaction(ctx context.Context, tx *entities.WalletTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockWalletRepository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*entities.WalletTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WalletTransaction), args.Error(1)
}

func (m *MockWalletRepository) GetTransactionByReference(ctx context.Context, referenceID uuid.UUID, referenceType entities.WalletTransactionReferenceType) (*entities.WalletTransaction, error) {
	args := m.Called(ctx, referenceID, referenceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WalletTransaction), args.Error(1)
}

func (m *MockWalletRepository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status entities.WalletTransactionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockWalletRepository) ListTransactionsByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entities.WalletTransaction, int64, error) {
	args := m.Called(ctx, walletID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.WalletTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.WalletTransaction, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WalletTransaction), args.Error(1)
}

func (m *MockWalletRepository) SumCompletedByTypeInMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month, txType entities.WalletTransactionType) (string, error) {
	args := m.Called(ctx, userID, year, month, txType)
	return args.String(0), args.Error(1)
}

// MockAdapter is a hand-rolled Provider Adapter test double: unlike the
// other mocks it is driven by a plain function queue rather than
// testify/mock expectations, since the retry loop in chargeWithRetry
// calls Charge a variable number of times per test case.
type MockAdapter struct {
	name       string
	chargeFunc func(ctx context.Context, req domainprovider.ChargeRequest) (entities.ChargeOutcome, error)
	statusFunc func(ctx context.Context, providerTransactionID string) (entities.ChargeOutcome, error)
	calls      int
}

func (a *MockAdapter) ProviderName() string { return a.name }

func (a *MockAdapter) Charge(ctx context.Context, req domainprovider.ChargeRequest) (entities.ChargeOutcome, error) {
	a.calls++
	return a.chargeFunc(ctx, req)
}

func (a *MockAdapter) GetTransactionStatus(ctx context.Context, providerTransactionID string) (entities.ChargeOutcome, error) {
	return a.statusFunc(ctx, providerTransactionID)
}
