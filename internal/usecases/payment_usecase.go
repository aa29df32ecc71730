package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"paymentcore.backend/internal/domain/entities"
	domainerrors "paymentcore.backend/internal/domain/errors"
	domainprovider "paymentcore.backend/internal/domain/provider"
	"paymentcore.backend/internal/domain/repositories"
	"paymentcore.backend/pkg/logger"
	"paymentcore.backend/pkg/utils"
)

const chargeMaxAttempts = 3

// chargeBaseDelay is the base of the exponential inter-attempt wait
// (1s, then 2s). A variable so tests can shrink the real sleeps.
var chargeBaseDelay = 1 * time.Second

// errPoisonedDuplicate signals that Create hit a concurrent unique
// constraint violation during initiation: the
// surrounding transaction is poisoned and the caller must re-read in a
// brand-new transaction rather than guess at the outcome.
var errPoisonedDuplicate = errors.New("payment: concurrent duplicate client request id")

// errRetryableChargeOutcome is the sentinel the charge loop returns to
// trigger another attempt when the adapter returned a tagged FAILED
// outcome marked retryable, as opposed to raising an error.
var errRetryableChargeOutcome = errors.New("payment: retryable charge outcome")

// InitiateRequest is the input to InitiatePayment.
type InitiateRequest struct {
	Amount          decimal.Decimal
	Currency        string
	WalletID        uuid.UUID
	ClientRequestID string
	Provider        string
}

// InitiateResult is the output of InitiatePayment.
type InitiateResult struct {
	PaymentID uuid.UUID
	Version   int64
	IsNew     bool
}

// ProcessRequest is the input to ProcessPayment.
type ProcessRequest struct {
	PaymentMethodToken string
	Provider           string
}

// ProcessResult is the response shape shared by ProcessPayment and
// CheckStatus.
type ProcessResult struct {
	PaymentID uuid.UUID
	Status    entities.PaymentStatus
	Message   string
	Amount    decimal.Decimal
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletLedger is the slice of the Wallet Ledger the orchestrator
// drives: the reserve/confirm/cancel protocol. The in-process
// WalletUsecase satisfies it for single-binary deployments; an HTTP
// client satisfies it when the ledger runs as its own service.
type WalletLedger interface {
	ReserveFunds(ctx context.Context, walletID, userID uuid.UUID, amount decimal.Decimal, currency string, paymentID uuid.UUID) (*ReservationResult, error)
	ConfirmReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, providerTransactionID, provider string, userID uuid.UUID) error
	CancelReservation(ctx context.Context, walletID, walletTransactionID uuid.UUID, userID uuid.UUID) error
}

// PaymentUsecase implements the Payment Orchestrator: idempotent
// initiation, the reserve/charge/confirm-or-cancel two-phase commit,
// status reconciliation, and the retry policy around the external
// charge. It is the only component that knows about both the Wallet
// Ledger and the Provider Adapter.
type PaymentUsecase struct {
	paymentRepo     repositories.PaymentRepository
	walletLedger    WalletLedger
	uow             repositories.UnitOfWork
	adapters        map[string]domainprovider.Adapter
	defaultProvider string
	idemCache       IdempotencyCache
}

// UseIdempotencyCache installs the optional fast-path cache consulted
// by InitiatePayment before opening a transaction. Safe to leave unset;
// the database unique constraint is always the authority.
func (u *PaymentUsecase) UseIdempotencyCache(cache IdempotencyCache) {
	u.idemCache = cache
}

func NewPaymentUsecase(
	paymentRepo repositories.PaymentRepository,
	walletLedger WalletLedger,
	uow repositories.UnitOfWork,
	adapters map[string]domainprovider.Adapter,
	defaultProvider string,
) *PaymentUsecase {
	return &PaymentUsecase{
		paymentRepo:     paymentRepo,
		walletLedger:    walletLedger,
		uow:             uow,
		adapters:        adapters,
		defaultProvider: defaultProvider,
	}
}

func (u *PaymentUsecase) resolveAdapter(name string) (domainprovider.Adapter, error) {
	if name == "" {
		name = u.defaultProvider
	}
	adapter, ok := u.adapters[name]
	if !ok {
		return nil, domainerrors.BadRequest("unsupported payment provider: " + name)
	}
	return adapter, nil
}

// InitiatePayment is idempotent on (ClientRequestID, UserID): a
// duplicate non-expired request replays the stored payment; an EXPIRED
// payment is reset in place and reused.
func (u *PaymentUsecase) InitiatePayment(ctx context.Context, userID uuid.UUID, req InitiateRequest) (*InitiateResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domainerrors.BadRequest("amount must be positive")
	}
	currency := req.Currency
	if currency == "" {
		currency = "SGD"
	}

	if u.idemCache != nil {
		if cachedID, ok := u.idemCache.GetPaymentID(ctx, userID, req.ClientRequestID); ok {
			if existing, err := u.paymentRepo.GetByID(ctx, cachedID); err == nil && existing.Status != entities.PaymentExpired {
				return &InitiateResult{PaymentID: existing.ID, Version: existing.Version, IsNew: false}, nil
			}
			// Stale or expired entry: the transactional path below decides.
		}
	}

	var result *InitiateResult
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		existing, err := u.paymentRepo.GetByClientRequestID(txCtx, userID, req.ClientRequestID)
		if err == nil {
			result, err = u.applyExistingOnInitiate(txCtx, existing, req, currency)
			return err
		}
		if !errors.Is(err, domainerrors.ErrNotFound) {
			return err
		}

		payment := &entities.Payment{
			ID:              uuid.Must(uuid.NewV7()),
			UserID:          userID,
			Amount:          req.Amount,
			Currency:        currency,
			ClientRequestID: req.ClientRequestID,
			WalletID:        req.WalletID,
			Status:          entities.PaymentInitiated,
			Version:         1,
		}
		if req.Provider != "" {
			payment.Provider = null.StringFrom(req.Provider)
		}

		if createErr := u.paymentRepo.Create(txCtx, payment); createErr != nil {
			if isDuplicateKeyErr(createErr) {
				return errPoisonedDuplicate
			}
			return createErr
		}
		result = &InitiateResult{PaymentID: payment.ID, Version: payment.Version, IsNew: true}
		return nil
	})

	if err != nil {
		if errors.Is(err, errPoisonedDuplicate) {
			// The transaction above is poisoned by the violation. Never
			// guess at who won the race: re-read in an independent
			// transaction and resolve against the winner's row.
			return u.recoverDuplicateInitiate(ctx, userID, req, currency)
		}
		return nil, err
	}
	if u.idemCache != nil {
		u.idemCache.PutPaymentID(ctx, userID, req.ClientRequestID, result.PaymentID)
	}
	return result, nil
}

func (u *PaymentUsecase) recoverDuplicateInitiate(ctx context.Context, userID uuid.UUID, req InitiateRequest, currency string) (*InitiateResult, error) {
	var result *InitiateResult
	err := u.uow.DoIndependent(ctx, func(txCtx context.Context) error {
		existing, err := u.paymentRepo.GetByClientRequestID(txCtx, userID, req.ClientRequestID)
		if err != nil {
			return err
		}
		result, err = u.applyExistingOnInitiate(txCtx, existing, req, currency)
		return err
	})
	if err != nil {
		return nil, err
	}
	if u.idemCache != nil {
		u.idemCache.PutPaymentID(ctx, userID, req.ClientRequestID, result.PaymentID)
	}
	return result, nil
}

// applyExistingOnInitiate resolves an initiation request against an
// already-loaded payment row: replay it, or reset it if EXPIRED.
func (u *PaymentUsecase) applyExistingOnInitiate(ctx context.Context, existing *entities.Payment, req InitiateRequest, currency string) (*InitiateResult, error) {
	if existing.Status != entities.PaymentExpired {
		return &InitiateResult{PaymentID: existing.ID, Version: existing.Version, IsNew: false}, nil
	}

	expectedVersion := existing.Version
	logger.Info(ctx, "reusing expired payment for new request",
		zap.String("paymentId", existing.ID.String()),
		zap.String("clientRequestId", req.ClientRequestID))
	existing.ResetForReuse(req.Amount, currency, req.WalletID)
	existing.Version++
	if req.Provider != "" {
		existing.Provider = null.StringFrom(req.Provider)
	}
	if err := u.paymentRepo.Update(ctx, existing, expectedVersion); err != nil {
		return nil, err
	}
	return &InitiateResult{PaymentID: existing.ID, Version: existing.Version, IsNew: true}, nil
}

// ProcessPayment runs the two-phase commit across the wallet ledger
// and the external provider: a pessimistic row lock on the payment for
// the duration of the reservation and charge, then reserve, charge
// with retry, and confirm or cancel.
func (u *PaymentUsecase) ProcessPayment(ctx context.Context, userID, paymentID uuid.UUID, req ProcessRequest) (*ProcessResult, error) {
	adapter, err := u.resolveAdapter(req.Provider)
	if err != nil {
		return nil, err
	}

	var result *ProcessResult
	txErr := u.uow.Do(ctx, func(txCtx context.Context) error {
		lockedCtx := u.uow.WithLock(txCtx)
		payment, err := u.paymentRepo.GetByID(lockedCtx, paymentID)
		if err != nil {
			return err
		}
		if payment.UserID != userID {
			return domainerrors.Forbidden("payment does not belong to user")
		}
		if payment.Status != entities.PaymentInitiated {
			return domainerrors.New(domainerrors.KindConflict, "payment is not in a processable state", domainerrors.ErrInvalidStatus)
		}

		reservation, err := u.walletLedger.ReserveFunds(txCtx, payment.WalletID, userID, payment.Amount, payment.Currency, payment.ID)
		if err != nil {
			reservationOutcomesTotal.WithLabelValues("reserve_failed").Inc()
			return err
		}
		reservationOutcomesTotal.WithLabelValues("reserved").Inc()

		outcome := u.chargeWithRetry(txCtx, adapter, domainprovider.ChargeRequest{
			PaymentID:          payment.ID,
			Amount:             payment.Amount,
			Currency:           payment.Currency,
			PaymentMethodToken: req.PaymentMethodToken,
			Description:        fmt.Sprintf("payment %s", payment.ID),
			IdempotencyKey:     payment.ID.String(),
		})

		expectedVersion := payment.Version
		payment.WalletTransactionID = &reservation.WalletTransactionID

		switch outcome.Status {
		case entities.ChargeSuccess:
			// A confirm failure must not revert the payment: the
			// external charge already committed. The stuck reservation
			// is resolved by reconciliation.
			if confirmErr := u.walletLedger.ConfirmReservation(txCtx, reservation.WalletID, reservation.WalletTransactionID, outcome.ProviderTransactionID, outcome.Provider, userID); confirmErr != nil {
				logger.Error(txCtx, "confirm reservation failed after provider success; marking payment SUCCESS regardless",
					zap.String("paymentId", payment.ID.String()), zap.Error(confirmErr))
				reservationOutcomesTotal.WithLabelValues("confirm_failed_but_charged").Inc()
			} else {
				reservationOutcomesTotal.WithLabelValues("confirmed").Inc()
			}
			payment.Status = entities.PaymentSuccess
			payment.Provider = null.StringFrom(outcome.Provider)
			payment.ProviderTransactionID = null.StringFrom(outcome.ProviderTransactionID)
			payment.Version++
			if err := u.paymentRepo.Update(txCtx, payment, expectedVersion); err != nil {
				return err
			}
			result = toProcessResult(payment, "payment successful")

		case entities.ChargePending:
			payment.Status = entities.PaymentPending
			payment.Provider = null.StringFrom(outcome.Provider)
			payment.ProviderTransactionID = null.StringFrom(outcome.ProviderTransactionID)
			payment.Version++
			if err := u.paymentRepo.Update(txCtx, payment, expectedVersion); err != nil {
				return err
			}
			result = toProcessResult(payment, "payment is pending provider confirmation")

		case entities.ChargeFailed:
			u.cancelBestEffort(txCtx, reservation.WalletID, reservation.WalletTransactionID, userID)
			payment.Status = entities.PaymentFailed
			payment.Provider = null.StringFrom(outcome.Provider)
			payment.FailureCode = null.StringFrom(string(outcome.FailureCode))
			payment.FailureMessage = null.StringFrom(outcome.Message)
			payment.Version++
			if err := u.paymentRepo.Update(txCtx, payment, expectedVersion); err != nil {
				return err
			}
			// Returned as a normal 200 response, not raised: the
			// payment record carrying FAILED must not be rolled back
			// by an error escaping this transaction.
			result = toProcessResult(payment, outcome.Message)
		}
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// CheckStatus reconciles a payment's status: pessimistic-lock it, and for
// one still PENDING, poll the provider and converge the payment and
// reservation to its outcome.
func (u *PaymentUsecase) CheckStatus(ctx context.Context, userID, paymentID uuid.UUID) (*ProcessResult, error) {
	var result *ProcessResult
	txErr := u.uow.Do(ctx, func(txCtx context.Context) error {
		lockedCtx := u.uow.WithLock(txCtx)
		payment, err := u.paymentRepo.GetByID(lockedCtx, paymentID)
		if err != nil {
			return err
		}
		if payment.UserID != userID {
			return domainerrors.Forbidden("payment does not belong to user")
		}
		if payment.Status != entities.PaymentPending {
			result = toProcessResult(payment, statusMessage(payment.Status))
			return nil
		}
		if !payment.ProviderTransactionID.Valid {
			return domainerrors.InternalError(fmt.Errorf("pending payment %s has no provider transaction id", payment.ID))
		}

		providerName := payment.Provider.String
		adapter, err := u.resolveAdapter(providerName)
		if err != nil {
			return err
		}

		outcome, err := adapter.GetTransactionStatus(txCtx, payment.ProviderTransactionID.String)
		if err != nil {
			return domainerrors.New(domainerrors.KindProviderRetryable, "payment provider unavailable", err)
		}

		expectedVersion := payment.Version
		switch outcome.Status {
		case entities.ChargeSuccess:
			if payment.WalletTransactionID != nil {
				if confirmErr := u.walletLedger.ConfirmReservation(txCtx, payment.WalletID, *payment.WalletTransactionID, outcome.ProviderTransactionID, outcome.Provider, userID); confirmErr != nil {
					logger.Error(txCtx, "reconciliation confirm failed; marking payment SUCCESS regardless",
						zap.String("paymentId", payment.ID.String()), zap.Error(confirmErr))
				}
			}
			payment.Status = entities.PaymentSuccess
			payment.Version++
			if err := u.paymentRepo.Update(txCtx, payment, expectedVersion); err != nil {
				return err
			}
			result = toProcessResult(payment, "payment successful")

		case entities.ChargePending:
			result = toProcessResult(payment, "payment is pending provider confirmation")

		case entities.ChargeFailed:
			if payment.WalletTransactionID != nil {
				u.cancelBestEffort(txCtx, payment.WalletID, *payment.WalletTransactionID, userID)
			}
			payment.Status = entities.PaymentFailed
			payment.FailureCode = null.StringFrom(string(outcome.FailureCode))
			payment.FailureMessage = null.StringFrom(outcome.Message)
			payment.Version++
			if err := u.paymentRepo.Update(txCtx, payment, expectedVersion); err != nil {
				return err
			}
			result = toProcessResult(payment, outcome.Message)
		}
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// ExpireStaleInitiated moves INITIATED payments created before cutoff
// to EXPIRED, at most limit per call, and returns how many it expired.
// Each payment is re-read under its own transaction and lock so a race
// with a concurrent ProcessPayment resolves cleanly: whoever commits
// first wins, and the loser's compare-and-set misses.
func (u *PaymentUsecase) ExpireStaleInitiated(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := u.paymentRepo.ListInitiatedOlderThan(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		err := u.uow.Do(ctx, func(txCtx context.Context) error {
			payment, err := u.paymentRepo.GetByID(u.uow.WithLock(txCtx), candidate.ID)
			if err != nil {
				return err
			}
			if !payment.CanTransitionTo(entities.PaymentExpired) {
				// Processed in the meantime; nothing to expire.
				return nil
			}
			expectedVersion := payment.Version
			payment.Status = entities.PaymentExpired
			payment.Version++
			if err := u.paymentRepo.Update(txCtx, payment, expectedVersion); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			logger.Warn(ctx, "expiring stale payment failed",
				zap.String("paymentId", candidate.ID.String()), zap.Error(err))
		}
	}
	return expired, nil
}

// PaymentPage is one page of a user's payments, newest first.
type PaymentPage struct {
	Payments []*ProcessResult
	Meta     utils.PaginationMeta
}

const paymentHistoryPageSize = 10

// ListPayments returns a page of the user's payments, newest first.
func (u *PaymentUsecase) ListPayments(ctx context.Context, userID uuid.UUID, page int) (*PaymentPage, error) {
	params := utils.GetPaginationParams(page, paymentHistoryPageSize)
	payments, count, err := u.paymentRepo.ListByUserID(ctx, userID, paymentHistoryPageSize, params.CalculateOffset())
	if err != nil {
		return nil, err
	}

	results := make([]*ProcessResult, 0, len(payments))
	for _, p := range payments {
		results = append(results, toProcessResult(p, statusMessage(p.Status)))
	}
	return &PaymentPage{
		Payments: results,
		Meta:     utils.CalculateMeta(count, params.Page, paymentHistoryPageSize),
	}, nil
}

// GetByID returns a payment owned by userID, for simple status reads
// that don't need the reconciliation side effects of CheckStatus.
func (u *PaymentUsecase) GetByID(ctx context.Context, userID, paymentID uuid.UUID) (*ProcessResult, error) {
	payment, err := u.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, domainerrors.NotFound("payment not found")
	}
	return toProcessResult(payment, statusMessage(payment.Status)), nil
}

func (u *PaymentUsecase) cancelBestEffort(ctx context.Context, walletID, walletTransactionID, userID uuid.UUID) {
	if err := u.walletLedger.CancelReservation(ctx, walletID, walletTransactionID, userID); err != nil {
		logger.Warn(ctx, "best-effort cancel reservation failed",
			zap.String("walletTransactionId", walletTransactionID.String()), zap.Error(err))
		reservationOutcomesTotal.WithLabelValues("cancel_failed").Inc()
		return
	}
	reservationOutcomesTotal.WithLabelValues("cancelled").Inc()
}

// chargeWithRetry drives the external charge: up to 3 attempts, waiting
// 2^(n-1) * 1s between attempt n and n+1 (1s, then 2s). A FAILED
// outcome marked retryable, or any error the adapter raises, consumes
// an attempt; a FAILED outcome marked non-retryable, or a SUCCESS/
// PENDING outcome, returns immediately. On exhaustion the last
// observed outcome is returned; if no outcome was ever produced (every
// attempt raised rather than returned), a non-retryable
// PROVIDER_UNAVAILABLE failure is synthesized.
func (u *PaymentUsecase) chargeWithRetry(ctx context.Context, adapter domainprovider.Adapter, req domainprovider.ChargeRequest) entities.ChargeOutcome {
	var lastOutcome entities.ChargeOutcome
	haveOutcome := false
	attempts := 0

	_ = retry.Do(
		func() error {
			attempts++
			outcome, err := adapter.Charge(ctx, req)
			if err != nil {
				label := "error_retryable"
				if !isRetryableProviderErr(err) {
					label = "error_terminal"
				}
				chargeAttemptsTotal.WithLabelValues(adapter.ProviderName(), label).Inc()
				if isRetryableProviderErr(err) {
					return err
				}
				return retry.Unrecoverable(err)
			}

			lastOutcome = outcome
			haveOutcome = true
			chargeAttemptsTotal.WithLabelValues(adapter.ProviderName(), strings.ToLower(string(outcome.Status))).Inc()

			if outcome.Status == entities.ChargeFailed && outcome.Retryable {
				return errRetryableChargeOutcome
			}
			return nil
		},
		retry.Attempts(chargeMaxAttempts),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return chargeBaseDelay * time.Duration(uint(1)<<n)
		}),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)

	chargeRetryRounds.Observe(float64(attempts))

	if haveOutcome {
		return lastOutcome
	}

	// Every attempt raised rather than returned (or the inter-attempt
	// wait was cancelled): synthesize a non-retryable failure so the
	// caller still has a tagged outcome to persist against.
	return entities.ChargeOutcome{
		Status:      entities.ChargeFailed,
		Provider:    adapter.ProviderName(),
		FailureCode: entities.FailureProviderUnavailable,
		Message:     "payment provider unavailable",
		Retryable:   false,
		ProcessedAt: time.Now(),
	}
}

// isRetryableProviderErr classifies an error raised by the adapter.
// Errors exposing a Retryable() bool (the mock provider's transient
// fault) use that signal; any other, unclassified error is treated as
// a retryable transient fault for the remaining attempts.
func isRetryableProviderErr(err error) bool {
	type retryabler interface{ Retryable() bool }
	var r retryabler
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// isDuplicateKeyErr recognizes a unique-constraint violation: a lib/pq
// error by its 23505 code, otherwise by message text, which covers the
// pgx driver GORM uses on Postgres ("duplicate key") and the SQLite
// driver used in tests ("UNIQUE constraint").
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func toProcessResult(p *entities.Payment, message string) *ProcessResult {
	return &ProcessResult{
		PaymentID: p.ID,
		Status:    p.Status,
		Message:   message,
		Amount:    p.Amount,
		Currency:  p.Currency,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func statusMessage(status entities.PaymentStatus) string {
	switch status {
	case entities.PaymentSuccess:
		return "payment successful"
	case entities.PaymentFailed:
		return "payment failed"
	case entities.PaymentPending:
		return "payment is pending provider confirmation"
	case entities.PaymentExpired:
		return "payment request expired"
	default:
		return "payment initiated"
	}
}
