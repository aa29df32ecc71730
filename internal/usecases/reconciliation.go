package usecases

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paymentcore.backend/internal/domain/entities"
	"paymentcore.backend/pkg/logger"
	"paymentcore.backend/pkg/redis"
)

const reconciliationLockKey = "paymentcore:reconciliation:lock"

// ReconciliationWorker is the deferred-consistency sweep: on an
// interval, find wallet reservations and payments stuck
// in a non-terminal state past the configured age threshold and drive
// them to a terminal one via CheckStatus/direct cancellation. A redis
// SETNX lock keeps two replicas of this service from racing the same
// sweep.
type ReconciliationWorker struct {
	paymentUsecase      *PaymentUsecase
	walletUsecase       *WalletUsecase
	pendingAgeThreshold time.Duration
	lockTTL             time.Duration
	instanceID          string
}

func NewReconciliationWorker(paymentUsecase *PaymentUsecase, walletUsecase *WalletUsecase, pendingAgeThreshold, lockTTL time.Duration, instanceID string) *ReconciliationWorker {
	return &ReconciliationWorker{
		paymentUsecase:      paymentUsecase,
		walletUsecase:       walletUsecase,
		pendingAgeThreshold: pendingAgeThreshold,
		lockTTL:             lockTTL,
		instanceID:          instanceID,
	}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (w *ReconciliationWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep, guarded by the distributed lock. Safe
// to call at any time; everything it does is idempotent.
func (w *ReconciliationWorker) SweepOnce(ctx context.Context) {
	acquired, err := redis.SetNX(ctx, reconciliationLockKey, w.instanceID, w.lockTTL)
	if err != nil {
		logger.Warn(ctx, "reconciliation lock acquisition failed, skipping this tick", zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if delErr := redis.Del(ctx, reconciliationLockKey); delErr != nil {
			logger.Warn(ctx, "reconciliation lock release failed", zap.Error(delErr))
		}
	}()

	cutoff := time.Now().Add(-w.pendingAgeThreshold)
	w.reconcilePayments(ctx, cutoff)
	w.reconcileStuckReservations(ctx, cutoff)
}

// reconcilePayments drives every PENDING payment older than cutoff
// through CheckStatus, which polls the provider and converges the
// payment and its reservation to a terminal state.
func (w *ReconciliationWorker) reconcilePayments(ctx context.Context, cutoff time.Time) {
	pending, err := w.paymentUsecase.paymentRepo.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error(ctx, "reconciliation: listing pending payments failed", zap.Error(err))
		return
	}
	for _, payment := range pending {
		if _, err := w.paymentUsecase.CheckStatus(ctx, payment.UserID, payment.ID); err != nil {
			logger.Warn(ctx, "reconciliation: checking payment status failed",
				zap.String("paymentId", payment.ID.String()), zap.Error(err))
		}
	}
}

// reconcileStuckReservations resolves wallet reservations still PENDING
// past the threshold by looking up their payment: a SUCCESS
// payment gets its reservation confirmed (the confirm call failed or
// was never issued at process time), a FAILED or EXPIRED one gets it
// cancelled, and a PENDING one is left to reconcilePayments above,
// which polls the provider. A reservation with no payment behind it at
// all (crash between reserving and charging) is cancelled. Confirm and
// cancel are both idempotent on the ledger side, so repeating a sweep
// is safe.
func (w *ReconciliationWorker) reconcileStuckReservations(ctx context.Context, cutoff time.Time) {
	stuck, err := w.walletUsecase.walletRepo.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error(ctx, "reconciliation: listing pending wallet transactions failed", zap.Error(err))
		return
	}
	for _, tx := range stuck {
		wallet, err := w.walletUsecase.walletRepo.GetByID(ctx, tx.WalletID)
		if err != nil {
			logger.Warn(ctx, "reconciliation: loading wallet for stuck reservation failed",
				zap.String("walletTransactionId", tx.ID.String()), zap.Error(err))
			continue
		}

		var payment *entities.Payment
		if tx.ReferenceType != nil && *tx.ReferenceType == entities.ReferencePayment && tx.ReferenceID != nil {
			payment, err = w.paymentUsecase.paymentRepo.GetByID(ctx, *tx.ReferenceID)
			if err != nil {
				payment = nil
			}
		}

		if payment != nil {
			switch payment.Status {
			case entities.PaymentPending, entities.PaymentInitiated:
				// Still being driven forward; reconcilePayments polls the
				// provider for PENDING ones this same tick.
				continue
			case entities.PaymentSuccess:
				if err := w.walletUsecase.ConfirmReservation(ctx, tx.WalletID, tx.ID, payment.ProviderTransactionID.String, payment.Provider.String, wallet.UserID); err != nil {
					logger.Warn(ctx, "reconciliation: confirming stuck reservation failed",
						zap.String("walletTransactionId", tx.ID.String()), zap.Error(err))
					continue
				}
				reservationOutcomesTotal.WithLabelValues("reconciled_confirmed").Inc()
				continue
			}
			// FAILED or EXPIRED falls through to cancellation.
		}

		if err := w.walletUsecase.CancelReservation(ctx, tx.WalletID, tx.ID, wallet.UserID); err != nil {
			logger.Warn(ctx, "reconciliation: cancelling stuck reservation failed",
				zap.String("walletTransactionId", tx.ID.String()), zap.Error(err))
			continue
		}
		reservationOutcomesTotal.WithLabelValues("reconciled_cancelled").Inc()
	}
}
