package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paymentcore.backend/internal/usecases"
	"paymentcore.backend/pkg/logger"
)

// PaymentExpiryJob moves INITIATED payments the client abandoned to
// EXPIRED on an interval, freeing their client request ids for reuse.
type PaymentExpiryJob struct {
	payments  *usecases.PaymentUsecase
	interval  time.Duration
	maxAge    time.Duration
	batchSize int
	stop      chan struct{}
}

func NewPaymentExpiryJob(payments *usecases.PaymentUsecase, interval, maxAge time.Duration, batchSize int) *PaymentExpiryJob {
	return &PaymentExpiryJob{
		payments:  payments,
		interval:  interval,
		maxAge:    maxAge,
		batchSize: batchSize,
		stop:      make(chan struct{}),
	}
}

// Start blocks, sweeping every interval until ctx is cancelled or Stop
// is called.
func (j *PaymentExpiryJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting payment expiry job",
		zap.Duration("interval", j.interval), zap.Duration("maxAge", j.maxAge))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *PaymentExpiryJob) Stop() {
	close(j.stop)
}

func (j *PaymentExpiryJob) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.maxAge)
	expired, err := j.payments.ExpireStaleInitiated(ctx, cutoff, j.batchSize)
	if err != nil {
		logger.Error(ctx, "payment expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		logger.Info(ctx, "expired stale payments", zap.Int("count", expired))
	}
}
