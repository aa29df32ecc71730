package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paymentcore.backend/pkg/logger"
	"paymentcore.backend/pkg/redis"
)

// IdempotencyCache is a fast path in front of the payment initiation
// unique-constraint check: a replayed (user, clientRequestId) pair can
// be answered from the cache without contending on the payments table.
// The database unique index stays authoritative: a miss or a stale
// entry simply falls through to the transactional path, so the cache
// never has to be correct, only helpful.
type IdempotencyCache interface {
	GetPaymentID(ctx context.Context, userID uuid.UUID, clientRequestID string) (uuid.UUID, bool)
	PutPaymentID(ctx context.Context, userID uuid.UUID, clientRequestID string, paymentID uuid.UUID)
}

type redisIdempotencyCache struct {
	ttl time.Duration
}

// NewRedisIdempotencyCache builds an IdempotencyCache on the shared
// redis client. Entries expire after ttl; an expired entry only costs
// the replayed request a trip to the unique-constraint path.
func NewRedisIdempotencyCache(ttl time.Duration) IdempotencyCache {
	return &redisIdempotencyCache{ttl: ttl}
}

func idempotencyKey(userID uuid.UUID, clientRequestID string) string {
	return "paymentcore:idem:" + userID.String() + ":" + clientRequestID
}

func (c *redisIdempotencyCache) GetPaymentID(ctx context.Context, userID uuid.UUID, clientRequestID string) (uuid.UUID, bool) {
	value, err := redis.Get(ctx, idempotencyKey(userID, clientRequestID))
	if err != nil {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func (c *redisIdempotencyCache) PutPaymentID(ctx context.Context, userID uuid.UUID, clientRequestID string, paymentID uuid.UUID) {
	if err := redis.Set(ctx, idempotencyKey(userID, clientRequestID), paymentID.String(), c.ttl); err != nil {
		logger.Warn(ctx, "idempotency cache write failed",
			zap.String("clientRequestId", clientRequestID), zap.Error(err))
	}
}
