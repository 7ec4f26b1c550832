package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
)

// NewSessionToken mints an opaque revocable session token.
func NewSessionToken() string {
	return uuid.NewString()
}

func NewTrue() *bool {
	b := true
	return &b
}

// ProcessValidationErrors flattens validator.ValidationErrors into a
// field -> message map for API responses.
func ProcessValidationErrors(err error) map[string]string {
	out := make(map[string]string)
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		for _, fe := range vErrs {
			out[fe.Field()] = fmt.Sprintf("failed on the '%s' tag", fe.Tag())
		}
	}
	return out
}

// DocumentLock obtains a best-effort distributed lock for one fulfillment
// order. Reliability must not depend on Redis: posting also serializes via a
// MySQL advisory lock on the same document key, so when Redis is unavailable
// the caller may proceed unless REQUIRE_REDIS_POSTING_LOCK is set.
// The returned release func is nil-safe.
func DocumentLock(ctx context.Context, businessId string, orderId int, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	noop := func() {}
	if locker == nil {
		if config.RequireRedisPostingLock() {
			return noop, errors.New("service not ready (redis lock not initialized)")
		}
		return noop, nil
	}
	lockKey := fmt.Sprintf("fulfillment:%s:%d", businessId, orderId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for document", lockKey, err)
		return noop, errors.New("another fulfillment is being posted for this document")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for document", lockKey, err)
		if config.RequireRedisPostingLock() {
			return noop, err
		}
		return noop, nil
	}
	return func() { _ = lock.Release(ctx) }, nil
}
