package models

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"gorm.io/gorm"
)

var seqMutex sync.Mutex

func typeName[T any]() string {
	var model T
	return reflect.TypeOf(model).Name()
}

// nextSequence hands out the next per-business document sequence number.
// Redis keeps the fast path; the db max() fallback covers a cold or flushed
// cache, and the uniqueness check closes the gap between the two.
func nextSequence[T any](ctx context.Context, tx *gorm.DB, businessId string) (int64, error) {
	seqMutex.Lock()
	defer seqMutex.Unlock()

	cacheKey := businessId + "-" + strings.ToLower(typeName[T]()) + "_seq"
	var model T

	for {
		seqNo, err := config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// redis cold (or absent): seed from db max
		if seqNo <= 1 {
			var dbSeq *int64
			if err := tx.WithContext(ctx).Model(&model).Select("max(sequence_no)").
				Where("business_id = ?", businessId).
				Scan(&dbSeq).Error; err != nil {
				return 0, err
			}
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisObject(cacheKey, &seqNo, 0); err != nil {
				return 0, err
			}
		}
		if err := utils.ValidateUnique[T](ctx, businessId, "sequence_no", seqNo, 0); err == nil {
			return seqNo, nil
		}
	}
}
