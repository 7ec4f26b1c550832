package utils

import (
	"context"

	"github.com/mmdatafocus/fulfillment_backend/config"
)

/* DB fetching */

// fetch model from db
// (ctx's business_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, businessId string, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// GetPolymorphicId returns the row id of the T attached to
// (referenceType, referenceId), 0 when none exists.
func GetPolymorphicId[T any](ctx context.Context, referenceType string, referenceId int) (int, error) {
	db := config.GetDB()
	var model T
	var id int
	err := db.WithContext(ctx).Model(&model).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Select("id").Scan(&id).Error
	if err != nil {
		return 0, err
	}
	return id, nil
}
