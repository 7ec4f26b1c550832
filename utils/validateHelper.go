package utils

import (
	"context"
	"errors"
	"net/mail"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/ttacon/libphonenumber"
)

// check if id exists, using ctx's business_id in WHERE, returns RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, businessId string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, businessId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

func ResourceCountWhere[T any](ctx context.Context, businessId string, cond string, values ...interface{}) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).
		Where("business_id = ?", businessId).
		Where(cond, values...).
		Count(&count).Error
	return count, err
}

// check uniqueness of (field, value) within the business; id > 0 excludes the
// row being updated
func ValidateUnique[T any](ctx context.Context, businessId string, field string, value interface{}, id int) error {
	db := config.GetDB()
	var model T
	var count int64
	dbCtx := db.WithContext(ctx).Model(&model).
		Where("business_id = ?", businessId).
		Where(field+" = ?", value)
	if id > 0 {
		dbCtx = dbCtx.Where("id != ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New(field + " already exists")
	}
	return nil
}

func IsValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	if phoneNumber == "" {
		return nil
	}
	if countryCode == "" {
		countryCode = "MM"
	}
	num, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(num) {
		return errors.New("invalid phone number")
	}
	return nil
}
