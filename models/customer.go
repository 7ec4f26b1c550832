package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
)

// Customer is the counterparty a fulfillment order is raised against. Its
// default billing/shipping addresses are the last fallback of address
// resolution.
type Customer struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name            string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email           string          `gorm:"size:100" json:"email"`
	Phone           string          `gorm:"size:20" json:"phone"`
	Mobile          string          `gorm:"size:20" json:"mobile"`
	Notes           string          `gorm:"type:text" json:"notes"`
	BillingAddress  BillingAddress  `gorm:"polymorphic:Reference" json:"billing_address"`
	ShippingAddress ShippingAddress `gorm:"polymorphic:Reference" json:"shipping_address"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name            string      `json:"name" binding:"required"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	Mobile          string      `json:"mobile"`
	Notes           string      `json:"notes"`
	BillingAddress  *NewAddress `json:"billing_address"`
	ShippingAddress *NewAddress `json:"shipping_address"`
}

func (input *NewCustomer) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Customer](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	if err := utils.ValidatePhoneNumber(input.Phone, ""); err != nil {
		return errors.New("invalid phone number")
	}
	if err := utils.ValidatePhoneNumber(input.Mobile, ""); err != nil {
		return errors.New("invalid mobile number")
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		BusinessId: businessId,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Mobile:     input.Mobile,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&customer).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if input.BillingAddress != nil {
		if err := upsertBillingAddress(tx, ctx, *input.BillingAddress, "customers", customer.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if input.ShippingAddress != nil {
		if err := upsertShippingAddress(tx, ctx, *input.ShippingAddress, "customers", customer.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetCustomer(ctx, customer.ID)
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	existing, err := utils.FetchModel[Customer](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	existing.Name = input.Name
	existing.Email = input.Email
	existing.Phone = input.Phone
	existing.Mobile = input.Mobile
	existing.Notes = input.Notes

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Save(existing).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if input.BillingAddress != nil {
		if err := upsertBillingAddress(tx, ctx, *input.BillingAddress, "customers", existing.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if input.ShippingAddress != nil {
		if err := upsertShippingAddress(tx, ctx, *input.ShippingAddress, "customers", existing.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetCustomer(ctx, existing.ID)
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Customer](ctx, businessId, id, "BillingAddress", "ShippingAddress")
}

func GetCustomers(ctx context.Context, name *string) ([]*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	var results []*Customer
	if err := dbCtx.Preload("BillingAddress").Preload("ShippingAddress").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
