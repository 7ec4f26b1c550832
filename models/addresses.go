package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/utils"
	"gorm.io/gorm"
)

type BillingAddress struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Attention     string    `gorm:"size:100" json:"attention"`
	Address       string    `gorm:"type:text" json:"address"`
	Country       string    `gorm:"size:100" json:"country"`
	City          string    `gorm:"size:100" json:"city"`
	Phone         string    `gorm:"size:20" json:"phone"`
	Mobile        string    `gorm:"size:20" json:"mobile"`
	Email         string    `gorm:"size:100" json:"email"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   int       `json:"reference_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ShippingAddress struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Attention     string    `gorm:"size:100" json:"attention"`
	Address       string    `gorm:"type:text" json:"address"`
	Country       string    `gorm:"size:100" json:"country"`
	City          string    `gorm:"size:100" json:"city"`
	Phone         string    `gorm:"size:20" json:"phone"`
	Mobile        string    `gorm:"size:20" json:"mobile"`
	Email         string    `gorm:"size:100" json:"email"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   int       `json:"reference_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAddress struct {
	Attention string `json:"attention"`
	Address   string `json:"address"`
	Country   string `json:"country"`
	City      string `json:"city"`
	Phone     string `json:"phone"`
	Mobile    string `json:"mobile"`
	Email     string `json:"email"`
}

// HasAnyField reports whether at least one address field is populated. Used by
// address resolution: an all-blank structured address is treated as absent.
func (input NewAddress) HasAnyField() bool {
	for _, f := range []string{input.Attention, input.Address, input.Country, input.City, input.Phone, input.Mobile, input.Email} {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}

// Flatten renders a single-line snapshot string for the event ledger.
func (input NewAddress) Flatten() string {
	parts := make([]string, 0, 4)
	for _, f := range []string{input.Attention, input.Address, input.City, input.Country} {
		if strings.TrimSpace(f) != "" {
			parts = append(parts, strings.TrimSpace(f))
		}
	}
	return strings.Join(parts, ", ")
}

func (a BillingAddress) ToNewAddress() NewAddress {
	return NewAddress{
		Attention: a.Attention,
		Address:   a.Address,
		Country:   a.Country,
		City:      a.City,
		Phone:     a.Phone,
		Mobile:    a.Mobile,
		Email:     a.Email,
	}
}

func (a ShippingAddress) ToNewAddress() NewAddress {
	return NewAddress{
		Attention: a.Attention,
		Address:   a.Address,
		Country:   a.Country,
		City:      a.City,
		Phone:     a.Phone,
		Mobile:    a.Mobile,
		Email:     a.Email,
	}
}

func upsertBillingAddress(tx *gorm.DB, ctx context.Context, input NewAddress, referenceType string, referenceId int) (err error) {
	id, err := utils.GetPolymorphicId[BillingAddress](ctx, referenceType, referenceId)
	if err != nil {
		return
	}

	billingAddress := BillingAddress{
		Attention: input.Attention,
		Address:   input.Address,
		Country:   input.Country,
		City:      input.City,
		Phone:     input.Phone,
		Mobile:    input.Mobile,
		Email:     input.Email,
	}
	if id == 0 {
		// insert new
		billingAddress.ReferenceID = referenceId
		billingAddress.ReferenceType = referenceType
		err = tx.WithContext(ctx).Create(&billingAddress).Error
	} else {
		// update
		err = tx.WithContext(ctx).Model(&BillingAddress{}).
			Where("id = ?", id).Updates(map[string]interface{}{
			"Attention": billingAddress.Attention,
			"Address":   billingAddress.Address,
			"Country":   billingAddress.Country,
			"City":      billingAddress.City,
			"Phone":     billingAddress.Phone,
			"Mobile":    billingAddress.Mobile,
			"Email":     billingAddress.Email,
		}).Error
	}
	return
}

func upsertShippingAddress(tx *gorm.DB, ctx context.Context, input NewAddress, referenceType string, referenceId int) (err error) {
	id, err := utils.GetPolymorphicId[ShippingAddress](ctx, referenceType, referenceId)
	if err != nil {
		return
	}

	shippingAddress := ShippingAddress{
		Attention: input.Attention,
		Address:   input.Address,
		Country:   input.Country,
		City:      input.City,
		Phone:     input.Phone,
		Mobile:    input.Mobile,
		Email:     input.Email,
	}
	if id == 0 {
		shippingAddress.ReferenceID = referenceId
		shippingAddress.ReferenceType = referenceType
		err = tx.WithContext(ctx).Create(&shippingAddress).Error
	} else {
		err = tx.WithContext(ctx).Model(&ShippingAddress{}).
			Where("id = ?", id).Updates(map[string]interface{}{
			"Attention": shippingAddress.Attention,
			"Address":   shippingAddress.Address,
			"Country":   shippingAddress.Country,
			"City":      shippingAddress.City,
			"Phone":     shippingAddress.Phone,
			"Mobile":    shippingAddress.Mobile,
			"Email":     shippingAddress.Email,
		}).Error
	}
	return
}
