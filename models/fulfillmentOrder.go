package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FulfillmentOrder is the parent document being fulfilled: a sales order
// (closed by invoicing) or a rental sales order (closed by item return).
// CurrentStatus is a projection of ledger history; only the reconciliation
// workflow writes it.
type FulfillmentOrder struct {
	ID              int                      `gorm:"primary_key" json:"id"`
	BusinessId      string                   `gorm:"index;uniqueIndex:uniq_business_order_number;not null" json:"business_id" binding:"required"`
	CustomerId      int                      `gorm:"index;not null" json:"customer_id" binding:"required"`
	DocumentFamily  DocumentFamily           `gorm:"type:enum('S','R');default:'S'" json:"document_family"`
	OrderNumber     string                   `gorm:"size:255;uniqueIndex:uniq_business_order_number;not null" json:"order_number"`
	SequenceNo      decimal.Decimal          `gorm:"type:decimal(15);not null" json:"sequence_no"`
	ReferenceNumber string                   `gorm:"size:255" json:"reference_number"`
	OrderDate       time.Time                `gorm:"not null" json:"order_date" binding:"required"`
	Notes           string                   `gorm:"type:text" json:"notes"`
	CurrentStatus   FulfillmentOrderStatus   `gorm:"type:enum('Draft', 'Confirmed', 'Partially Invoiced', 'Closed', 'Cancelled', 'Partially Returned', 'Returned');not null" json:"current_status"`
	CreatedAt       time.Time                `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                `gorm:"autoUpdateTime" json:"updated_at"`
	Details         []FulfillmentOrderDetail `gorm:"foreignKey:FulfillmentOrderId" json:"details"`
}

// FulfillmentOrderDetail is one line item. DetailQty (the ordered quantity)
// is fixed at creation; the fulfilled running total is never stored here, it
// is always folded from the event ledger.
type FulfillmentOrderDetail struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	FulfillmentOrderId int             `gorm:"index;not null" json:"fulfillment_order_id" binding:"required"`
	ProductId          int             `json:"product_id"`
	Name               string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Description        string          `gorm:"size:255" json:"description"`
	DetailQty          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty" binding:"required"`
}

type NewFulfillmentOrder struct {
	CustomerId      int                         `json:"customer_id" binding:"required"`
	DocumentFamily  DocumentFamily              `json:"document_family"`
	ReferenceNumber string                      `json:"reference_number"`
	OrderDate       time.Time                   `json:"order_date" binding:"required"`
	Notes           string                      `json:"notes"`
	Details         []NewFulfillmentOrderDetail `json:"details" binding:"required"`
}

type NewFulfillmentOrderDetail struct {
	ProductId   int             `json:"product_id"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	DetailQty   decimal.Decimal `json:"detail_qty"`
}

func (input *NewFulfillmentOrder) validate(ctx context.Context, businessId string) error {
	// exists customer
	if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
		return errors.New("customer not found")
	}
	if input.DocumentFamily != "" {
		if _, err := ParseDocumentFamily(string(input.DocumentFamily)); err != nil {
			return err
		}
	}
	if len(input.Details) == 0 {
		return errors.New("order requires at least one line item")
	}
	for _, detail := range input.Details {
		if detail.Name == "" {
			return errors.New("line item name is required")
		}
		// ordered qty 0 is legal (trivially satisfied line)
		if detail.DetailQty.IsNegative() {
			return errors.New("ordered qty cannot be negative")
		}
	}
	return nil
}

func CreateFulfillmentOrder(ctx context.Context, input *NewFulfillmentOrder) (*FulfillmentOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	family := input.DocumentFamily
	if family == "" {
		family = DocumentFamilySales
	}

	details := make([]FulfillmentOrderDetail, 0, len(input.Details))
	for _, item := range input.Details {
		details = append(details, FulfillmentOrderDetail{
			ProductId:   item.ProductId,
			Name:        item.Name,
			Description: item.Description,
			DetailQty:   item.DetailQty,
		})
	}

	order := FulfillmentOrder{
		BusinessId:      businessId,
		CustomerId:      input.CustomerId,
		DocumentFamily:  family,
		ReferenceNumber: input.ReferenceNumber,
		OrderDate:       input.OrderDate,
		Notes:           input.Notes,
		CurrentStatus:   initialStatusFor(family),
		Details:         details,
	}

	// The sequence check runs before the insert, so two processes can still
	// race to the same number. The unique (business_id, order_number) index
	// is the arbiter; the loser retries with a fresh sequence.
	for attempt := 0; attempt < 3; attempt++ {
		tx := db.Begin()
		seqNo, err := nextSequence[FulfillmentOrder](ctx, tx, businessId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		order.SequenceNo = decimal.NewFromInt(seqNo)
		order.OrderNumber = orderNumberPrefix(family) + fmt.Sprint(seqNo)
		order.ID = 0
		for i := range order.Details {
			order.Details[i].ID = 0
			order.Details[i].FulfillmentOrderId = 0
		}

		if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
			tx.Rollback()
			if isDuplicateKeyErr(err) {
				continue
			}
			return nil, err
		}

		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		return &order, nil
	}
	return nil, errors.New("could not allocate a unique order number")
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// Rental orders have no draft stage; they are open for receipts immediately.
func initialStatusFor(family DocumentFamily) FulfillmentOrderStatus {
	if family == DocumentFamilyRental {
		return FulfillmentOrderStatusConfirmed
	}
	return FulfillmentOrderStatusDraft
}

func orderNumberPrefix(family DocumentFamily) string {
	if family == DocumentFamilyRental {
		return "RO-"
	}
	return "SO-"
}

// UpdateFulfillmentOrderInput edits the mutable surface of an order. Details
// are optional; when present they replace the existing lines wholesale, which
// only a Draft document permits. Everything else about a line is frozen the
// moment events can exist against it.
type UpdateFulfillmentOrderInput struct {
	ReferenceNumber *string                     `json:"reference_number"`
	OrderDate       *time.Time                  `json:"order_date"`
	Notes           *string                     `json:"notes"`
	Details         []NewFulfillmentOrderDetail `json:"details"`
}

func UpdateFulfillmentOrder(ctx context.Context, id int, input *UpdateFulfillmentOrderInput) (*FulfillmentOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	order, err := utils.FetchModel[FulfillmentOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}
	if order.CurrentStatus.IsTerminal() {
		return nil, utils.ErrorInvalidState
	}

	if len(input.Details) > 0 {
		if order.CurrentStatus != FulfillmentOrderStatusDraft {
			return nil, utils.ErrorInvalidState
		}
		if config.StrictOrderedQtyImmutability() {
			return nil, utils.ErrorInvalidState
		}
		for _, item := range input.Details {
			if item.Name == "" {
				return nil, utils.ErrorInvalidInput
			}
			if item.DetailQty.IsNegative() {
				return nil, utils.ErrorInvalidInput
			}
		}
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	updates := map[string]interface{}{}
	if input.ReferenceNumber != nil {
		updates["reference_number"] = *input.ReferenceNumber
	}
	if input.OrderDate != nil {
		updates["order_date"] = *input.OrderDate
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if len(updates) > 0 {
		if err := tx.WithContext(ctx).Model(&FulfillmentOrder{}).
			Where("business_id = ? AND id = ?", businessId, id).
			Updates(updates).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if len(input.Details) > 0 {
		if err := tx.WithContext(ctx).
			Where("fulfillment_order_id = ?", id).
			Delete(&FulfillmentOrderDetail{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		details := make([]FulfillmentOrderDetail, 0, len(input.Details))
		for _, item := range input.Details {
			details = append(details, FulfillmentOrderDetail{
				FulfillmentOrderId: id,
				ProductId:          item.ProductId,
				Name:               item.Name,
				Description:        item.Description,
				DetailQty:          item.DetailQty,
			})
		}
		if err := tx.WithContext(ctx).Create(&details).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetFulfillmentOrder(ctx, id)
}

func GetFulfillmentOrder(ctx context.Context, id int) (*FulfillmentOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[FulfillmentOrder](ctx, businessId, id, "Details")
}

func GetFulfillmentOrders(ctx context.Context, customerId *int, family *DocumentFamily, status *FulfillmentOrderStatus) ([]*FulfillmentOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if family != nil && *family != "" {
		dbCtx = dbCtx.Where("document_family = ?", *family)
	}
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}

	var results []*FulfillmentOrder
	if err := dbCtx.Preload("Details").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FetchOrderForPosting loads an order and its lines inside tx with a row lock
// on the parent, so concurrent postings against the same document serialize
// on the database even without the advisory lock.
func FetchOrderForPosting(tx *gorm.DB, ctx context.Context, businessId string, orderId int) (*FulfillmentOrder, error) {
	var order FulfillmentOrder
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, orderId).
		First(&order).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := tx.WithContext(ctx).Where("fulfillment_order_id = ?", orderId).Find(&order.Details).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
