package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FulfillmentEvent is one append-only ledger entry: a quantity delivered,
// received or invoiced against one order line. Rows are never updated or
// deleted; corrections are additional events of type Correction. The fulfilled
// running total for a line is always a fold over its events, so it can be
// recomputed any number of times with the same result.
type FulfillmentEvent struct {
	ID                 int                  `gorm:"primary_key" json:"id"`
	BusinessId         string               `gorm:"index;not null" json:"business_id"`
	FulfillmentOrderId int                  `gorm:"index;not null" json:"fulfillment_order_id"`
	DetailId           int                  `gorm:"index;not null" json:"detail_id"`
	EventType          FulfillmentEventType `gorm:"type:enum('Delivery', 'Receipt', 'Invoice Post', 'Correction');not null" json:"event_type"`
	EventQty           decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"event_qty"`
	EventDate          time.Time            `gorm:"not null" json:"event_date"`
	BillingAddress     string               `gorm:"type:text" json:"billing_address"`
	ShippingAddress    string               `gorm:"type:text" json:"shipping_address"`
	UserId             int                  `json:"user_id"`
	CorrelationId      string               `gorm:"size:100" json:"correlation_id"`
	CreatedAt          time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

// AppendFulfillmentEvents appends a validated batch inside tx. Quantities must
// be strictly positive except for Correction events; every DetailId must be a
// line of its order. No status computation happens here; the ledger records
// and nothing else.
func AppendFulfillmentEvents(tx *gorm.DB, ctx context.Context, order *FulfillmentOrder, events []FulfillmentEvent) error {
	if len(events) == 0 {
		return nil
	}

	lineIds := make(map[int]struct{}, len(order.Details))
	for _, detail := range order.Details {
		lineIds[detail.ID] = struct{}{}
	}

	for i := range events {
		event := &events[i]
		if event.EventQty.IsZero() {
			return utils.ErrorInvalidInput
		}
		if event.EventQty.IsNegative() && event.EventType != FulfillmentEventTypeCorrection {
			return utils.ErrorInvalidInput
		}
		if _, ok := lineIds[event.DetailId]; !ok {
			return utils.ErrorRecordNotFound
		}
		event.BusinessId = order.BusinessId
		event.FulfillmentOrderId = order.ID
		if event.EventDate.IsZero() {
			event.EventDate = time.Now().UTC()
		}
	}

	return tx.WithContext(ctx).Create(&events).Error
}

// GetFulfillmentEvents returns an order's events in append order, optionally
// narrowed to one line. This is the document's audit trail.
func GetFulfillmentEvents(ctx context.Context, orderId int, detailId *int) ([]FulfillmentEvent, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	if err := utils.ValidateResourceId[FulfillmentOrder](ctx, businessId, orderId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Where("fulfillment_order_id = ?", orderId)
	if detailId != nil {
		query = query.Where("detail_id = ?", *detailId)
	}
	var events []FulfillmentEvent
	err := query.Order("id asc").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// EventsForOrder returns every event of the order in append order, inside tx
// so posting observes a consistent snapshot.
func EventsForOrder(tx *gorm.DB, ctx context.Context, orderId int) ([]FulfillmentEvent, error) {
	var events []FulfillmentEvent
	err := tx.WithContext(ctx).
		Where("fulfillment_order_id = ?", orderId).
		Order("id asc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
