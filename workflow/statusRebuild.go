package workflow

import (
	"context"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"gorm.io/gorm"
)

// StatusRebuildResult reports one document's stored-vs-derived status check.
type StatusRebuildResult struct {
	OrderId int
	Stored  models.FulfillmentOrderStatus
	Derived models.FulfillmentOrderStatus
	Drifted bool
}

// RebuildStatus recomputes one order's status from ledger history and, when
// apply is set, persists the derived value over a drifted stored one.
// Cancelled orders are left alone: cancellation is an external action that
// cannot be derived from the ledger.
func RebuildStatus(ctx context.Context, order *models.FulfillmentOrder, apply bool) (*StatusRebuildResult, error) {
	db := config.GetDB()

	events, err := models.EventsForOrder(db, ctx, order.ID)
	if err != nil {
		return nil, err
	}

	summaries := buildSummaries(order.Details, events)
	totalOrdered, totalFulfilled := sumTotals(summaries)
	derived := deriveStatus(order.DocumentFamily, order.CurrentStatus, totalOrdered, totalFulfilled)

	result := &StatusRebuildResult{
		OrderId: order.ID,
		Stored:  order.CurrentStatus,
		Derived: derived,
		Drifted: derived != order.CurrentStatus,
	}

	if result.Drifted && apply {
		// Re-derive under the posting row lock: a repair racing a live
		// posting must not persist a status computed from stale events.
		txErr := db.Transaction(func(tx *gorm.DB) error {
			locked, err := models.FetchOrderForPosting(tx, ctx, order.BusinessId, order.ID)
			if err != nil {
				return err
			}
			events, err := models.EventsForOrder(tx, ctx, locked.ID)
			if err != nil {
				return err
			}
			summaries := buildSummaries(locked.Details, events)
			totalOrdered, totalFulfilled := sumTotals(summaries)
			derived := deriveStatus(locked.DocumentFamily, locked.CurrentStatus, totalOrdered, totalFulfilled)

			result.Stored = locked.CurrentStatus
			result.Derived = derived
			result.Drifted = derived != locked.CurrentStatus
			if !result.Drifted {
				return nil
			}
			return tx.WithContext(ctx).Model(&models.FulfillmentOrder{}).
				Where("id = ?", locked.ID).
				Update("current_status", derived).Error
		})
		if txErr != nil {
			return nil, txErr
		}
	}

	return result, nil
}
