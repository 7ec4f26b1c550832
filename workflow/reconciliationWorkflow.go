package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("fulfillment_backend/workflow")

// The reconciliation engine is the single entry point for recording
// fulfillment against an order and for deriving its lifecycle status. UI and
// API callers never duplicate the fulfillment math: they submit events and
// read back summaries.
//
// Every posting runs as one atomic unit per document: a best-effort Redis
// lock, then a MySQL advisory lock plus SELECT ... FOR UPDATE on the parent
// row inside the transaction, so two concurrent postings against the same
// order serialize while unrelated orders proceed independently.

// RecordFulfillment validates and appends a batch of fulfillment events, then
// recomputes every line summary and the document status. The batch is
// all-or-nothing: one over-fulfilling line rejects every line, and a failed
// call leaves no observable side effect.
func RecordFulfillment(ctx context.Context, orderId int, eventType models.FulfillmentEventType, entries []FulfillmentEntry, override *AddressOverride) (*ReconciliationResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if eventType == models.FulfillmentEventTypeCorrection {
		// corrections go through CorrectFulfillment
		return nil, utils.ErrorInvalidInput
	}
	if _, err := models.ParseFulfillmentEventType(string(eventType)); err != nil {
		return nil, utils.ErrorInvalidInput
	}
	if len(entries) == 0 {
		return nil, utils.ErrorInvalidInput
	}

	return postEvents(ctx, businessId, orderId, eventType, entries, override, false)
}

// CorrectFulfillment appends compensating Correction events. Quantities may
// be negative to back out earlier over-recorded fulfillment; a line's
// fulfilled total can never go below zero or above its ordered quantity.
// Whether a correction replaces or adds to an earlier event is the calling
// workflow's contract; the ledger only ever adds.
func CorrectFulfillment(ctx context.Context, orderId int, entries []FulfillmentEntry, reason string) (*ReconciliationResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if len(entries) == 0 || reason == "" {
		return nil, utils.ErrorInvalidInput
	}

	return postEvents(ctx, businessId, orderId, models.FulfillmentEventTypeCorrection, entries, nil, true)
}

func postEvents(ctx context.Context, businessId string, orderId int, eventType models.FulfillmentEventType, entries []FulfillmentEntry, override *AddressOverride, correction bool) (*ReconciliationResult, error) {
	logger := config.GetLogger()

	ctx, span := tracer.Start(ctx, "postEvents", trace.WithAttributes(
		attribute.Int("order.id", orderId),
		attribute.String("event.type", string(eventType)),
		attribute.Int("entries.count", len(entries)),
	))
	defer span.End()

	release, err := utils.DocumentLock(ctx, businessId, orderId, "reconciliationWorkflow.go", "postEvents")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var result *ReconciliationResult
	txErr := db.Transaction(func(tx *gorm.DB) error {
		// GET_LOCK is session-scoped and survives commit, so the release
		// must run inside the transaction callback, on the live connection.
		if err := AcquireDocumentPostingLock(tx, businessId, orderId); err != nil {
			return err
		}
		defer ReleaseDocumentPostingLock(tx, businessId, orderId)

		order, err := models.FetchOrderForPosting(tx, ctx, businessId, orderId)
		if err != nil {
			return err
		}

		allowed := canRecordFulfillment(order.CurrentStatus)
		if correction {
			allowed = canCorrect(order.CurrentStatus)
		}
		if !allowed {
			return utils.ErrorInvalidState
		}

		priorEvents, err := models.EventsForOrder(tx, ctx, order.ID)
		if err != nil {
			return err
		}

		summaries := buildSummaries(order.Details, priorEvents)
		toPost, err := validateEntries(summaries, entries, correction)
		if err != nil {
			return err
		}

		if len(toPost) > 0 {
			billing, shipping := "", ""
			if !correction {
				customer, cerr := fetchOrderCustomer(tx, ctx, order)
				if cerr != nil {
					return cerr
				}
				billing, shipping = resolveEventAddresses(override, customer)
			}

			userId, _ := utils.GetUserIdFromContext(ctx)
			correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
			now := time.Now().UTC()

			events := make([]models.FulfillmentEvent, 0, len(toPost))
			for _, entry := range toPost {
				events = append(events, models.FulfillmentEvent{
					DetailId:        entry.DetailId,
					EventType:       eventType,
					EventQty:        entry.Qty,
					EventDate:       now,
					BillingAddress:  billing,
					ShippingAddress: shipping,
					UserId:          userId,
					CorrelationId:   correlationId,
				})
			}
			if err := models.AppendFulfillmentEvents(tx, ctx, order, events); err != nil {
				return err
			}
		}

		// recompute for every line on the document, not just the touched ones
		summaries = applyEntries(summaries, toPost)
		totalOrdered, totalFulfilled := sumTotals(summaries)
		newStatus := deriveStatus(order.DocumentFamily, order.CurrentStatus, totalOrdered, totalFulfilled)

		if newStatus != order.CurrentStatus {
			if err := tx.WithContext(ctx).Model(&models.FulfillmentOrder{}).
				Where("id = ?", order.ID).
				Update("current_status", newStatus).Error; err != nil {
				return err
			}
		}

		result = &ReconciliationResult{
			OrderId:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      newStatus,
			Summaries:   summaries,
		}
		return nil
	})
	if txErr != nil {
		if !isDomainErr(txErr) {
			config.LogError(logger, "reconciliationWorkflow.go", "postEvents", "db.Transaction", orderId, txErr)
		}
		return nil, txErr
	}

	return result, nil
}

// isDomainErr distinguishes caller mistakes, which the handlers map to 4xx
// responses, from infrastructure failures worth a server-side log line.
func isDomainErr(err error) bool {
	var overErr *utils.OverFulfillmentError
	return errors.Is(err, utils.ErrorRecordNotFound) ||
		errors.Is(err, utils.ErrorInvalidInput) ||
		errors.Is(err, utils.ErrorInvalidState) ||
		errors.As(err, &overErr)
}

// GetSummaries recomputes the per-line summaries from ledger history without
// writing anything. Its output matches the last RecordFulfillment return for
// the same document state.
func GetSummaries(ctx context.Context, orderId int) (*ReconciliationResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	order, err := utils.FetchModel[models.FulfillmentOrder](ctx, businessId, orderId, "Details")
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	events, err := models.EventsForOrder(db, ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return &ReconciliationResult{
		OrderId:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.CurrentStatus,
		Summaries:   buildSummaries(order.Details, events),
	}, nil
}

// Confirm moves a sales draft into the open (Confirmed) state where
// fulfillment may be recorded.
func Confirm(ctx context.Context, orderId int) (*models.FulfillmentOrder, error) {
	return transitionStatus(ctx, orderId, models.FulfillmentOrderStatusConfirmed, canConfirm)
}

// Cancel is the explicit external abort for the sales family. Rejected on
// terminal documents; a cancelled order rejects all further fulfillment.
func Cancel(ctx context.Context, orderId int) (*models.FulfillmentOrder, error) {
	return transitionStatus(ctx, orderId, models.FulfillmentOrderStatusCancelled, canCancel)
}

func transitionStatus(ctx context.Context, orderId int, target models.FulfillmentOrderStatus, gate func(models.DocumentFamily, models.FulfillmentOrderStatus) bool) (*models.FulfillmentOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	release, err := utils.DocumentLock(ctx, businessId, orderId, "reconciliationWorkflow.go", "transitionStatus")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var order *models.FulfillmentOrder
	txErr := db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireDocumentPostingLock(tx, businessId, orderId); err != nil {
			return err
		}
		defer ReleaseDocumentPostingLock(tx, businessId, orderId)

		fetched, err := models.FetchOrderForPosting(tx, ctx, businessId, orderId)
		if err != nil {
			return err
		}

		if !gate(fetched.DocumentFamily, fetched.CurrentStatus) {
			return utils.ErrorInvalidState
		}

		if err := tx.WithContext(ctx).Model(&models.FulfillmentOrder{}).
			Where("id = ?", fetched.ID).
			Update("current_status", target).Error; err != nil {
			return err
		}

		order = fetched
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	order.CurrentStatus = target
	return order, nil
}

// fetchOrderCustomer loads the counterparty with its default addresses for
// snapshot resolution. A missing customer row does not block posting; the
// resolver falls through to an empty snapshot.
func fetchOrderCustomer(tx *gorm.DB, ctx context.Context, order *models.FulfillmentOrder) (*models.Customer, error) {
	var customer models.Customer
	err := tx.WithContext(ctx).
		Preload("BillingAddress").
		Preload("ShippingAddress").
		Where("business_id = ? AND id = ?", order.BusinessId, order.CustomerId).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}
