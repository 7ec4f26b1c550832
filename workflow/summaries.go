package workflow

import (
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

// FulfillmentEntry is one requested (line, quantity) pair of a batch.
type FulfillmentEntry struct {
	DetailId int             `json:"detail_id" binding:"required"`
	Qty      decimal.Decimal `json:"qty"`
}

// LineSummary is the derived per-line reconciliation state. Never persisted;
// recomputing it is idempotent because it is a pure fold over ledger history.
type LineSummary struct {
	DetailId     int             `json:"detail_id"`
	Name         string          `json:"name"`
	OrderedQty   decimal.Decimal `json:"ordered_qty"`
	FulfilledQty decimal.Decimal `json:"fulfilled_qty"`
	RemainingQty decimal.Decimal `json:"remaining_qty"`
}

// ReconciliationResult is what every engine operation returns: the full set
// of line summaries plus the document status derived from them.
type ReconciliationResult struct {
	OrderId     int                           `json:"order_id"`
	OrderNumber string                        `json:"order_number"`
	Status      models.FulfillmentOrderStatus `json:"status"`
	Summaries   []LineSummary                 `json:"summaries"`
}

// buildSummaries folds the event ledger into per-line summaries, covering
// every line of the document whether or not it has events. Line order follows
// the document's line order.
func buildSummaries(details []models.FulfillmentOrderDetail, events []models.FulfillmentEvent) []LineSummary {
	fulfilledByLine := make(map[int]decimal.Decimal, len(details))
	for _, event := range events {
		fulfilledByLine[event.DetailId] = fulfilledByLine[event.DetailId].Add(event.EventQty)
	}

	summaries := make([]LineSummary, 0, len(details))
	for _, detail := range details {
		fulfilled := fulfilledByLine[detail.ID]
		summaries = append(summaries, LineSummary{
			DetailId:     detail.ID,
			Name:         detail.Name,
			OrderedQty:   detail.DetailQty,
			FulfilledQty: fulfilled,
			RemainingQty: detail.DetailQty.Sub(fulfilled),
		})
	}
	return summaries
}

func sumTotals(summaries []LineSummary) (ordered, fulfilled decimal.Decimal) {
	for _, s := range summaries {
		ordered = ordered.Add(s.OrderedQty)
		fulfilled = fulfilled.Add(s.FulfilledQty)
	}
	return ordered, fulfilled
}

// validateEntries checks a batch against current summaries and returns the
// entries to post, with zero-quantity entries dropped (a "receive 0" is a
// legal no-op, not an error) and quantities aggregated per line so the batch
// is judged as a whole. The whole batch is rejected on the first failure:
//   - unknown line            -> ErrorRecordNotFound
//   - negative qty (unless corrections are allowed) -> ErrorInvalidInput
//   - qty over the line's remaining                 -> *OverFulfillmentError
//   - correction below zero fulfilled               -> ErrorInvalidInput
func validateEntries(summaries []LineSummary, entries []FulfillmentEntry, allowNegative bool) ([]FulfillmentEntry, error) {
	byLine := make(map[int]LineSummary, len(summaries))
	for _, s := range summaries {
		byLine[s.DetailId] = s
	}

	// aggregate per line: entries in one batch are logically simultaneous
	requested := make(map[int]decimal.Decimal, len(entries))
	lineOrder := make([]int, 0, len(entries))
	for _, entry := range entries {
		if _, ok := byLine[entry.DetailId]; !ok {
			return nil, utils.ErrorRecordNotFound
		}
		if entry.Qty.IsNegative() && !allowNegative {
			return nil, utils.ErrorInvalidInput
		}
		if _, seen := requested[entry.DetailId]; !seen {
			lineOrder = append(lineOrder, entry.DetailId)
		}
		requested[entry.DetailId] = requested[entry.DetailId].Add(entry.Qty)
	}

	result := make([]FulfillmentEntry, 0, len(lineOrder))
	for _, detailId := range lineOrder {
		qty := requested[detailId]
		if qty.IsZero() {
			// tolerated no-op; the engine must not rely on callers filtering
			continue
		}
		summary := byLine[detailId]
		if qty.GreaterThan(summary.RemainingQty) {
			return nil, &utils.OverFulfillmentError{
				DetailId:  detailId,
				LineName:  summary.Name,
				Requested: qty,
				Remaining: summary.RemainingQty,
			}
		}
		if summary.FulfilledQty.Add(qty).IsNegative() {
			return nil, utils.ErrorInvalidInput
		}
		result = append(result, FulfillmentEntry{DetailId: detailId, Qty: qty})
	}
	return result, nil
}

// applyEntries returns summaries advanced by the validated entries, without
// rereading the ledger.
func applyEntries(summaries []LineSummary, entries []FulfillmentEntry) []LineSummary {
	qtyByLine := make(map[int]decimal.Decimal, len(entries))
	for _, entry := range entries {
		qtyByLine[entry.DetailId] = qtyByLine[entry.DetailId].Add(entry.Qty)
	}

	result := make([]LineSummary, len(summaries))
	for i, s := range summaries {
		if qty, ok := qtyByLine[s.DetailId]; ok {
			s.FulfilledQty = s.FulfilledQty.Add(qty)
			s.RemainingQty = s.OrderedQty.Sub(s.FulfilledQty)
		}
		result[i] = s
	}
	return result
}
