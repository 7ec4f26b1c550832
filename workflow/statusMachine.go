package workflow

import (
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/shopspring/decimal"
)

// deriveStatus maps aggregate fulfillment to a lifecycle status. It is the
// only place a document status is computed; callers persist whatever it
// returns and never patch status incrementally.
//
// Totals are across all lines of the document:
//   - fulfilled == 0        -> current status unchanged (a cancelled document
//     is not resurrected by recomputation)
//   - 0 < fulfilled < ordered -> the family's partial status
//   - fulfilled >= ordered  -> the family's terminal-success status
//
// A line with ordered qty 0 contributes nothing to either total, so it never
// blocks the document from closing.
func deriveStatus(family models.DocumentFamily, current models.FulfillmentOrderStatus, totalOrdered, totalFulfilled decimal.Decimal) models.FulfillmentOrderStatus {
	if totalFulfilled.Sign() <= 0 {
		return current
	}
	if totalFulfilled.GreaterThanOrEqual(totalOrdered) {
		if family == models.DocumentFamilyRental {
			return models.FulfillmentOrderStatusReturned
		}
		return models.FulfillmentOrderStatusClosed
	}
	if family == models.DocumentFamilyRental {
		return models.FulfillmentOrderStatusPartiallyReturned
	}
	return models.FulfillmentOrderStatusPartiallyInvoiced
}

// canRecordFulfillment gates posting. Terminal documents are immutable and
// sales drafts must be confirmed first.
func canRecordFulfillment(current models.FulfillmentOrderStatus) bool {
	if current.IsTerminal() {
		return false
	}
	return current != models.FulfillmentOrderStatusDraft
}

// canCorrect gates compensating events. Corrections may reopen a
// terminal-success document (that is their purpose) but never a cancelled or
// draft one.
func canCorrect(current models.FulfillmentOrderStatus) bool {
	switch current {
	case models.FulfillmentOrderStatusCancelled, models.FulfillmentOrderStatusDraft:
		return false
	}
	return true
}

// canCancel: sales family only, from Confirmed or Partially Invoiced.
func canCancel(family models.DocumentFamily, current models.FulfillmentOrderStatus) bool {
	if family != models.DocumentFamilySales {
		return false
	}
	switch current {
	case models.FulfillmentOrderStatusConfirmed, models.FulfillmentOrderStatusPartiallyInvoiced:
		return true
	}
	return false
}

// canConfirm: sales drafts only; rental orders are born confirmed.
func canConfirm(family models.DocumentFamily, current models.FulfillmentOrderStatus) bool {
	return family == models.DocumentFamilySales && current == models.FulfillmentOrderStatusDraft
}
