package models

import "errors"

// DocumentFamily separates the two fulfillment lifecycles: sales orders close
// through invoicing, rental orders close through item return.
type DocumentFamily string

const (
	DocumentFamilySales  DocumentFamily = "S"
	DocumentFamilyRental DocumentFamily = "R"
)

func ParseDocumentFamily(s string) (DocumentFamily, error) {
	switch DocumentFamily(s) {
	case DocumentFamilySales, DocumentFamilyRental:
		return DocumentFamily(s), nil
	}
	return "", errors.New("invalid document family")
}

type FulfillmentOrderStatus string

const (
	// Sales family
	FulfillmentOrderStatusDraft             FulfillmentOrderStatus = "Draft"
	FulfillmentOrderStatusConfirmed         FulfillmentOrderStatus = "Confirmed"
	FulfillmentOrderStatusPartiallyInvoiced FulfillmentOrderStatus = "Partially Invoiced"
	FulfillmentOrderStatusClosed            FulfillmentOrderStatus = "Closed"
	FulfillmentOrderStatusCancelled         FulfillmentOrderStatus = "Cancelled"

	// Rental family
	FulfillmentOrderStatusPartiallyReturned FulfillmentOrderStatus = "Partially Returned"
	FulfillmentOrderStatusReturned          FulfillmentOrderStatus = "Returned"
)

var fulfillmentOrderStatuses = map[string]FulfillmentOrderStatus{
	"Draft":              FulfillmentOrderStatusDraft,
	"Confirmed":          FulfillmentOrderStatusConfirmed,
	"Partially Invoiced": FulfillmentOrderStatusPartiallyInvoiced,
	"Closed":             FulfillmentOrderStatusClosed,
	"Cancelled":          FulfillmentOrderStatusCancelled,
	"Partially Returned": FulfillmentOrderStatusPartiallyReturned,
	"Returned":           FulfillmentOrderStatusReturned,
}

func ParseFulfillmentOrderStatus(s string) (FulfillmentOrderStatus, error) {
	status, ok := fulfillmentOrderStatuses[s]
	if !ok {
		return "", errors.New("invalid fulfillment order status")
	}
	return status, nil
}

// IsTerminal reports whether no further fulfillment may be recorded.
// Cancelled is terminal-abort; Closed and Returned are terminal-success.
func (s FulfillmentOrderStatus) IsTerminal() bool {
	switch s {
	case FulfillmentOrderStatusClosed, FulfillmentOrderStatusReturned, FulfillmentOrderStatusCancelled:
		return true
	}
	return false
}

type FulfillmentEventType string

const (
	FulfillmentEventTypeDelivery    FulfillmentEventType = "Delivery"
	FulfillmentEventTypeReceipt     FulfillmentEventType = "Receipt"
	FulfillmentEventTypeInvoicePost FulfillmentEventType = "Invoice Post"

	// Correction events compensate earlier events; they are the only type
	// allowed to carry a negative quantity.
	FulfillmentEventTypeCorrection FulfillmentEventType = "Correction"
)

var fulfillmentEventTypes = map[string]FulfillmentEventType{
	"Delivery":     FulfillmentEventTypeDelivery,
	"Receipt":      FulfillmentEventTypeReceipt,
	"Invoice Post": FulfillmentEventTypeInvoicePost,
	"Correction":   FulfillmentEventTypeCorrection,
}

func ParseFulfillmentEventType(s string) (FulfillmentEventType, error) {
	t, ok := fulfillmentEventTypes[s]
	if !ok {
		return "", errors.New("invalid fulfillment event type")
	}
	return t, nil
}
