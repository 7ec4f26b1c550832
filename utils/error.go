package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrorRecordNotFound is returned when a document, line or counterparty
	// referenced by a request does not exist (or belongs to another business).
	ErrorRecordNotFound = errors.New("record not found")

	// ErrorInvalidInput is returned for malformed requests (negative event
	// quantity, empty batch, unknown event type).
	ErrorInvalidInput = errors.New("invalid input")

	// ErrorInvalidState is returned when a mutation is attempted on a document
	// in a terminal or cancelled state.
	ErrorInvalidState = errors.New("invalid document state")
)

// OverFulfillmentError rejects an event batch that would drive a line's
// remaining quantity below zero. It names the offending line so callers can
// surface the exact failure instead of a generic message.
type OverFulfillmentError struct {
	DetailId  int
	LineName  string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverFulfillmentError) Error() string {
	return fmt.Sprintf("fulfillment qty %s exceeds remaining qty %s for line %q",
		e.Requested.String(), e.Remaining.String(), e.LineName)
}
