package workflow

import (
	"strings"

	"github.com/mmdatafocus/fulfillment_backend/models"
)

// AddressOverride carries the optional address inputs of a fulfillment
// request: free-form overrides typed by the caller and the structured
// addresses of the referenced sub-document (delivery note, invoice).
type AddressOverride struct {
	Billing             string             `json:"billing"`
	Shipping            string             `json:"shipping"`
	SubDocumentBilling  *models.NewAddress `json:"sub_document_billing"`
	SubDocumentShipping *models.NewAddress `json:"sub_document_shipping"`
}

// ResolveAddress picks the snapshot string for one side (billing or shipping)
// of a fulfillment event, by priority:
//  1. explicit non-empty override
//  2. structured sub-document address with at least one populated field
//  3. the counterparty's default address
//  4. empty string
//
// Pure function: same inputs, same output.
func ResolveAddress(explicit string, subDocument *models.NewAddress, fallback *models.NewAddress) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed
	}
	if subDocument != nil && subDocument.HasAnyField() {
		return subDocument.Flatten()
	}
	if fallback != nil && fallback.HasAnyField() {
		return fallback.Flatten()
	}
	return ""
}

// resolveEventAddresses resolves both sides against the customer profile.
// override may be nil.
func resolveEventAddresses(override *AddressOverride, customer *models.Customer) (billing string, shipping string) {
	var explicitBilling, explicitShipping string
	var subBilling, subShipping *models.NewAddress
	if override != nil {
		explicitBilling = override.Billing
		explicitShipping = override.Shipping
		subBilling = override.SubDocumentBilling
		subShipping = override.SubDocumentShipping
	}

	var defaultBilling, defaultShipping *models.NewAddress
	if customer != nil {
		b := customer.BillingAddress.ToNewAddress()
		s := customer.ShippingAddress.ToNewAddress()
		defaultBilling = &b
		defaultShipping = &s
	}

	billing = ResolveAddress(explicitBilling, subBilling, defaultBilling)
	shipping = ResolveAddress(explicitShipping, subShipping, defaultShipping)
	return billing, shipping
}
