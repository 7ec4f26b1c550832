package workflow

import (
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/models"
)

func TestResolveAddressPriority(t *testing.T) {
	sub := &models.NewAddress{Attention: "Warehouse B", Address: "12 Dock Rd", City: "Yangon"}
	fallback := &models.NewAddress{Address: "1 Main St", City: "Mandalay"}

	if got := ResolveAddress("typed override", sub, fallback); got != "typed override" {
		t.Errorf("explicit override lost: %q", got)
	}
	if got := ResolveAddress("   ", sub, fallback); got != sub.Flatten() {
		t.Errorf("blank override should fall to sub-document, got %q", got)
	}
	if got := ResolveAddress("", nil, fallback); got != fallback.Flatten() {
		t.Errorf("missing sub-document should fall to default, got %q", got)
	}
	if got := ResolveAddress("", nil, nil); got != "" {
		t.Errorf("nothing available should give empty snapshot, got %q", got)
	}
}

// An all-blank structured address is absent, not an empty override.
func TestResolveAddressSkipsBlankSubDocument(t *testing.T) {
	fallback := &models.NewAddress{Address: "1 Main St"}
	got := ResolveAddress("", &models.NewAddress{}, fallback)
	if got != fallback.Flatten() {
		t.Fatalf("blank sub-document should fall through to default, got %q", got)
	}
}

func TestResolveEventAddressesBothSides(t *testing.T) {
	customer := &models.Customer{
		BillingAddress:  models.BillingAddress{Address: "Bill St", City: "Yangon"},
		ShippingAddress: models.ShippingAddress{Address: "Ship St", City: "Bago"},
	}
	override := &AddressOverride{Billing: "custom billing"}

	billing, shipping := resolveEventAddresses(override, customer)
	if billing != "custom billing" {
		t.Errorf("billing = %q, want the explicit override", billing)
	}
	want := customer.ShippingAddress.ToNewAddress().Flatten()
	if shipping != want {
		t.Errorf("shipping = %q, want customer default %q", shipping, want)
	}
}

func TestResolveEventAddressesNilInputs(t *testing.T) {
	billing, shipping := resolveEventAddresses(nil, nil)
	if billing != "" || shipping != "" {
		t.Fatalf("nil inputs = %q/%q, want empty snapshots", billing, shipping)
	}
}
