package workflow

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
)

func twoLineOrder() []models.FulfillmentOrderDetail {
	return []models.FulfillmentOrderDetail{
		{ID: 1, Name: "Widget", DetailQty: d("10")},
		{ID: 2, Name: "Gadget", DetailQty: d("5")},
	}
}

func event(detailId int, qty string) models.FulfillmentEvent {
	return models.FulfillmentEvent{DetailId: detailId, EventQty: d(qty)}
}

func TestBuildSummariesCoversEveryLine(t *testing.T) {
	summaries := buildSummaries(twoLineOrder(), []models.FulfillmentEvent{event(1, "4")})

	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want one per line", len(summaries))
	}
	if !summaries[0].FulfilledQty.Equal(d("4")) || !summaries[0].RemainingQty.Equal(d("6")) {
		t.Errorf("line 1 fulfilled/remaining = %s/%s, want 4/6", summaries[0].FulfilledQty, summaries[0].RemainingQty)
	}
	if !summaries[1].FulfilledQty.Equal(d("0")) || !summaries[1].RemainingQty.Equal(d("5")) {
		t.Errorf("line 2 without events fulfilled/remaining = %s/%s, want 0/5", summaries[1].FulfilledQty, summaries[1].RemainingQty)
	}
}

// Folding the same ledger twice must give the same summaries: the fulfilled
// total is derived state, never stored.
func TestBuildSummariesIsIdempotent(t *testing.T) {
	events := []models.FulfillmentEvent{event(1, "4"), event(1, "6"), event(2, "2")}
	first := buildSummaries(twoLineOrder(), events)
	second := buildSummaries(twoLineOrder(), events)
	for i := range first {
		if !first[i].FulfilledQty.Equal(second[i].FulfilledQty) {
			t.Fatalf("line %d fold diverged: %s vs %s", first[i].DetailId, first[i].FulfilledQty, second[i].FulfilledQty)
		}
	}
}

// Conservation: fulfilled + remaining = ordered on every line, including
// after corrections drive the total back down.
func TestSummariesConserveQuantity(t *testing.T) {
	events := []models.FulfillmentEvent{event(1, "4"), event(1, "6"), event(1, "-3"), event(2, "5")}
	for _, s := range buildSummaries(twoLineOrder(), events) {
		if !s.FulfilledQty.Add(s.RemainingQty).Equal(s.OrderedQty) {
			t.Errorf("line %d: fulfilled %s + remaining %s != ordered %s", s.DetailId, s.FulfilledQty, s.RemainingQty, s.OrderedQty)
		}
	}
}

func TestValidateEntriesRejectsOverFulfillment(t *testing.T) {
	summaries := buildSummaries(twoLineOrder(), []models.FulfillmentEvent{event(1, "4"), event(1, "6")})

	_, err := validateEntries(summaries, []FulfillmentEntry{{DetailId: 1, Qty: d("1")}}, false)
	var overErr *utils.OverFulfillmentError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverFulfillmentError, got %v", err)
	}
	if overErr.DetailId != 1 || overErr.LineName != "Widget" {
		t.Errorf("error names line %d %q, want 1 %q", overErr.DetailId, overErr.LineName, "Widget")
	}
	if !overErr.Requested.Equal(d("1")) || !overErr.Remaining.Equal(d("0")) {
		t.Errorf("error carries requested %s remaining %s, want 1 and 0", overErr.Requested, overErr.Remaining)
	}
}

// A batch is all-or-nothing: one bad entry rejects the whole batch even when
// the other entries would have been fine.
func TestValidateEntriesAllOrNothing(t *testing.T) {
	summaries := buildSummaries(twoLineOrder(), nil)

	entries := []FulfillmentEntry{
		{DetailId: 2, Qty: d("3")},
		{DetailId: 1, Qty: d("11")},
	}
	_, err := validateEntries(summaries, entries, false)
	var overErr *utils.OverFulfillmentError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverFulfillmentError, got %v", err)
	}
}

// Two entries for the same line in one batch are judged against remaining as
// a sum, not independently.
func TestValidateEntriesAggregatesPerLine(t *testing.T) {
	summaries := buildSummaries(twoLineOrder(), nil)

	entries := []FulfillmentEntry{
		{DetailId: 1, Qty: d("6")},
		{DetailId: 1, Qty: d("6")},
	}
	_, err := validateEntries(summaries, entries, false)
	var overErr *utils.OverFulfillmentError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverFulfillmentError for aggregated 12 > 10, got %v", err)
	}
	if !overErr.Requested.Equal(d("12")) {
		t.Errorf("aggregated requested = %s, want 12", overErr.Requested)
	}
}

func TestValidateEntriesDropsZeroQty(t *testing.T) {
	summaries := buildSummaries(twoLineOrder(), nil)

	entries := []FulfillmentEntry{
		{DetailId: 1, Qty: d("0")},
		{DetailId: 2, Qty: d("5")},
	}
	validated, err := validateEntries(summaries, entries, false)
	if err != nil {
		t.Fatalf("zero qty entry should be a no-op, got %v", err)
	}
	if len(validated) != 1 || validated[0].DetailId != 2 {
		t.Fatalf("validated = %v, want just line 2", validated)
	}
}

func TestValidateEntriesUnknownLine(t *testing.T) {
	summaries := buildSummaries(twoLineOrder(), nil)

	_, err := validateEntries(summaries, []FulfillmentEntry{{DetailId: 99, Qty: d("1")}}, false)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown line = %v, want ErrorRecordNotFound", err)
	}
}

func TestValidateEntriesNegativeQty(t *testing.T) {
	summaries := buildSummaries(twoLineOrder(), []models.FulfillmentEvent{event(1, "4")})

	_, err := validateEntries(summaries, []FulfillmentEntry{{DetailId: 1, Qty: d("-2")}}, false)
	if !errors.Is(err, utils.ErrorInvalidInput) {
		t.Fatalf("negative qty without correction = %v, want ErrorInvalidInput", err)
	}

	validated, err := validateEntries(summaries, []FulfillmentEntry{{DetailId: 1, Qty: d("-2")}}, true)
	if err != nil {
		t.Fatalf("correction of -2 against fulfilled 4 should pass, got %v", err)
	}
	if len(validated) != 1 {
		t.Fatalf("validated = %v, want one entry", validated)
	}
}

// A correction may reduce a line's fulfilled total but never below zero.
func TestValidateEntriesCorrectionFloor(t *testing.T) {
	summaries := buildSummaries(twoLineOrder(), []models.FulfillmentEvent{event(1, "4")})

	_, err := validateEntries(summaries, []FulfillmentEntry{{DetailId: 1, Qty: d("-5")}}, true)
	if !errors.Is(err, utils.ErrorInvalidInput) {
		t.Fatalf("correction below zero = %v, want ErrorInvalidInput", err)
	}
}

func TestApplyEntriesMatchesRefold(t *testing.T) {
	details := twoLineOrder()
	events := []models.FulfillmentEvent{event(1, "4")}
	summaries := buildSummaries(details, events)

	entries := []FulfillmentEntry{{DetailId: 1, Qty: d("6")}, {DetailId: 2, Qty: d("2")}}
	advanced := applyEntries(summaries, entries)

	refolded := buildSummaries(details, append(events, event(1, "6"), event(2, "2")))
	for i := range advanced {
		if !advanced[i].FulfilledQty.Equal(refolded[i].FulfilledQty) || !advanced[i].RemainingQty.Equal(refolded[i].RemainingQty) {
			t.Errorf("line %d: applyEntries %s/%s, refold %s/%s",
				advanced[i].DetailId, advanced[i].FulfilledQty, advanced[i].RemainingQty,
				refolded[i].FulfilledQty, refolded[i].RemainingQty)
		}
	}
}
