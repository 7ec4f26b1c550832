// status-rebuild recomputes every fulfillment order's lifecycle status from
// ledger history and reports (or repairs) drift. Document status is a pure
// function of the event ledger, so running this any number of times converges
// on the same result.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/status-rebuild [--business-id <uuid>] [--apply]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/mmdatafocus/fulfillment_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Business id (uuid); empty scans every business")
	apply := flag.Bool("apply", false, "Persist recomputed statuses (default: report only)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()
	if strings.TrimSpace(*businessID) != "" {
		ctx = utils.SetBusinessIdInContext(ctx, *businessID)
	} else {
		// Ops tooling is the one caller allowed to cross tenants.
		ctx = utils.SetSkipTenantScopeInContext(ctx)
	}

	var orders []*models.FulfillmentOrder
	if err := db.WithContext(ctx).
		Preload("Details").
		Find(&orders).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to load orders: %v\n", err)
		os.Exit(1)
	}

	var drifted int
	for _, order := range orders {
		result, err := workflow.RebuildStatus(ctx, order, *apply)
		if err != nil {
			fmt.Fprintf(os.Stderr, "order %s (id=%d): %v\n", order.OrderNumber, order.ID, err)
			os.Exit(1)
		}
		if result.Drifted {
			drifted++
			action := "would fix"
			if *apply {
				action = "fixed"
			}
			fmt.Printf("%s order %s (id=%d): %s -> %s\n", action, order.OrderNumber, order.ID, result.Stored, result.Derived)
		}
	}

	fmt.Printf("checked %d orders, %d drifted\n", len(orders), drifted)
}
