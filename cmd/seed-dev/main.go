// seed-dev creates a development business with a login user, a customer and a pair of
// fulfillment orders (one sales, one rental) so the API can be exercised
// locally.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	// Order numbering goes through the redis counter.
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	businessID := uuid.NewString()
	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "seed-dev")

	user, err := models.CreateUser(ctx, &models.NewUser{
		Username: "dev",
		Name:     "Dev User",
		Email:    "dev-user@local.test",
		Password: "devpassword",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create user: %v\n", err)
		os.Exit(1)
	}

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  "Dev Customer",
		Email: "dev@local.test",
		BillingAddress: &models.NewAddress{
			Attention: "Accounts",
			Address:   "No. 5 Merchant Road",
			City:      "Yangon",
			Country:   "Myanmar",
		},
		ShippingAddress: &models.NewAddress{
			Attention: "Goods Inward",
			Address:   "Warehouse 3, Industrial Zone",
			City:      "Yangon",
			Country:   "Myanmar",
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create customer: %v\n", err)
		os.Exit(1)
	}

	salesOrder, err := models.CreateFulfillmentOrder(ctx, &models.NewFulfillmentOrder{
		CustomerId:     customer.ID,
		DocumentFamily: models.DocumentFamilySales,
		OrderDate:      time.Now().UTC(),
		Details: []models.NewFulfillmentOrderDetail{
			{Name: "Widget A", DetailQty: decimal.NewFromInt(10)},
			{Name: "Widget B", DetailQty: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create sales order: %v\n", err)
		os.Exit(1)
	}

	rentalOrder, err := models.CreateFulfillmentOrder(ctx, &models.NewFulfillmentOrder{
		CustomerId:     customer.ID,
		DocumentFamily: models.DocumentFamilyRental,
		OrderDate:      time.Now().UTC(),
		Details: []models.NewFulfillmentOrderDetail{
			{Name: "Scaffolding Set", DetailQty: decimal.NewFromInt(8)},
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create rental order: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("business_id: %s\n", businessID)
	fmt.Printf("user:        %d (%s / devpassword)\n", user.ID, user.Username)
	fmt.Printf("customer:    %d (%s)\n", customer.ID, customer.Name)
	fmt.Printf("sales order: %d (%s)\n", salesOrder.ID, salesOrder.OrderNumber)
	fmt.Printf("rental order: %d (%s)\n", rentalOrder.ID, rentalOrder.OrderNumber)
}
