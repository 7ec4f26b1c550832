package models

import (
	"log"

	"github.com/mmdatafocus/fulfillment_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Customer{}, &BillingAddress{}, &ShippingAddress{},
		&FulfillmentOrder{}, &FulfillmentOrderDetail{},
		&FulfillmentEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
