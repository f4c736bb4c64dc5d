package models

import (
	"log"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{}, &Profile{},
		&InvoiceRemarkCategory{}, &Invoice{},
		&LogEntry{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
