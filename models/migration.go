package models

import (
	"log"

	"github.com/aivisionaries/hydropay_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Application{}, &Document{},
		&Audit{}, &AuditLogEntry{},
		&Milestone{},
		&Transaction{},
		&SubsidyPolicy{},
		&StatusEventRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
