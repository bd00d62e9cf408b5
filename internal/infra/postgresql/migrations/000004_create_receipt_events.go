package migrations

import (
	"github.com/clubops/notify-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createReceiptEventsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_receipt_events",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.ReceiptEventModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ReceiptEventModel{})
		},
	}
}
