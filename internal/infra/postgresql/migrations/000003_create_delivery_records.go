package migrations

import (
	"github.com/clubops/notify-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createDeliveryRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_delivery_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryRecordModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_delivery_records_batch_recipient ON delivery_records (batch_id, recipient)`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_records_batch_status ON delivery_records (batch_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_records_retry ON delivery_records (next_retry_at) WHERE next_retry_at IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_records_provider_message_id ON delivery_records (provider_message_id) WHERE provider_message_id <> ''`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryRecordModel{})
		},
	}
}
