package migrations

import (
	"github.com/clubops/notify-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createCampaignBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_campaign_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CampaignBatchModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_campaign_batches_binding_id ON campaign_batches (binding_id)`,
				`CREATE INDEX IF NOT EXISTS idx_campaign_batches_due ON campaign_batches (scheduled_at) WHERE status = 'PENDING'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CampaignBatchModel{})
		},
	}
}
