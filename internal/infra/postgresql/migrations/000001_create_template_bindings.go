package migrations

import (
	"github.com/clubops/notify-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createTemplateBindingsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_template_bindings",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TemplateBindingModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_template_bindings_trigger ON template_bindings (trigger) WHERE enabled`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TemplateBindingModel{})
		},
	}
}
