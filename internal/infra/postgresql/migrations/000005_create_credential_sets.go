package migrations

import (
	"github.com/clubops/notify-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createCredentialSetsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_credential_sets",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.CredentialSetModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CredentialSetModel{})
		},
	}
}
