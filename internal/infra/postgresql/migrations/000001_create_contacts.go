package migrations

import (
	"github.com/bandmail/warmup-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createContactsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_contacts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ContactModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_contacts_list_id_id ON contacts (list_id, id) WHERE unsubscribed = false`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_list_email ON contacts (list_id, lower(email))`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ContactModel{})
		},
	}
}
