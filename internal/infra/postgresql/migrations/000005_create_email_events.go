package migrations

import (
	"github.com/bandmail/warmup-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createEmailEventsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_email_events",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EmailEventModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_email_events_type_occurred ON email_events (event_type, occurred_at)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EmailEventModel{})
		},
	}
}
