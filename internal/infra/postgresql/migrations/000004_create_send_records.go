package migrations

import (
	"github.com/bandmail/warmup-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createSendRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_send_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SendRecordModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_send_records_provider_message_id ON send_records (provider_message_id) WHERE provider_message_id IS NOT NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_send_records_campaign_contact ON send_records (campaign_id, contact_id) WHERE status <> 'failed'`,
				`CREATE INDEX IF NOT EXISTS idx_send_records_campaign_status ON send_records (campaign_id, status)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SendRecordModel{})
		},
	}
}
