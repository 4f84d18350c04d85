package migrations

import (
	"github.com/bandmail/warmup-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createQuotaRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_quota_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.QuotaModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`ALTER TABLE quota_records ADD CONSTRAINT chk_quota_sent_non_negative CHECK (emails_sent_today >= 0)`,
				`ALTER TABLE quota_records ADD CONSTRAINT chk_quota_limit_positive CHECK (monthly_limit > 0)`,
				`CREATE INDEX IF NOT EXISTS idx_quota_records_last_reset ON quota_records (last_reset_date)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.QuotaModel{})
		},
	}
}
