package migrations

import (
	"github.com/bandmail/warmup-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createCampaignsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_campaigns",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CampaignModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_campaigns_warmup_active ON campaigns (warmup_current_day) WHERE warmup_enabled = true AND warmup_paused_at IS NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CampaignModel{})
		},
	}
}
