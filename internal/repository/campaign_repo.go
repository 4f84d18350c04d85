package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"gorm.io/gorm"
)

type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	Save(ctx context.Context, c *domain.Campaign) error
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

// Save writes the status and warm-up columns if the stored version still
// matches c.Version, then bumps the version on c. A stale version means another
// writer got there first and yields domain.ErrConflict.
func (r *GormCampaignRepo) Save(ctx context.Context, c *domain.Campaign) error {
	if c == nil {
		return domain.ErrValidation
	}

	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]any{
			"status":                c.Status,
			"warmup_enabled":        c.WarmupEnabled,
			"warmup_current_day":    c.WarmupCurrentDay,
			"warmup_started_at":     c.WarmupStartedAt,
			"warmup_paused_at":      c.WarmupPausedAt,
			"warmup_pause_reason":   c.WarmupPauseReason,
			"warmup_total_contacts": c.WarmupTotalContacts,
			"warmup_last_batch_at":  c.WarmupLastBatchAt,
			"version":               gorm.Expr("version + 1"),
			"updated_at":            now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}

	c.Version++
	c.UpdatedAt = now
	return nil
}
