package repository

import (
	"context"

	"github.com/bandmail/warmup-engine/internal/domain"
	"gorm.io/gorm"
)

type ContactRepository interface {
	CountForList(ctx context.Context, listID string) (int64, error)
	FindUnsentForCampaign(ctx context.Context, campaignID string, listID string, offset int, limit int) ([]domain.Contact, error)
}

type GormContactRepo struct {
	db *gorm.DB
}

func NewGormContactRepo(db *gorm.DB) *GormContactRepo {
	return &GormContactRepo{db: db}
}

// CountForList counts the subscribed contacts of a list.
func (r *GormContactRepo) CountForList(ctx context.Context, listID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&ContactModel{}).
		Where("list_id = ? AND unsubscribed = ?", listID, false).
		Count(&total).Error
	return total, err
}

// FindUnsentForCampaign returns subscribed contacts with no successful send
// record for the campaign, lowest id first. A contact whose only records failed
// is eligible again.
func (r *GormContactRepo) FindUnsentForCampaign(ctx context.Context, campaignID string, listID string, offset int, limit int) ([]domain.Contact, error) {
	if limit <= 0 {
		return nil, nil
	}

	sent := r.db.Model(&SendRecordModel{}).
		Select("1").
		Where("send_records.contact_id = contacts.id AND send_records.campaign_id = ? AND send_records.status <> ?", campaignID, domain.SendStatusFailed)

	var models []ContactModel
	err := r.db.WithContext(ctx).
		Where("list_id = ? AND unsubscribed = ?", listID, false).
		Where("NOT EXISTS (?)", sent).
		Order("id ASC").
		Offset(max(offset, 0)).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	contacts := make([]domain.Contact, 0, len(models))
	for _, m := range models {
		contacts = append(contacts, contactModelToDomain(m))
	}
	return contacts, nil
}
