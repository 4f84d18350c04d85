package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"gorm.io/gorm"
)

// SendCounts summarizes a campaign's send records.
type SendCounts struct {
	Sent   int64
	Failed int64
}

type statusCount struct {
	Status domain.SendStatus `gorm:"column:status"`
	Count  int64             `gorm:"column:count"`
}

type SendRecordRepository interface {
	Create(ctx context.Context, r *domain.SendRecord) error
	FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.SendRecord, error)
	UpdateEventState(ctx context.Context, id string, update domain.SendRecordUpdate) error
	CountByCampaign(ctx context.Context, campaignID string) (SendCounts, error)
}

type GormSendRecordRepo struct {
	db *gorm.DB
}

func NewGormSendRecordRepo(db *gorm.DB) *GormSendRecordRepo {
	return &GormSendRecordRepo{db: db}
}

// Create inserts a send record. A contact holds at most one non-failed record
// per campaign; a second one yields domain.ErrConflict.
func (r *GormSendRecordRepo) Create(ctx context.Context, record *domain.SendRecord) error {
	model := sendRecordModelFromDomain(record)
	err := r.db.WithContext(ctx).Create(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: contact %d already has a send record for campaign %s", domain.ErrConflict, model.ContactID, model.CampaignID)
	}
	if err != nil {
		return err
	}
	if record != nil {
		*record = *sendRecordModelToDomain(model)
	}
	return nil
}

func (r *GormSendRecordRepo) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.SendRecord, error) {
	var model SendRecordModel
	err := r.db.WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sendRecordModelToDomain(&model), nil
}

// UpdateEventState applies update in a single statement. Timestamps only fill
// empty columns, counters increment in place and status moves only to a higher
// rank, so replayed or out-of-order events are safe.
func (r *GormSendRecordRepo) UpdateEventState(ctx context.Context, id string, update domain.SendRecordUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}

	if update.Status != nil {
		rank := update.Status.Rank()
		updates["status"] = gorm.Expr("CASE WHEN status_rank < ? THEN ? ELSE status END", rank, string(*update.Status))
		updates["status_rank"] = gorm.Expr("GREATEST(status_rank, ?)", rank)
	}

	firstWrite := map[string]*time.Time{
		"sent_at":         update.SentAt,
		"delivered_at":    update.DeliveredAt,
		"delayed_at":      update.DelayedAt,
		"bounced_at":      update.BouncedAt,
		"opened_at":       update.OpenedAt,
		"clicked_at":      update.ClickedAt,
		"complained_at":   update.ComplainedAt,
		"unsubscribed_at": update.UnsubscribedAt,
	}
	for column, value := range firstWrite {
		if value != nil {
			updates[column] = gorm.Expr("COALESCE("+column+", ?)", *value)
		}
	}

	if update.BounceType != nil {
		updates["bounce_type"] = *update.BounceType
	}
	if update.BounceReason != nil {
		updates["bounce_reason"] = *update.BounceReason
	}
	if update.LastClickURL != nil {
		updates["last_click_url"] = *update.LastClickURL
	}
	if update.IncrementOpen {
		updates["open_count"] = gorm.Expr("open_count + 1")
	}
	if update.IncrementClick {
		updates["click_count"] = gorm.Expr("click_count + 1")
	}

	result := r.db.WithContext(ctx).
		Model(&SendRecordModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormSendRecordRepo) CountByCampaign(ctx context.Context, campaignID string) (SendCounts, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&SendRecordModel{}).
		Select("status, COUNT(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return SendCounts{}, err
	}

	var counts SendCounts
	for _, row := range rows {
		switch row.Status {
		case domain.SendStatusQueued:
		case domain.SendStatusFailed:
			counts.Failed += row.Count
		default:
			counts.Sent += row.Count
		}
	}
	return counts, nil
}
