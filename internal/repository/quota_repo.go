package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuotaMutation computes the next state of a locked quota record. Returning an
// error rolls the transaction back; the returned record is still handed to the
// caller so it can report the state it saw.
type QuotaMutation func(current domain.QuotaRecord) (domain.QuotaRecord, error)

type QuotaRepository interface {
	Get(ctx context.Context, userID string) (*domain.QuotaRecord, error)
	Update(ctx context.Context, seed domain.QuotaRecord, mutate QuotaMutation) (domain.QuotaRecord, error)
	ResetElapsed(ctx context.Context, periodStart time.Time) (int64, error)
}

type GormQuotaRepo struct {
	db *gorm.DB
}

func NewGormQuotaRepo(db *gorm.DB) *GormQuotaRepo {
	return &GormQuotaRepo{db: db}
}

func (r *GormQuotaRepo) Get(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	var model QuotaModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	record := quotaModelToDomain(model)
	return &record, nil
}

// Update runs mutate against the user's row while holding SELECT ... FOR UPDATE,
// creating the row from seed first when the user has none. Concurrent callers
// for the same user are serialized by the row lock.
func (r *GormQuotaRepo) Update(ctx context.Context, seed domain.QuotaRecord, mutate QuotaMutation) (domain.QuotaRecord, error) {
	var out domain.QuotaRecord

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := lockQuotaRow(tx, seed.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seedModel := quotaModelFromDomain(seed)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seedModel).Error; err != nil {
				return err
			}
			model, err = lockQuotaRow(tx, seed.UserID)
		}
		if err != nil {
			return err
		}

		next, mutateErr := mutate(quotaModelToDomain(model))
		out = next
		if mutateErr != nil {
			return mutateErr
		}

		return tx.Model(&QuotaModel{}).
			Where("user_id = ?", seed.UserID).
			Updates(map[string]any{
				"emails_sent_today": next.EmailsSentToday,
				"last_reset_date":   next.LastResetDate,
				"updated_at":        time.Now().UTC(),
			}).Error
	})

	return out, err
}

// ResetElapsed zeroes every counter whose last reset predates periodStart.
func (r *GormQuotaRepo) ResetElapsed(ctx context.Context, periodStart time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&QuotaModel{}).
		Where("last_reset_date < ?", periodStart).
		Updates(map[string]any{
			"emails_sent_today": 0,
			"last_reset_date":   periodStart,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func lockQuotaRow(tx *gorm.DB, userID string) (QuotaModel, error) {
	var model QuotaModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "user_id = ?", userID).Error
	return model, err
}
