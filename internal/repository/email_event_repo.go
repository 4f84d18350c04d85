package repository

import (
	"context"

	"github.com/bandmail/warmup-engine/internal/domain"
	"gorm.io/gorm"
)

type EmailEventRepository interface {
	Create(ctx context.Context, e *domain.EmailEvent) error
}

type GormEmailEventRepo struct {
	db *gorm.DB
}

func NewGormEmailEventRepo(db *gorm.DB) *GormEmailEventRepo {
	return &GormEmailEventRepo{db: db}
}

func (r *GormEmailEventRepo) Create(ctx context.Context, e *domain.EmailEvent) error {
	return r.db.WithContext(ctx).Create(emailEventModelFromDomain(e)).Error
}
