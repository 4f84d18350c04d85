package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/bandmail/warmup-engine/internal/observability"
	"github.com/bandmail/warmup-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultMonthlyLimit = 10000

// QuotaTracker enforces each user's sending ceiling for the configured period.
// Every write goes through the repository's row-locked Update, so concurrent
// consumers for the same user can never both take the last unit.
type QuotaTracker struct {
	quotas       repository.QuotaRepository
	period       domain.QuotaPeriod
	defaultLimit int
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

func NewQuotaTracker(
	quotas repository.QuotaRepository,
	period domain.QuotaPeriod,
	defaultLimit int,
	logger *zap.Logger,
) (*QuotaTracker, error) {
	if quotas == nil {
		return nil, fmt.Errorf("quota repository is required")
	}
	if !period.IsValid() {
		period = domain.QuotaPeriodMonthly
	}
	if defaultLimit <= 0 {
		defaultLimit = defaultMonthlyLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QuotaTracker{
		quotas:       quotas,
		period:       period,
		defaultLimit: defaultLimit,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (t *QuotaTracker) SetMetrics(metrics *observability.Metrics) {
	if t == nil {
		return
	}
	t.metrics = metrics
}

func (t *QuotaTracker) Period() domain.QuotaPeriod {
	return t.period
}

// Check reports the user's quota without changing it. A counter from an earlier
// period reads as zero.
func (t *QuotaTracker) Check(ctx context.Context, userID string) (domain.QuotaStatus, error) {
	if err := requireUserID(userID); err != nil {
		return domain.QuotaStatus{}, err
	}

	now := t.now().UTC()
	record, err := t.quotas.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return t.seed(userID, now).Status(t.period, now), nil
	}
	if err != nil {
		return domain.QuotaStatus{}, fmt.Errorf("failed to load quota for user %s: %w", userID, err)
	}

	return record.Status(t.period, now), nil
}

// Consume takes one unit. It returns *domain.QuotaExceededError at the ceiling
// and a wrapped storage error otherwise; neither case changes the counter.
func (t *QuotaTracker) Consume(ctx context.Context, userID string) error {
	if err := requireUserID(userID); err != nil {
		return err
	}

	now := t.now().UTC()
	_, err := t.quotas.Update(ctx, t.seed(userID, now), func(current domain.QuotaRecord) (domain.QuotaRecord, error) {
		return current.Consume(t.period, now)
	})
	if errors.Is(err, domain.ErrQuotaExceeded) {
		t.metrics.IncQuotaRejected()
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to consume quota for user %s: %w", userID, err)
	}
	return nil
}

// Release returns a unit consumed at consumedAt for a send that never left.
func (t *QuotaTracker) Release(ctx context.Context, userID string, consumedAt time.Time) error {
	if err := requireUserID(userID); err != nil {
		return err
	}

	now := t.now().UTC()
	_, err := t.quotas.Update(ctx, t.seed(userID, now), func(current domain.QuotaRecord) (domain.QuotaRecord, error) {
		return current.Release(t.period, now, consumedAt), nil
	})
	if err != nil {
		return fmt.Errorf("failed to release quota for user %s: %w", userID, err)
	}
	return nil
}

// ResetElapsed rolls every stale counter into the current period in one statement.
func (t *QuotaTracker) ResetElapsed(ctx context.Context) (int64, error) {
	periodStart := t.period.Start(t.now())
	n, err := t.quotas.ResetElapsed(ctx, periodStart)
	if err != nil {
		return 0, fmt.Errorf("failed to reset elapsed quotas: %w", err)
	}
	t.metrics.AddQuotaResets(n)
	return n, nil
}

func (t *QuotaTracker) seed(userID string, now time.Time) domain.QuotaRecord {
	return domain.QuotaRecord{
		UserID:        userID,
		MonthlyLimit:  t.defaultLimit,
		LastResetDate: t.period.Start(now),
		UpdatedAt:     now,
	}
}

func requireUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	return nil
}
