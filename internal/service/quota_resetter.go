package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultQuotaResetInterval = time.Hour

type quotaResetSource interface {
	ResetElapsed(ctx context.Context) (int64, error)
}

// QuotaResetter periodically rolls stale quota counters into the current
// period. Reads and writes already roll over lazily; this keeps the table
// itself current for reporting.
type QuotaResetter struct {
	tracker  quotaResetSource
	logger   *zap.Logger
	interval time.Duration
}

func NewQuotaResetter(tracker quotaResetSource, interval time.Duration, logger *zap.Logger) (*QuotaResetter, error) {
	if tracker == nil {
		return nil, fmt.Errorf("quota tracker is required")
	}
	if interval <= 0 {
		interval = defaultQuotaResetInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QuotaResetter{
		tracker:  tracker,
		logger:   logger,
		interval: interval,
	}, nil
}

func (r *QuotaResetter) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := r.resetOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("initial quota reset failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.resetOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("quota reset failed", zap.Error(err))
			}
		}
	}
}

func (r *QuotaResetter) resetOnce(ctx context.Context) error {
	n, err := r.tracker.ResetElapsed(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Info("quota counters reset", zap.Int64("records", n))
	}
	return nil
}
