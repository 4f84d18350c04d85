package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/bandmail/warmup-engine/internal/observability"
	"github.com/bandmail/warmup-engine/internal/provider"
	"github.com/bandmail/warmup-engine/internal/ratelimit"
	"github.com/bandmail/warmup-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchConcurrency = 8
	maxAdvanceAttempts      = 3
)

// CampaignLocker serializes batch runs of one campaign across instances.
type CampaignLocker interface {
	Acquire(ctx context.Context, campaignID string) (func(context.Context) error, error)
}

type quotaGate interface {
	Consume(ctx context.Context, userID string) error
	Release(ctx context.Context, userID string, consumedAt time.Time) error
}

// BatchResult summarizes one day's batch.
type BatchResult struct {
	BatchSent      int
	BatchFailed    int
	WarmupDay      int
	IsComplete     bool
	NextBatchQuota int
}

// BatchSenderDeps wires a BatchSender.
type BatchSenderDeps struct {
	Campaigns   repository.CampaignRepository
	Contacts    repository.ContactRepository
	SendRecords repository.SendRecordRepository
	Quota       quotaGate
	Mailer      provider.Mailer
	Throttle    ratelimit.Throttle
	Locker      CampaignLocker
	Logger      *zap.Logger
	Metrics     *observability.Metrics

	DefaultFrom string
	Concurrency int
}

// BatchSender sends the current warm-up day's batch of a campaign.
type BatchSender struct {
	campaigns   repository.CampaignRepository
	contacts    repository.ContactRepository
	sendRecords repository.SendRecordRepository
	quota       quotaGate
	mailer      provider.Mailer
	throttle    ratelimit.Throttle
	locker      CampaignLocker
	logger      *zap.Logger
	metrics     *observability.Metrics
	defaultFrom string
	concurrency int
	now         func() time.Time
	newID       func() string
}

func NewBatchSender(deps BatchSenderDeps) (*BatchSender, error) {
	switch {
	case deps.Campaigns == nil:
		return nil, fmt.Errorf("campaign repository is required")
	case deps.Contacts == nil:
		return nil, fmt.Errorf("contact repository is required")
	case deps.SendRecords == nil:
		return nil, fmt.Errorf("send record repository is required")
	case deps.Quota == nil:
		return nil, fmt.Errorf("quota tracker is required")
	case deps.Mailer == nil:
		return nil, fmt.Errorf("mailer is required")
	case deps.Throttle == nil:
		return nil, fmt.Errorf("send throttle is required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("campaign locker is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	return &BatchSender{
		campaigns:   deps.Campaigns,
		contacts:    deps.Contacts,
		sendRecords: deps.SendRecords,
		quota:       deps.Quota,
		mailer:      deps.Mailer,
		throttle:    deps.Throttle,
		locker:      deps.Locker,
		logger:      logger,
		metrics:     deps.Metrics,
		defaultFrom: strings.TrimSpace(deps.DefaultFrom),
		concurrency: concurrency,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// SendNextBatch sends today's batch and advances the warm-up by one day.
// Individual send failures are counted, not returned. If the user's quota is
// exhausted before anything went out, the day is not advanced and the quota
// error is returned.
func (b *BatchSender) SendNextBatch(ctx context.Context, userID string, campaignID string) (BatchResult, error) {
	if err := requireUserID(userID); err != nil {
		return BatchResult{}, err
	}

	release, err := b.locker.Acquire(ctx, campaignID)
	if err != nil {
		return BatchResult{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			b.logger.Warn("failed to release campaign lock", zap.String("campaignId", campaignID), zap.Error(err))
		}
	}()

	campaign, err := loadOwnedCampaign(ctx, b.campaigns, userID, campaignID)
	if err != nil {
		return BatchResult{}, err
	}

	schedule, err := campaign.WarmupSchedule()
	if err != nil {
		return BatchResult{}, err
	}
	switch {
	case !campaign.WarmupEnabled:
		return BatchResult{}, fmt.Errorf("%w: warm-up is not enabled", domain.ErrInvalidState)
	case campaign.IsWarmupPaused():
		return BatchResult{}, fmt.Errorf("%w: warm-up is paused", domain.ErrInvalidState)
	case schedule.IsComplete():
		return BatchResult{}, fmt.Errorf("%w: warm-up is already complete", domain.ErrInvalidState)
	}

	day := schedule.CurrentDay()
	quota, err := schedule.DailyQuota(day)
	if err != nil {
		return BatchResult{}, err
	}

	logger := observability.WithContextLogger(b.logger, ctx).With(
		zap.String("campaignId", campaign.ID),
		zap.Int("warmupDay", day),
	)

	contacts, err := b.contacts.FindUnsentForCampaign(ctx, campaign.ID, campaign.ListID, 0, quota)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to load contacts for campaign %s: %w", campaign.ID, err)
	}

	b.metrics.IncBatchInFlight()
	sent, failed, exhausted := b.sendAll(ctx, logger, campaign, contacts)
	b.metrics.DecBatchInFlight()

	if exhausted && sent == 0 {
		b.metrics.ObserveWarmupBatch(day, "quota_exceeded")
		logger.Warn("warm-up batch stopped: sending quota exhausted")
		return BatchResult{}, fmt.Errorf("%w: no emails left in the current period", domain.ErrQuotaExceeded)
	}

	next, err := b.advanceAfterBatch(ctx, logger, campaign, day)
	if err != nil {
		return BatchResult{}, err
	}

	nextSchedule, err := next.WarmupSchedule()
	if err != nil {
		return BatchResult{}, err
	}
	nextQuota := 0
	if nextSchedule.IsActive() {
		nextQuota, _ = nextSchedule.DailyQuota(nextSchedule.CurrentDay())
	}

	outcome := "complete"
	if failed > 0 {
		outcome = "partial"
	}
	b.metrics.ObserveWarmupBatch(day, outcome)

	logger.Info("warm-up batch sent",
		zap.Int("batchSent", sent),
		zap.Int("batchFailed", failed),
		zap.Int("nextWarmupDay", next.WarmupCurrentDay),
	)

	return BatchResult{
		BatchSent:      sent,
		BatchFailed:    failed,
		WarmupDay:      next.WarmupCurrentDay,
		IsComplete:     nextSchedule.IsComplete(),
		NextBatchQuota: nextQuota,
	}, nil
}

// advanceAfterBatch persists the day advance of a batch that already went out.
// A pause or resume saved meanwhile bumps the version; the advance is then
// applied to the reloaded row, which keeps its pause state.
func (b *BatchSender) advanceAfterBatch(ctx context.Context, logger *zap.Logger, campaign domain.Campaign, day int) (domain.Campaign, error) {
	ctx = context.WithoutCancel(ctx)
	current := campaign

	for attempt := 1; ; attempt++ {
		next, err := current.RecordBatchSent(day, b.now())
		if err != nil {
			return domain.Campaign{}, fmt.Errorf("failed to advance campaign %s after batch: %w", campaign.ID, err)
		}

		err = b.campaigns.Save(ctx, &next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == maxAdvanceAttempts {
			return domain.Campaign{}, fmt.Errorf("failed to save campaign %s after batch: %w", campaign.ID, err)
		}

		logger.Info("campaign changed while batch was sending, reapplying day advance", zap.Int("attempt", attempt))
		fresh, err := b.campaigns.GetByID(ctx, campaign.ID)
		if err != nil {
			return domain.Campaign{}, fmt.Errorf("failed to reload campaign %s after batch: %w", campaign.ID, err)
		}
		current = *fresh
	}
}

// sendAll fans the batch out over a bounded pool. Once the quota runs out the
// remaining contacts are counted as failed without being sent.
func (b *BatchSender) sendAll(ctx context.Context, logger *zap.Logger, campaign domain.Campaign, contacts []domain.Contact) (int, int, bool) {
	var sent, failed atomic.Int64
	var exhausted atomic.Bool

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.concurrency)

	for _, contact := range contacts {
		group.Go(func() error {
			if exhausted.Load() {
				failed.Add(1)
				return nil
			}
			switch b.sendOne(groupCtx, logger, campaign, contact) {
			case sendOK:
				sent.Add(1)
			case sendQuotaExhausted:
				exhausted.Store(true)
				failed.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = group.Wait()

	return int(sent.Load()), int(failed.Load()), exhausted.Load()
}

type sendOutcome int

const (
	sendOK sendOutcome = iota
	sendFailed
	sendSkipped
	sendQuotaExhausted
)

func (b *BatchSender) sendOne(ctx context.Context, logger *zap.Logger, campaign domain.Campaign, contact domain.Contact) sendOutcome {
	logger = logger.With(zap.Int64("contactId", contact.ID))
	providerName := b.mailer.Name()

	if err := b.throttle.Wait(ctx, providerName); err != nil {
		logger.Warn("send throttle wait failed", zap.Error(err))
		b.metrics.IncEmailFailed(providerName, "throttle")
		return sendSkipped
	}

	consumedAt := b.now().UTC()
	if err := b.quota.Consume(ctx, campaign.UserID); err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			b.metrics.IncEmailFailed(providerName, "quota_exceeded")
			return sendQuotaExhausted
		}
		logger.Error("quota consume failed", zap.Error(err))
		b.metrics.IncEmailFailed(providerName, "quota_error")
		return sendSkipped
	}

	start := time.Now()
	result, err := b.mailer.Send(ctx, provider.OutboundEmail{
		From:    b.fromAddress(campaign),
		To:      contact.Email,
		Subject: campaign.Subject,
		HTML:    campaign.HTMLContent,
		Tags: map[string]string{
			"campaign_id": campaign.ID,
			"contact_id":  strconv.FormatInt(contact.ID, 10),
		},
	})
	b.metrics.ObserveMailSendDuration(providerName, time.Since(start))

	if err != nil {
		if releaseErr := b.quota.Release(context.WithoutCancel(ctx), campaign.UserID, consumedAt); releaseErr != nil {
			logger.Error("failed to release quota after send failure", zap.Error(releaseErr))
		}

		reason := provider.FailureReason(err)
		b.metrics.IncEmailFailed(providerName, reason)
		logger.Warn("warm-up email failed", zap.String("reason", reason), zap.Error(err))

		message := err.Error()
		b.recordSend(ctx, logger, campaign, contact, domain.SendRecord{
			Status: domain.SendStatusFailed,
			Error:  &message,
		})
		return sendFailed
	}

	sentAt := b.now().UTC()
	record := domain.SendRecord{Status: domain.SendStatusSent, SentAt: &sentAt}
	if result != nil && result.MessageID != "" {
		messageID := result.MessageID
		record.ProviderMessageID = &messageID
	}
	b.recordSend(ctx, logger, campaign, contact, record)
	b.metrics.IncEmailSent(providerName)
	return sendOK
}

// recordSend persists the outcome. The email has already left when this runs,
// so a storage error is logged and does not change the outcome.
func (b *BatchSender) recordSend(ctx context.Context, logger *zap.Logger, campaign domain.Campaign, contact domain.Contact, record domain.SendRecord) {
	now := b.now().UTC()
	record.ID = b.newID()
	record.CampaignID = campaign.ID
	record.ContactID = contact.ID
	record.UserID = campaign.UserID
	record.Recipient = contact.Email
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := b.sendRecords.Create(context.WithoutCancel(ctx), &record); err != nil {
		logger.Error("failed to persist send record",
			zap.String("status", record.Status.String()),
			zap.Error(err),
		)
	}
}

func (b *BatchSender) fromAddress(campaign domain.Campaign) string {
	if from := strings.TrimSpace(campaign.FromAddress); from != "" {
		return from
	}
	return b.defaultFrom
}
