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

// WarmupStart is returned when a campaign's warm-up is enabled.
type WarmupStart struct {
	CampaignID string
	WarmupDay  int
	StartedAt  time.Time
	Schedule   []domain.DayQuota
}

// WarmupStatus is the read model of a campaign's warm-up.
type WarmupStatus struct {
	CampaignID          string
	Enabled             bool
	Paused              bool
	PauseReason         *string
	CurrentDay          int
	DaysRemaining       int
	Progress            int
	IsComplete          bool
	EstimatedCompletion *time.Time
	TodayQuota          int
	SentCount           int64
	FailedCount         int64
}

// WarmupService holds the warm-up use cases that do not send mail.
type WarmupService struct {
	campaigns   repository.CampaignRepository
	contacts    repository.ContactRepository
	sendRecords repository.SendRecordRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewWarmupService(
	campaigns repository.CampaignRepository,
	contacts repository.ContactRepository,
	sendRecords repository.SendRecordRepository,
	logger *zap.Logger,
) (*WarmupService, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact repository is required")
	}
	if sendRecords == nil {
		return nil, fmt.Errorf("send record repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WarmupService{
		campaigns:   campaigns,
		contacts:    contacts,
		sendRecords: sendRecords,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Start enables warm-up on a draft campaign, freezing the list size it was
// started with.
func (s *WarmupService) Start(ctx context.Context, userID string, campaignID string) (WarmupStart, error) {
	campaign, err := loadOwnedCampaign(ctx, s.campaigns, userID, campaignID)
	if err != nil {
		return WarmupStart{}, err
	}

	total, err := s.contacts.CountForList(ctx, campaign.ListID)
	if err != nil {
		return WarmupStart{}, fmt.Errorf("failed to count contacts for list %s: %w", campaign.ListID, err)
	}

	next, err := campaign.EnableWarmup(s.now(), int(total))
	if err != nil {
		return WarmupStart{}, err
	}
	if err := s.campaigns.Save(ctx, &next); err != nil {
		return WarmupStart{}, fmt.Errorf("failed to save campaign %s: %w", campaignID, err)
	}

	schedule, err := next.WarmupSchedule()
	if err != nil {
		return WarmupStart{}, err
	}

	observability.WithContextLogger(s.logger, ctx).Info("warm-up started",
		zap.String("campaignId", next.ID),
		zap.Int("totalContacts", next.WarmupTotalContacts),
	)

	return WarmupStart{
		CampaignID: next.ID,
		WarmupDay:  next.WarmupCurrentDay,
		StartedAt:  *next.WarmupStartedAt,
		Schedule:   schedule.Preview(),
	}, nil
}

func (s *WarmupService) Pause(ctx context.Context, userID string, campaignID string, reason string) (WarmupStatus, error) {
	if strings.TrimSpace(reason) == "" {
		return WarmupStatus{}, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}

	campaign, err := loadOwnedCampaign(ctx, s.campaigns, userID, campaignID)
	if err != nil {
		return WarmupStatus{}, err
	}

	next, err := campaign.PauseWarmup(s.now(), reason)
	if err != nil {
		return WarmupStatus{}, err
	}
	if err := s.campaigns.Save(ctx, &next); err != nil {
		return WarmupStatus{}, fmt.Errorf("failed to save campaign %s: %w", campaignID, err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("warm-up paused",
		zap.String("campaignId", next.ID),
		zap.String("reason", *next.WarmupPauseReason),
	)
	return s.statusOf(ctx, next)
}

func (s *WarmupService) Resume(ctx context.Context, userID string, campaignID string) (WarmupStatus, error) {
	campaign, err := loadOwnedCampaign(ctx, s.campaigns, userID, campaignID)
	if err != nil {
		return WarmupStatus{}, err
	}

	next, err := campaign.ResumeWarmup()
	if err != nil {
		return WarmupStatus{}, err
	}
	if err := s.campaigns.Save(ctx, &next); err != nil {
		return WarmupStatus{}, fmt.Errorf("failed to save campaign %s: %w", campaignID, err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("warm-up resumed", zap.String("campaignId", next.ID))
	return s.statusOf(ctx, next)
}

func (s *WarmupService) Status(ctx context.Context, userID string, campaignID string) (WarmupStatus, error) {
	campaign, err := loadOwnedCampaign(ctx, s.campaigns, userID, campaignID)
	if err != nil {
		return WarmupStatus{}, err
	}
	return s.statusOf(ctx, campaign)
}

func (s *WarmupService) statusOf(ctx context.Context, campaign domain.Campaign) (WarmupStatus, error) {
	schedule, err := campaign.WarmupSchedule()
	if err != nil {
		return WarmupStatus{}, err
	}

	counts, err := s.sendRecords.CountByCampaign(ctx, campaign.ID)
	if err != nil {
		return WarmupStatus{}, fmt.Errorf("failed to count send records for campaign %s: %w", campaign.ID, err)
	}

	todayQuota := 0
	if schedule.IsActive() {
		todayQuota, _ = schedule.DailyQuota(schedule.CurrentDay())
	}

	return WarmupStatus{
		CampaignID:          campaign.ID,
		Enabled:             campaign.WarmupEnabled,
		Paused:              campaign.IsWarmupPaused(),
		PauseReason:         campaign.WarmupPauseReason,
		CurrentDay:          schedule.CurrentDay(),
		DaysRemaining:       schedule.DaysRemaining(),
		Progress:            schedule.ProgressPercentage(),
		IsComplete:          schedule.IsComplete(),
		EstimatedCompletion: schedule.EstimatedCompletionDate(),
		TodayQuota:          todayQuota,
		SentCount:           counts.Sent,
		FailedCount:         counts.Failed,
	}, nil
}

// loadOwnedCampaign hides campaigns of other users behind domain.ErrNotFound.
func loadOwnedCampaign(ctx context.Context, campaigns repository.CampaignRepository, userID string, campaignID string) (domain.Campaign, error) {
	if err := requireUserID(userID); err != nil {
		return domain.Campaign{}, err
	}
	if strings.TrimSpace(campaignID) == "" {
		return domain.Campaign{}, fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	campaign, err := campaigns.GetByID(ctx, campaignID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Campaign{}, fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("failed to load campaign %s: %w", campaignID, err)
	}
	if campaign.UserID != userID {
		return domain.Campaign{}, fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}
	return *campaign, nil
}
