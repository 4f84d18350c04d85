package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft   CampaignStatus = "draft"
	CampaignStatusSending CampaignStatus = "sending"
	CampaignStatusSent    CampaignStatus = "sent"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusSending, CampaignStatusSent:
		return true
	}
	return false
}

// Campaign holds the fields of an email campaign that warm-up sending needs.
// The warm-up transitions are value methods returning a modified copy; callers
// persist the result.
type Campaign struct {
	ID          string
	UserID      string
	ListID      string
	Subject     string
	HTMLContent string
	FromAddress string
	Status      CampaignStatus

	WarmupEnabled       bool
	WarmupCurrentDay    int
	WarmupStartedAt     *time.Time
	WarmupPausedAt      *time.Time
	WarmupPauseReason   *string
	WarmupTotalContacts int
	WarmupLastBatchAt   *time.Time

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Campaign) IsWarmupPaused() bool {
	return c.WarmupPausedAt != nil
}

// WarmupSchedule builds the schedule value for the campaign's current warm-up state.
func (c Campaign) WarmupSchedule() (WarmupSchedule, error) {
	return NewWarmupSchedule(c.WarmupTotalContacts, c.WarmupCurrentDay, c.WarmupStartedAt)
}

func (c Campaign) EnableWarmup(now time.Time, totalContacts int) (Campaign, error) {
	if c.Status != CampaignStatusDraft {
		return c, fmt.Errorf("%w: warm-up can only be enabled on a draft campaign (status %s)", ErrInvalidState, c.Status)
	}
	if c.WarmupEnabled {
		return c, fmt.Errorf("%w: warm-up is already enabled", ErrInvalidState)
	}
	if totalContacts < 0 {
		return c, fmt.Errorf("%w: total contacts must be >= 0", ErrValidation)
	}

	started := now.UTC()
	next := c
	next.Status = CampaignStatusSending
	next.WarmupEnabled = true
	next.WarmupCurrentDay = 1
	next.WarmupStartedAt = &started
	next.WarmupPausedAt = nil
	next.WarmupPauseReason = nil
	next.WarmupTotalContacts = totalContacts
	return next, nil
}

func (c Campaign) PauseWarmup(now time.Time, reason string) (Campaign, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return c, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if !c.WarmupEnabled {
		return c, fmt.Errorf("%w: warm-up is not enabled", ErrInvalidState)
	}
	if c.IsWarmupPaused() {
		return c, fmt.Errorf("%w: warm-up is already paused", ErrInvalidState)
	}

	paused := now.UTC()
	next := c
	next.WarmupPausedAt = &paused
	next.WarmupPauseReason = &trimmed
	return next, nil
}

func (c Campaign) ResumeWarmup() (Campaign, error) {
	if !c.WarmupEnabled {
		return c, fmt.Errorf("%w: warm-up is not enabled", ErrInvalidState)
	}
	if !c.IsWarmupPaused() {
		return c, fmt.Errorf("%w: warm-up is not paused", ErrInvalidState)
	}

	next := c
	next.WarmupPausedAt = nil
	next.WarmupPauseReason = nil
	return next, nil
}

// AdvanceWarmupDay moves to the next day after a batch. Completing day 7 marks
// the campaign sent; advancing a completed warm-up is rejected.
func (c Campaign) AdvanceWarmupDay(now time.Time) (Campaign, error) {
	if !c.WarmupEnabled {
		return c, fmt.Errorf("%w: warm-up is not enabled", ErrInvalidState)
	}
	if c.IsWarmupPaused() {
		return c, fmt.Errorf("%w: warm-up is paused", ErrInvalidState)
	}
	if c.WarmupCurrentDay > WarmupDays {
		return c, fmt.Errorf("%w: warm-up is already complete", ErrInvalidState)
	}

	return c.advanced(now), nil
}

// RecordBatchSent advances past day once that day's batch has gone out. A
// pause taken while the batch was running does not block it and stays in
// place. ErrConflict means the campaign is no longer on day.
func (c Campaign) RecordBatchSent(day int, now time.Time) (Campaign, error) {
	if !c.WarmupEnabled {
		return c, fmt.Errorf("%w: warm-up is not enabled", ErrInvalidState)
	}
	if day < 1 || day > WarmupDays {
		return c, fmt.Errorf("%w: warm-up day %d is out of range", ErrValidation, day)
	}
	if c.WarmupCurrentDay != day {
		return c, fmt.Errorf("%w: campaign moved to day %d while day %d was sending", ErrConflict, c.WarmupCurrentDay, day)
	}
	return c.advanced(now), nil
}

func (c Campaign) advanced(now time.Time) Campaign {
	batchAt := now.UTC()
	next := c
	next.WarmupCurrentDay++
	next.WarmupLastBatchAt = &batchAt
	if next.WarmupCurrentDay > WarmupDays {
		next.Status = CampaignStatusSent
	}
	return next
}
