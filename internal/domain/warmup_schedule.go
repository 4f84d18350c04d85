package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	// WarmupDays is the length of the ramp; day WarmupDays sends the remainder.
	WarmupDays = 7
)

// fixedDailyQuotas holds the caps for days 1..6. Day 7 has no cap.
var fixedDailyQuotas = [WarmupDays - 1]int{50, 100, 200, 400, 800, 1200}

// DayQuota is one row of a schedule preview.
type DayQuota struct {
	Day   int
	Quota int
}

// WarmupSchedule computes per-day sending quotas for a list warm-up.
// It is immutable; AdvanceToNextDay returns a new value.
type WarmupSchedule struct {
	totalContacts int
	currentDay    int
	startedAt     *time.Time
}

func NewWarmupSchedule(totalContacts int, currentDay int, startedAt *time.Time) (WarmupSchedule, error) {
	if totalContacts < 0 {
		return WarmupSchedule{}, fmt.Errorf("%w: total contacts must be >= 0 (got %d)", ErrValidation, totalContacts)
	}
	if currentDay < 0 {
		return WarmupSchedule{}, fmt.Errorf("%w: current day must be >= 0 (got %d)", ErrValidation, currentDay)
	}
	if currentDay > 0 && startedAt == nil {
		return WarmupSchedule{}, fmt.Errorf("%w: started at is required once warm-up has started", ErrValidation)
	}

	var started *time.Time
	if startedAt != nil {
		value := *startedAt
		started = &value
	}

	return WarmupSchedule{
		totalContacts: totalContacts,
		currentDay:    currentDay,
		startedAt:     started,
	}, nil
}

func (s WarmupSchedule) TotalContacts() int { return s.totalContacts }

func (s WarmupSchedule) CurrentDay() int { return s.currentDay }

func (s WarmupSchedule) StartedAt() *time.Time {
	if s.startedAt == nil {
		return nil
	}
	value := *s.startedAt
	return &value
}

// DailyQuota returns how many emails may be sent on the given day (1..7).
func (s WarmupSchedule) DailyQuota(day int) (int, error) {
	if day < 1 || day > WarmupDays {
		return 0, fmt.Errorf("%w: warm-up day must be between 1 and %d (got %d)", ErrValidation, WarmupDays, day)
	}

	remaining := s.totalContacts - fixedSentThrough(day-1)
	if remaining < 0 {
		remaining = 0
	}
	if day == WarmupDays {
		return remaining, nil
	}

	return min(fixedDailyQuotas[day-1], remaining), nil
}

// Preview lists the quota of every warm-up day.
func (s WarmupSchedule) Preview() []DayQuota {
	preview := make([]DayQuota, 0, WarmupDays)
	for day := 1; day <= WarmupDays; day++ {
		quota, _ := s.DailyQuota(day)
		preview = append(preview, DayQuota{Day: day, Quota: quota})
	}
	return preview
}

func (s WarmupSchedule) IsComplete() bool {
	return s.currentDay > WarmupDays
}

func (s WarmupSchedule) IsActive() bool {
	return s.currentDay >= 1 && s.currentDay <= WarmupDays
}

func (s WarmupSchedule) DaysRemaining() int {
	switch {
	case s.IsComplete():
		return 0
	case !s.IsActive():
		return WarmupDays
	default:
		return WarmupDays - s.currentDay + 1
	}
}

// AdvanceToNextDay returns the schedule for the following day. Complete and
// not-yet-started schedules are returned unchanged.
func (s WarmupSchedule) AdvanceToNextDay() WarmupSchedule {
	if s.IsComplete() || s.currentDay == 0 {
		return s
	}

	next := s
	next.currentDay++
	return next
}

func (s WarmupSchedule) ProgressPercentage() int {
	switch {
	case s.currentDay == 0:
		return 0
	case s.IsComplete():
		return 100
	default:
		return int(math.Round(float64(s.currentDay) / WarmupDays * 100))
	}
}

func (s WarmupSchedule) EstimatedCompletionDate() *time.Time {
	if s.startedAt == nil {
		return nil
	}
	estimated := s.startedAt.AddDate(0, 0, s.DaysRemaining())
	return &estimated
}

// fixedSentThrough sums the fixed caps of days 1..day. Day 7 never contributes.
func fixedSentThrough(day int) int {
	total := 0
	for i := 0; i < day && i < len(fixedDailyQuotas); i++ {
		total += fixedDailyQuotas[i]
	}
	return total
}
