package domain

import (
	"fmt"
	"strings"
	"time"
)

// QuotaPeriod is the cycle after which a user's sent counter resets.
type QuotaPeriod string

const (
	QuotaPeriodDaily   QuotaPeriod = "daily"
	QuotaPeriodMonthly QuotaPeriod = "monthly"
)

func (p QuotaPeriod) String() string { return string(p) }

func (p QuotaPeriod) IsValid() bool {
	switch p {
	case QuotaPeriodDaily, QuotaPeriodMonthly:
		return true
	}
	return false
}

func ParseQuotaPeriodFromString(s string) (QuotaPeriod, error) {
	p := QuotaPeriod(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: invalid quota period %q", ErrValidation, s)
	}
	return p, nil
}

// Start returns the UTC start of the period containing t.
func (p QuotaPeriod) Start(t time.Time) time.Time {
	u := t.UTC()
	if p == QuotaPeriodDaily {
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the start of the period following the one containing t.
func (p QuotaPeriod) Next(t time.Time) time.Time {
	start := p.Start(t)
	if p == QuotaPeriodDaily {
		return start.AddDate(0, 0, 1)
	}
	return start.AddDate(0, 1, 0)
}

// QuotaRecord is a user's sending counter for the current period.
type QuotaRecord struct {
	UserID          string
	EmailsSentToday int
	MonthlyLimit    int
	LastResetDate   time.Time
	UpdatedAt       time.Time
}

// QuotaStatus is the read-only view returned by quota checks.
type QuotaStatus struct {
	EmailsSentToday int
	MonthlyLimit    int
	Remaining       int
	ResetDate       time.Time
	Allowed         bool
}

// NeedsReset reports whether the record's counter belongs to an earlier period.
func (r QuotaRecord) NeedsReset(period QuotaPeriod, now time.Time) bool {
	return r.LastResetDate.Before(period.Start(now))
}

// Rollover returns the record as it must be seen at now: a counter from an
// earlier period is zeroed and the reset date moves to the current period start.
func (r QuotaRecord) Rollover(period QuotaPeriod, now time.Time) QuotaRecord {
	if !r.NeedsReset(period, now) {
		return r
	}
	next := r
	next.EmailsSentToday = 0
	next.LastResetDate = period.Start(now)
	return next
}

func (r QuotaRecord) Status(period QuotaPeriod, now time.Time) QuotaStatus {
	current := r.Rollover(period, now)
	remaining := current.MonthlyLimit - current.EmailsSentToday
	if remaining < 0 {
		remaining = 0
	}

	return QuotaStatus{
		EmailsSentToday: current.EmailsSentToday,
		MonthlyLimit:    current.MonthlyLimit,
		Remaining:       remaining,
		ResetDate:       period.Next(now),
		Allowed:         current.EmailsSentToday < current.MonthlyLimit,
	}
}

// Consume increments the counter by one unit or reports the ceiling.
func (r QuotaRecord) Consume(period QuotaPeriod, now time.Time) (QuotaRecord, error) {
	current := r.Rollover(period, now)
	if current.EmailsSentToday >= current.MonthlyLimit {
		return current, &QuotaExceededError{Limit: current.MonthlyLimit, Current: current.EmailsSentToday}
	}
	current.EmailsSentToday++
	return current, nil
}

// Release gives back one unit. A unit from an earlier period is not returned
// because that counter has already been reset.
func (r QuotaRecord) Release(period QuotaPeriod, now time.Time, consumedAt time.Time) QuotaRecord {
	current := r.Rollover(period, now)
	if period.Start(consumedAt).Before(current.LastResetDate) {
		return current
	}
	if current.EmailsSentToday > 0 {
		current.EmailsSentToday--
	}
	return current
}
