package domain

import (
	"errors"
	"testing"
	"time"
)

func TestQuotaPeriodBoundaries(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 17, 15, 4, 5, 0, time.UTC)

	if got, want := QuotaPeriodDaily.Start(at), time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("daily Start() = %v, want %v", got, want)
	}
	if got, want := QuotaPeriodDaily.Next(at), time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("daily Next() = %v, want %v", got, want)
	}
	if got, want := QuotaPeriodMonthly.Start(at), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("monthly Start() = %v, want %v", got, want)
	}
	if got, want := QuotaPeriodMonthly.Next(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("monthly Next() = %v, want %v", got, want)
	}
}

func TestParseQuotaPeriodFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseQuotaPeriodFromString(" Monthly ")
	if err != nil {
		t.Fatalf("ParseQuotaPeriodFromString() unexpected error = %v", err)
	}
	if got != QuotaPeriodMonthly {
		t.Fatalf("ParseQuotaPeriodFromString() = %s, want monthly", got)
	}

	if _, err := ParseQuotaPeriodFromString("weekly"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseQuotaPeriodFromString() error = %v, want ErrValidation", err)
	}
}

func TestQuotaRecordConsume(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC)
	record := QuotaRecord{
		UserID:          "u1",
		EmailsSentToday: 1,
		MonthlyLimit:    2,
		LastResetDate:   QuotaPeriodMonthly.Start(now),
	}

	record, err := record.Consume(QuotaPeriodMonthly, now)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if record.EmailsSentToday != 2 {
		t.Fatalf("EmailsSentToday = %d, want 2", record.EmailsSentToday)
	}

	_, err = record.Consume(QuotaPeriodMonthly, now)
	var exceeded *QuotaExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("Consume() error = %v, want QuotaExceededError", err)
	}
	if exceeded.Limit != 2 || exceeded.Current != 2 {
		t.Fatalf("QuotaExceededError = %+v, want limit 2 current 2", exceeded)
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatal("QuotaExceededError should match ErrQuotaExceeded")
	}
}

func TestQuotaRecordRolloverAcrossPeriods(t *testing.T) {
	t.Parallel()

	february := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	march := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	record := QuotaRecord{
		UserID:          "u1",
		EmailsSentToday: 500,
		MonthlyLimit:    500,
		LastResetDate:   QuotaPeriodMonthly.Start(february),
	}

	status := record.Status(QuotaPeriodMonthly, march)
	if status.EmailsSentToday != 0 || !status.Allowed || status.Remaining != 500 {
		t.Fatalf("Status() = %+v, want fresh period", status)
	}
	if want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC); !status.ResetDate.Equal(want) {
		t.Fatalf("ResetDate = %v, want %v", status.ResetDate, want)
	}
	if record.EmailsSentToday != 500 {
		t.Fatal("Status() must not mutate the record")
	}

	consumed, err := record.Consume(QuotaPeriodMonthly, march)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if consumed.EmailsSentToday != 1 || !consumed.LastResetDate.Equal(QuotaPeriodMonthly.Start(march)) {
		t.Fatalf("Consume() = %+v, want count 1 in March", consumed)
	}
}

func TestQuotaRecordRelease(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC)
	record := QuotaRecord{EmailsSentToday: 3, MonthlyLimit: 10, LastResetDate: QuotaPeriodDaily.Start(now)}

	released := record.Release(QuotaPeriodDaily, now, now.Add(-time.Minute))
	if released.EmailsSentToday != 2 {
		t.Fatalf("EmailsSentToday = %d, want 2", released.EmailsSentToday)
	}

	nextDay := now.Add(24 * time.Hour)
	released = record.Release(QuotaPeriodDaily, nextDay, now)
	if released.EmailsSentToday != 0 {
		t.Fatalf("release across reset: EmailsSentToday = %d, want 0", released.EmailsSentToday)
	}

	empty := QuotaRecord{MonthlyLimit: 10, LastResetDate: QuotaPeriodDaily.Start(now)}
	if got := empty.Release(QuotaPeriodDaily, now, now).EmailsSentToday; got != 0 {
		t.Fatalf("EmailsSentToday = %d, want 0", got)
	}
}
