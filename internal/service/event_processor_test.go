package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/bandmail/warmup-engine/internal/observability"
	"github.com/bandmail/warmup-engine/internal/queue"
)

func newTestEventProcessor(t *testing.T, records *memSendRecordRepo, events *fakeEmailEventRepo, publisher queue.Publisher) *EventProcessor {
	t.Helper()

	if events == nil {
		events = &fakeEmailEventRepo{}
	}
	processor, err := NewEventProcessor(records, events, publisher, nil)
	if err != nil {
		t.Fatalf("NewEventProcessor() error = %v", err)
	}
	return processor
}

func sentRecord(id string, messageID string) domain.SendRecord {
	sentAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.SendRecord{
		ID:                id,
		CampaignID:        "camp-1",
		ContactID:         7,
		UserID:            "u-1",
		Recipient:         "fan@example.com",
		ProviderMessageID: ptr(messageID),
		Status:            domain.SendStatusSent,
		SentAt:            &sentAt,
	}
}

func TestEventProcessorAppliesEachEventType(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		event      domain.NormalizedEvent
		wantStatus domain.SendStatus
		check      func(t *testing.T, r domain.SendRecord)
	}{
		{
			name:       "delivered",
			event:      domain.NormalizedEvent{Type: domain.EventDelivered},
			wantStatus: domain.SendStatusDelivered,
			check: func(t *testing.T, r domain.SendRecord) {
				if r.DeliveredAt == nil || !r.DeliveredAt.Equal(at) {
					t.Fatalf("DeliveredAt = %v, want %s", r.DeliveredAt, at)
				}
			},
		},
		{
			name:       "delayed",
			event:      domain.NormalizedEvent{Type: domain.EventDelayed},
			wantStatus: domain.SendStatusDelayed,
			check: func(t *testing.T, r domain.SendRecord) {
				if r.DelayedAt == nil {
					t.Fatal("DelayedAt should be set")
				}
			},
		},
		{
			name: "bounced",
			event: domain.NormalizedEvent{Type: domain.EventBounced, Payload: map[string]string{
				domain.PayloadBounceType:    "permanent",
				domain.PayloadBounceMessage: "mailbox does not exist",
			}},
			wantStatus: domain.SendStatusBounced,
			check: func(t *testing.T, r domain.SendRecord) {
				if r.BouncedAt == nil {
					t.Fatal("BouncedAt should be set")
				}
				if r.BounceType == nil || *r.BounceType != "permanent" {
					t.Fatalf("BounceType = %v, want permanent", r.BounceType)
				}
				if r.BounceReason == nil || *r.BounceReason != "mailbox does not exist" {
					t.Fatalf("BounceReason = %v", r.BounceReason)
				}
			},
		},
		{
			name:       "opened",
			event:      domain.NormalizedEvent{Type: domain.EventOpened},
			wantStatus: domain.SendStatusOpened,
			check: func(t *testing.T, r domain.SendRecord) {
				if r.OpenCount != 1 {
					t.Fatalf("OpenCount = %d, want 1", r.OpenCount)
				}
			},
		},
		{
			name:       "clicked",
			event:      domain.NormalizedEvent{Type: domain.EventClicked, Payload: map[string]string{domain.PayloadClickURL: "https://band.example/ep"}},
			wantStatus: domain.SendStatusClicked,
			check: func(t *testing.T, r domain.SendRecord) {
				if r.ClickCount != 1 {
					t.Fatalf("ClickCount = %d, want 1", r.ClickCount)
				}
				if r.LastClickURL == nil || *r.LastClickURL != "https://band.example/ep" {
					t.Fatalf("LastClickURL = %v", r.LastClickURL)
				}
			},
		},
		{
			name:       "spam complaint",
			event:      domain.NormalizedEvent{Type: domain.EventSpamComplaint},
			wantStatus: domain.SendStatusComplained,
			check: func(t *testing.T, r domain.SendRecord) {
				if r.ComplainedAt == nil {
					t.Fatal("ComplainedAt should be set")
				}
			},
		},
		{
			name:       "unsubscribed",
			event:      domain.NormalizedEvent{Type: domain.EventUnsubscribed},
			wantStatus: domain.SendStatusUnsubscribed,
			check: func(t *testing.T, r domain.SendRecord) {
				if r.UnsubscribedAt == nil {
					t.Fatal("UnsubscribedAt should be set")
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			records := newMemSendRecordRepo(sentRecord("sr-1", "re_1"))
			processor := newTestEventProcessor(t, records, nil, nil)

			event := tc.event
			event.Provider = domain.ProviderResend
			event.Handled = true
			event.EmailID = "re_1"
			event.OccurredAt = at

			outcome, err := processor.Process(context.Background(), event)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if outcome != OutcomeApplied {
				t.Fatalf("outcome = %s, want applied", outcome)
			}

			got := records.get("sr-1")
			if got.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", got.Status, tc.wantStatus)
			}
			tc.check(t, got)
		})
	}
}

func TestEventProcessorRepeatedOpenKeepsFirstTimestamp(t *testing.T) {
	t.Parallel()

	records := newMemSendRecordRepo(sentRecord("sr-1", "re_1"))

	audits := 0
	events := &fakeEmailEventRepo{
		createFn: func(ctx context.Context, e *domain.EmailEvent) error {
			audits++
			if e.SendRecordID != "sr-1" {
				t.Fatalf("audit send record id = %s, want sr-1", e.SendRecordID)
			}
			return nil
		},
	}
	processor := newTestEventProcessor(t, records, events, nil)

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(3 * time.Hour)

	for _, at := range []time.Time{first, second} {
		_, err := processor.Process(context.Background(), domain.NormalizedEvent{
			Provider:   domain.ProviderResend,
			Type:       domain.EventOpened,
			Handled:    true,
			EmailID:    "re_1",
			OccurredAt: at,
		})
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	got := records.get("sr-1")
	if got.OpenCount != 2 {
		t.Fatalf("OpenCount = %d, want 2", got.OpenCount)
	}
	if got.OpenedAt == nil || !got.OpenedAt.Equal(first) {
		t.Fatalf("OpenedAt = %v, want %s", got.OpenedAt, first)
	}
	if audits != 2 {
		t.Fatalf("audit rows = %d, want 2", audits)
	}
}

func TestEventProcessorLateDeliveredDoesNotDowngrade(t *testing.T) {
	t.Parallel()

	record := sentRecord("sr-1", "re_1")
	record.Status = domain.SendStatusOpened
	records := newMemSendRecordRepo(record)
	processor := newTestEventProcessor(t, records, nil, nil)

	_, err := processor.Process(context.Background(), domain.NormalizedEvent{
		Provider: domain.ProviderResend,
		Type:     domain.EventDelivered,
		Handled:  true,
		EmailID:  "re_1",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got := records.get("sr-1")
	if got.Status != domain.SendStatusOpened {
		t.Fatalf("status = %s, want opened", got.Status)
	}
	if got.DeliveredAt == nil {
		t.Fatal("DeliveredAt should still be recorded")
	}
}

func TestEventProcessorUnmatchedAndUnhandled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event domain.NormalizedEvent
		want  ProcessOutcome
	}{
		{
			name:  "unknown provider type",
			event: domain.NormalizedEvent{Type: "contact.created", Handled: false, EmailID: "re_1"},
			want:  OutcomeUnhandled,
		},
		{
			name:  "missing email id",
			event: domain.NormalizedEvent{Type: domain.EventOpened, Handled: true},
			want:  OutcomeUnmatched,
		},
		{
			name:  "no send record",
			event: domain.NormalizedEvent{Type: domain.EventOpened, Handled: true, EmailID: "re_missing"},
			want:  OutcomeUnmatched,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			events := &fakeEmailEventRepo{
				createFn: func(ctx context.Context, e *domain.EmailEvent) error {
					t.Fatal("no audit row expected")
					return nil
				},
			}
			processor := newTestEventProcessor(t, newMemSendRecordRepo(sentRecord("sr-1", "re_1")), events, nil)

			event := tc.event
			event.Provider = domain.ProviderResend
			outcome, err := processor.Process(context.Background(), event)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if outcome != tc.want {
				t.Fatalf("outcome = %s, want %s", outcome, tc.want)
			}
		})
	}
}

func TestEventProcessorAuditFailureLeavesRecordUntouched(t *testing.T) {
	t.Parallel()

	records := newMemSendRecordRepo(sentRecord("sr-1", "re_1"))
	events := &fakeEmailEventRepo{
		createFn: func(ctx context.Context, e *domain.EmailEvent) error {
			return errors.New("insert failed")
		},
	}
	processor := newTestEventProcessor(t, records, events, nil)

	_, err := processor.Process(context.Background(), domain.NormalizedEvent{
		Provider: domain.ProviderResend,
		Type:     domain.EventOpened,
		Handled:  true,
		EmailID:  "re_1",
	})
	if err == nil {
		t.Fatal("Process() expected error")
	}
	if got := records.get("sr-1"); got.OpenCount != 0 {
		t.Fatalf("OpenCount = %d, want 0", got.OpenCount)
	}
}

func TestEventProcessorPublishesAndIgnoresPublishFailure(t *testing.T) {
	t.Parallel()

	var published []queue.EmailEventMessage
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.EmailEventMessage) error {
			published = append(published, msg)
			return errors.New("broker unavailable")
		},
	}
	processor := newTestEventProcessor(t, newMemSendRecordRepo(sentRecord("sr-1", "re_1")), nil, publisher)

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	outcome, err := processor.Process(ctx, domain.NormalizedEvent{
		Provider: domain.ProviderMailgun,
		Type:     domain.EventClicked,
		Handled:  true,
		EmailID:  "re_1",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}

	if len(published) != 1 {
		t.Fatalf("published = %d, want 1", len(published))
	}
	msg := published[0]
	if err := msg.Validate(); err != nil {
		t.Fatalf("published message invalid: %v", err)
	}
	if msg.CampaignID != "camp-1" || msg.UserID != "u-1" {
		t.Fatalf("message = %+v, want campaign camp-1 user u-1", msg)
	}
	if msg.CorrelationID != "corr-1" {
		t.Fatalf("correlation id = %q, want corr-1", msg.CorrelationID)
	}
}
