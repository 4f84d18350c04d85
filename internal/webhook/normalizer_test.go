package webhook

import (
	"errors"
	"testing"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
)

func TestNormalizeResend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    domain.EventType
		handled bool
		payload map[string]string
	}{
		{
			name:    "opened",
			body:    `{"type":"email.opened","created_at":"2026-03-01T10:00:00.000Z","data":{"email_id":"re_1","to":["fan@example.com"],"open":{"ipAddress":"1.2.3.4","userAgent":"Mail"}}}`,
			want:    domain.EventOpened,
			handled: true,
			payload: map[string]string{domain.PayloadIP: "1.2.3.4", domain.PayloadUserAgent: "Mail"},
		},
		{
			name:    "bounced",
			body:    `{"type":"email.bounced","created_at":"2026-03-01T10:00:00Z","data":{"email_id":"re_2","to":["x@example.com"],"bounce":{"type":"Permanent","message":"mailbox does not exist"}}}`,
			want:    domain.EventBounced,
			handled: true,
			payload: map[string]string{domain.PayloadBounceType: "permanent", domain.PayloadBounceMessage: "mailbox does not exist"},
		},
		{
			name:    "clicked with tag map",
			body:    `{"type":"email.clicked","created_at":"2026-03-01T10:00:00Z","data":{"email_id":"re_3","tags":{"release":"ep1","campaign":"c1"},"click":{"link":"https://band.example/ep"}}}`,
			want:    domain.EventClicked,
			handled: true,
			payload: map[string]string{domain.PayloadClickURL: "https://band.example/ep", domain.PayloadTags: "campaign:c1,release:ep1"},
		},
		{
			name:    "complained",
			body:    `{"type":"email.complained","data":{"email_id":"re_4","tags":[{"name":"list","value":"fans"}]}}`,
			want:    domain.EventSpamComplaint,
			handled: true,
			payload: map[string]string{domain.PayloadTags: "list:fans"},
		},
		{
			name:    "delivery delayed",
			body:    `{"type":"email.delivery_delayed","data":{"email_id":"re_5"}}`,
			want:    domain.EventDelayed,
			handled: true,
		},
		{
			name:    "unknown type passes through",
			body:    `{"type":"contact.created","data":{"email_id":""}}`,
			want:    domain.EventType("contact.created"),
			handled: false,
		},
	}

	normalizer := NewNormalizer()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event, err := normalizer.Normalize(domain.ProviderResend, []byte(tt.body))
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if event.Type != tt.want || event.Handled != tt.handled {
				t.Fatalf("Normalize() type=%s handled=%v, want %s/%v", event.Type, event.Handled, tt.want, tt.handled)
			}
			for key, want := range tt.payload {
				if got := event.Payload[key]; got != want {
					t.Fatalf("Payload[%s] = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestNormalizeResendFields(t *testing.T) {
	t.Parallel()

	body := `{"type":"email.delivered","created_at":"2026-03-01T10:00:00Z","data":{"email_id":" re_9 ","to":["fan@example.com"]}}`
	event, err := NewNormalizer().Normalize(domain.ProviderResend, []byte(body))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.EmailID != "re_9" || event.Recipient != "fan@example.com" {
		t.Fatalf("Normalize() emailId=%q recipient=%q", event.EmailID, event.Recipient)
	}
	if want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC); !event.OccurredAt.Equal(want) {
		t.Fatalf("OccurredAt = %v, want %v", event.OccurredAt, want)
	}
	if event.ProviderEventType != "email.delivered" || event.Provider != domain.ProviderResend {
		t.Fatalf("provider fields = %s/%s", event.Provider, event.ProviderEventType)
	}
}

func TestNormalizeMailgun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    domain.EventType
		handled bool
		payload map[string]string
	}{
		{
			name:    "opened",
			body:    `{"event-data":{"event":"opened","timestamp":1700000000.5,"recipient":"fan@example.com","message":{"headers":{"message-id":"<20260301.abc@mg.example>"}},"client-info":{"user-agent":"Mail"}}}`,
			want:    domain.EventOpened,
			handled: true,
			payload: map[string]string{domain.PayloadUserAgent: "Mail"},
		},
		{
			name:    "permanent failure is a bounce",
			body:    `{"event-data":{"event":"failed","severity":"permanent","delivery-status":{"message":"550 no such user"},"message":{"headers":{"message-id":"m1"}}}}`,
			want:    domain.EventBounced,
			handled: true,
			payload: map[string]string{domain.PayloadBounceType: "permanent", domain.PayloadBounceMessage: "550 no such user"},
		},
		{
			name:    "temporary failure is a delay",
			body:    `{"event-data":{"event":"failed","severity":"temporary","reason":"greylisted","message":{"headers":{"message-id":"m2"}}}}`,
			want:    domain.EventDelayed,
			handled: true,
			payload: map[string]string{domain.PayloadBounceMessage: "greylisted"},
		},
		{
			name:    "clicked with tags",
			body:    `{"event-data":{"event":"clicked","url":"https://band.example","tags":["tour","fans"],"message":{"headers":{"message-id":"m3"}}}}`,
			want:    domain.EventClicked,
			handled: true,
			payload: map[string]string{domain.PayloadClickURL: "https://band.example", domain.PayloadTags: "tour,fans"},
		},
		{
			name:    "complained",
			body:    `{"event-data":{"event":"complained","message":{"headers":{"message-id":"m4"}}}}`,
			want:    domain.EventSpamComplaint,
			handled: true,
		},
		{
			name:    "unsubscribed",
			body:    `{"event-data":{"event":"unsubscribed","message":{"headers":{"message-id":"m5"}}}}`,
			want:    domain.EventUnsubscribed,
			handled: true,
		},
		{
			name:    "accepted maps to sent",
			body:    `{"event-data":{"event":"accepted","message":{"headers":{"message-id":"m6"}}}}`,
			want:    domain.EventSent,
			handled: true,
		},
		{
			name:    "stored is unhandled",
			body:    `{"event-data":{"event":"stored"}}`,
			want:    domain.EventType("stored"),
			handled: false,
		},
	}

	normalizer := NewNormalizer()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event, err := normalizer.Normalize(domain.ProviderMailgun, []byte(tt.body))
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if event.Type != tt.want || event.Handled != tt.handled {
				t.Fatalf("Normalize() type=%s handled=%v, want %s/%v", event.Type, event.Handled, tt.want, tt.handled)
			}
			for key, want := range tt.payload {
				if got := event.Payload[key]; got != want {
					t.Fatalf("Payload[%s] = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestNormalizeMailgunMessageID(t *testing.T) {
	t.Parallel()

	body := `{"event-data":{"event":"delivered","timestamp":1700000000,"message":{"headers":{"message-id":"<abc@mg.example>"}}}}`
	event, err := NewNormalizer().Normalize(domain.ProviderMailgun, []byte(body))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.EmailID != "abc@mg.example" {
		t.Fatalf("EmailID = %q, want abc@mg.example", event.EmailID)
	}
	if !event.OccurredAt.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("OccurredAt = %v", event.OccurredAt)
	}
}

func TestNormalizeRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	normalizer := NewNormalizer()
	cases := []struct {
		provider domain.Provider
		body     string
	}{
		{provider: domain.ProviderResend, body: ``},
		{provider: domain.ProviderResend, body: `not json`},
		{provider: domain.ProviderResend, body: `{"data":{}}`},
		{provider: domain.ProviderMailgun, body: `{"event-data":{}}`},
		{provider: domain.Provider("sendgrid"), body: `{}`},
	}

	for _, tc := range cases {
		if _, err := normalizer.Normalize(tc.provider, []byte(tc.body)); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Normalize(%s, %q) error = %v, want ErrValidation", tc.provider, tc.body, err)
		}
	}
}

func TestParseMailgunSignature(t *testing.T) {
	t.Parallel()

	sig, err := ParseMailgunSignature([]byte(`{"signature":{"timestamp":"1700000000","token":"tok","signature":"abc"},"event-data":{}}`))
	if err != nil {
		t.Fatalf("ParseMailgunSignature() error = %v", err)
	}
	if sig.Timestamp != "1700000000" || sig.Token != "tok" || sig.Signature != "abc" {
		t.Fatalf("ParseMailgunSignature() = %+v", sig)
	}

	if _, err := ParseMailgunSignature([]byte(`{`)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ParseMailgunSignature() error = %v, want ErrValidation", err)
	}
}
