package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventType is the provider-independent email event vocabulary.
type EventType string

const (
	EventSent          EventType = "sent"
	EventDelivered     EventType = "delivered"
	EventDelayed       EventType = "delayed"
	EventBounced       EventType = "bounced"
	EventOpened        EventType = "opened"
	EventClicked       EventType = "clicked"
	EventSpamComplaint EventType = "spam_complaint"
	EventUnsubscribed  EventType = "unsubscribed"
)

func (t EventType) String() string { return string(t) }

func (t EventType) IsValid() bool {
	switch t {
	case EventSent, EventDelivered, EventDelayed, EventBounced,
		EventOpened, EventClicked, EventSpamComplaint, EventUnsubscribed:
		return true
	}
	return false
}

// Provider names an inbound webhook source.
type Provider string

const (
	ProviderResend  Provider = "resend"
	ProviderMailgun Provider = "mailgun"
)

func (p Provider) String() string { return string(p) }

func ParseProviderFromString(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderResend, ProviderMailgun:
		return p, nil
	}
	return "", fmt.Errorf("%w: unsupported provider %q", ErrValidation, s)
}

// Payload keys shared by every provider after normalization.
const (
	PayloadBounceType    = "bounce_type"
	PayloadBounceMessage = "bounce_message"
	PayloadClickURL      = "click_url"
	PayloadTags          = "tags"
	PayloadUserAgent     = "user_agent"
	PayloadIP            = "ip"
)

// NormalizedEvent is a webhook event translated into the internal vocabulary.
// Handled is false for provider types without a mapping; Type then carries the
// provider type verbatim.
type NormalizedEvent struct {
	Provider          Provider
	ProviderEventType string
	Type              EventType
	Handled           bool
	EmailID           string
	Recipient         string
	OccurredAt        time.Time
	Payload           map[string]string
}

// EmailEvent is the audit row written for every event applied to a send record.
type EmailEvent struct {
	ID                string
	SendRecordID      string
	Provider          Provider
	ProviderEventType string
	EventType         EventType
	OccurredAt        time.Time
	Payload           map[string]string
	CreatedAt         time.Time
}
