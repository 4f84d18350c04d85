package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/bandmail/warmup-engine/internal/domain"
)

// Publisher fans normalized email events out to analytics consumers.
type Publisher interface {
	Publish(ctx context.Context, msg EmailEventMessage) error
	Close() error
}

const (
	// EventsExchange is the topic exchange carrying every applied email event.
	EventsExchange = "email.events"
	// AnalyticsQueue receives all events for the engagement analytics pipeline.
	AnalyticsQueue = "analytics.email_events"

	deadLetterExchange = "email.events.dlx"
	allEventsBinding   = "email.#"
)

// RoutingKey returns the topic key for an event type, e.g. email.opened.
func RoutingKey(eventType domain.EventType) string {
	return fmt.Sprintf("email.%s", strings.ToLower(eventType.String()))
}

// DLQName returns the dead-letter queue name for a queue, e.g. dlq.analytics.email_events.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// NopPublisher drops every message. Used when the broker is unavailable at startup.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, EmailEventMessage) error { return nil }

func (NopPublisher) Close() error { return nil }
