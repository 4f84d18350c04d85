package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/bandmail/warmup-engine/internal/observability"
	"github.com/bandmail/warmup-engine/internal/queue"
	"github.com/bandmail/warmup-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 2 * time.Second

// ProcessOutcome says what happened to a normalized event.
type ProcessOutcome string

const (
	OutcomeApplied   ProcessOutcome = "applied"
	OutcomeUnmatched ProcessOutcome = "unmatched"
	OutcomeUnhandled ProcessOutcome = "unhandled"
)

// EventProcessor applies normalized provider events to send records.
type EventProcessor struct {
	sendRecords    repository.SendRecordRepository
	events         repository.EmailEventRepository
	publisher      queue.Publisher
	logger         *zap.Logger
	publishTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

func NewEventProcessor(
	sendRecords repository.SendRecordRepository,
	events repository.EmailEventRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*EventProcessor, error) {
	if sendRecords == nil {
		return nil, fmt.Errorf("send record repository is required")
	}
	if events == nil {
		return nil, fmt.Errorf("email event repository is required")
	}
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventProcessor{
		sendRecords:    sendRecords,
		events:         events,
		publisher:      publisher,
		logger:         logger,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}, nil
}

// Process applies event to the send record it refers to. Events that cannot be
// correlated are logged and reported as OutcomeUnmatched with a nil error, so
// the provider does not retry them forever.
func (p *EventProcessor) Process(ctx context.Context, event domain.NormalizedEvent) (ProcessOutcome, error) {
	logger := observability.WithContextLogger(p.logger, ctx).With(
		zap.String("provider", event.Provider.String()),
		zap.String("providerEventType", event.ProviderEventType),
		zap.String("emailId", event.EmailID),
	)

	if !event.Handled {
		logger.Info("ignoring unmapped webhook event type")
		return OutcomeUnhandled, nil
	}
	if strings.TrimSpace(event.EmailID) == "" {
		logger.Warn("webhook event has no email id")
		return OutcomeUnmatched, nil
	}

	update, ok := p.updateFor(event)
	if !ok {
		logger.Warn("no send record update for event type", zap.String("type", event.Type.String()))
		return OutcomeUnhandled, nil
	}

	record, err := p.sendRecords.FindByProviderMessageID(ctx, event.EmailID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("no send record for webhook event")
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find send record: %w", err)
	}

	// The audit row goes first: if the state update then fails, the provider's
	// retry adds a duplicate audit row rather than a second counter increment.
	audit := &domain.EmailEvent{
		ID:                p.newID(),
		SendRecordID:      record.ID,
		Provider:          event.Provider,
		ProviderEventType: event.ProviderEventType,
		EventType:         event.Type,
		OccurredAt:        p.occurredAt(event),
		Payload:           event.Payload,
		CreatedAt:         p.now().UTC(),
	}
	if err := p.events.Create(ctx, audit); err != nil {
		return "", fmt.Errorf("failed to record email event: %w", err)
	}

	if err := p.sendRecords.UpdateEventState(ctx, record.ID, update); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("send record disappeared before update", zap.String("sendRecordId", record.ID))
			return OutcomeUnmatched, nil
		}
		return "", fmt.Errorf("failed to update send record %s: %w", record.ID, err)
	}

	p.publish(ctx, logger, record, audit, event)

	logger.Debug("webhook event applied",
		zap.String("sendRecordId", record.ID),
		zap.String("type", event.Type.String()),
	)
	return OutcomeApplied, nil
}

// updateFor maps an event type to its send record change. The switch is over
// the closed EventType set; an unmapped value reports false.
func (p *EventProcessor) updateFor(event domain.NormalizedEvent) (domain.SendRecordUpdate, bool) {
	at := p.occurredAt(event)
	status := func(s domain.SendStatus) *domain.SendStatus { return &s }

	switch event.Type {
	case domain.EventSent:
		return domain.SendRecordUpdate{Status: status(domain.SendStatusSent), SentAt: &at}, true
	case domain.EventDelivered:
		return domain.SendRecordUpdate{Status: status(domain.SendStatusDelivered), DeliveredAt: &at}, true
	case domain.EventDelayed:
		return domain.SendRecordUpdate{Status: status(domain.SendStatusDelayed), DelayedAt: &at}, true
	case domain.EventBounced:
		update := domain.SendRecordUpdate{Status: status(domain.SendStatusBounced), BouncedAt: &at}
		update.BounceType = payloadValue(event.Payload, domain.PayloadBounceType)
		update.BounceReason = payloadValue(event.Payload, domain.PayloadBounceMessage)
		return update, true
	case domain.EventOpened:
		return domain.SendRecordUpdate{Status: status(domain.SendStatusOpened), OpenedAt: &at, IncrementOpen: true}, true
	case domain.EventClicked:
		return domain.SendRecordUpdate{
			Status:         status(domain.SendStatusClicked),
			ClickedAt:      &at,
			IncrementClick: true,
			LastClickURL:   payloadValue(event.Payload, domain.PayloadClickURL),
		}, true
	case domain.EventSpamComplaint:
		return domain.SendRecordUpdate{Status: status(domain.SendStatusComplained), ComplainedAt: &at}, true
	case domain.EventUnsubscribed:
		return domain.SendRecordUpdate{Status: status(domain.SendStatusUnsubscribed), UnsubscribedAt: &at}, true
	}
	return domain.SendRecordUpdate{}, false
}

func (p *EventProcessor) occurredAt(event domain.NormalizedEvent) time.Time {
	if event.OccurredAt.IsZero() {
		return p.now().UTC()
	}
	return event.OccurredAt.UTC()
}

// publish is best effort: analytics fan-out never fails the webhook.
func (p *EventProcessor) publish(ctx context.Context, logger *zap.Logger, record *domain.SendRecord, audit *domain.EmailEvent, event domain.NormalizedEvent) {
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.publishTimeout)
	defer cancel()

	msg := queue.EmailEventMessage{
		EventID:           audit.ID,
		SendRecordID:      record.ID,
		CampaignID:        record.CampaignID,
		UserID:            record.UserID,
		Provider:          event.Provider,
		EventType:         event.Type,
		ProviderMessageID: event.EmailID,
		Recipient:         record.Recipient,
		OccurredAt:        audit.OccurredAt,
		Payload:           event.Payload,
	}
	if correlationID, ok := observability.CorrelationIDFromContext(ctx); ok {
		msg.CorrelationID = correlationID
	}

	if err := p.publisher.Publish(publishCtx, msg); err != nil {
		logger.Warn("failed to publish email event", zap.String("eventId", audit.ID), zap.Error(err))
	}
}

func payloadValue(payload map[string]string, key string) *string {
	value := strings.TrimSpace(payload[key])
	if value == "" {
		return nil
	}
	return &value
}
