package webhook

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
)

// MailgunSignature is the signature block Mailgun embeds in every webhook body.
type MailgunSignature struct {
	Timestamp string `json:"timestamp"`
	Token     string `json:"token"`
	Signature string `json:"signature"`
}

type mailgunPayload struct {
	Signature MailgunSignature `json:"signature"`
	EventData mailgunEventData `json:"event-data"`
}

type mailgunEventData struct {
	Event     string   `json:"event"`
	ID        string   `json:"id"`
	Timestamp float64  `json:"timestamp"`
	Severity  string   `json:"severity"`
	Reason    string   `json:"reason"`
	Recipient string   `json:"recipient"`
	URL       string   `json:"url"`
	IP        string   `json:"ip"`
	Tags      []string `json:"tags"`
	Message   struct {
		Headers struct {
			MessageID string `json:"message-id"`
		} `json:"headers"`
	} `json:"message"`
	DeliveryStatus struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	} `json:"delivery-status"`
	ClientInfo struct {
		UserAgent string `json:"user-agent"`
	} `json:"client-info"`
}

var mailgunEventTypes = map[string]domain.EventType{
	"accepted":     domain.EventSent,
	"delivered":    domain.EventDelivered,
	"opened":       domain.EventOpened,
	"clicked":      domain.EventClicked,
	"complained":   domain.EventSpamComplaint,
	"unsubscribed": domain.EventUnsubscribed,
}

// ParseMailgunSignature extracts the signature block from a Mailgun body.
func ParseMailgunSignature(raw []byte) (MailgunSignature, error) {
	var payload struct {
		Signature MailgunSignature `json:"signature"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return MailgunSignature{}, fmt.Errorf("%w: invalid mailgun payload: %v", domain.ErrValidation, err)
	}
	return payload.Signature, nil
}

func normalizeMailgun(raw []byte) (domain.NormalizedEvent, error) {
	var payload mailgunPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.NormalizedEvent{}, fmt.Errorf("%w: invalid mailgun payload: %v", domain.ErrValidation, err)
	}

	data := payload.EventData
	if strings.TrimSpace(data.Event) == "" {
		return domain.NormalizedEvent{}, fmt.Errorf("%w: mailgun payload has no event", domain.ErrValidation)
	}

	event := domain.NormalizedEvent{
		Provider:          domain.ProviderMailgun,
		ProviderEventType: data.Event,
		EmailID:           strings.Trim(strings.TrimSpace(data.Message.Headers.MessageID), "<>"),
		Recipient:         strings.TrimSpace(data.Recipient),
		OccurredAt:        mailgunTime(data.Timestamp),
		Payload:           map[string]string{},
	}

	putIfSet(event.Payload, domain.PayloadTags, strings.Join(data.Tags, ","))
	putIfSet(event.Payload, domain.PayloadClickURL, data.URL)
	putIfSet(event.Payload, domain.PayloadIP, data.IP)
	putIfSet(event.Payload, domain.PayloadUserAgent, data.ClientInfo.UserAgent)

	if data.Event == "failed" {
		putIfSet(event.Payload, domain.PayloadBounceType, strings.ToLower(data.Severity))
		message := data.DeliveryStatus.Message
		if message == "" {
			message = data.DeliveryStatus.Description
		}
		if message == "" {
			message = data.Reason
		}
		putIfSet(event.Payload, domain.PayloadBounceMessage, message)

		switch strings.ToLower(data.Severity) {
		case "permanent":
			event.Type = domain.EventBounced
		case "temporary":
			event.Type = domain.EventDelayed
		default:
			return unhandled(event), nil
		}
		event.Handled = true
		return event, nil
	}

	eventType, ok := mailgunEventTypes[data.Event]
	if !ok {
		return unhandled(event), nil
	}
	event.Type = eventType
	event.Handled = true
	return event, nil
}

func mailgunTime(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
