package webhook

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
)

// ResendSignatureHeader carries "t=<unix>,v1=<hex>" for Resend deliveries.
const ResendSignatureHeader = "Resend-Signature"

var resendEventTypes = map[string]domain.EventType{
	"email.sent":             domain.EventSent,
	"email.delivered":        domain.EventDelivered,
	"email.delivery_delayed": domain.EventDelayed,
	"email.bounced":          domain.EventBounced,
	"email.opened":           domain.EventOpened,
	"email.clicked":          domain.EventClicked,
	"email.complained":       domain.EventSpamComplaint,
}

type resendPayload struct {
	Type      string     `json:"type"`
	CreatedAt string     `json:"created_at"`
	Data      resendData `json:"data"`
}

type resendData struct {
	EmailID   string          `json:"email_id"`
	To        []string        `json:"to"`
	CreatedAt string          `json:"created_at"`
	Tags      json.RawMessage `json:"tags"`
	Bounce    *struct {
		Type    string `json:"type"`
		SubType string `json:"subType"`
		Message string `json:"message"`
	} `json:"bounce"`
	Click *struct {
		Link      string `json:"link"`
		IPAddress string `json:"ipAddress"`
		UserAgent string `json:"userAgent"`
	} `json:"click"`
	Open *struct {
		IPAddress string `json:"ipAddress"`
		UserAgent string `json:"userAgent"`
	} `json:"open"`
}

func normalizeResend(raw []byte) (domain.NormalizedEvent, error) {
	var payload resendPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.NormalizedEvent{}, fmt.Errorf("%w: invalid resend payload: %v", domain.ErrValidation, err)
	}
	if strings.TrimSpace(payload.Type) == "" {
		return domain.NormalizedEvent{}, fmt.Errorf("%w: resend payload has no type", domain.ErrValidation)
	}

	event := domain.NormalizedEvent{
		Provider:          domain.ProviderResend,
		ProviderEventType: payload.Type,
		EmailID:           strings.TrimSpace(payload.Data.EmailID),
		OccurredAt:        parseResendTime(payload.CreatedAt, payload.Data.CreatedAt),
		Payload:           map[string]string{},
	}
	if len(payload.Data.To) > 0 {
		event.Recipient = strings.TrimSpace(payload.Data.To[0])
	}

	putIfSet(event.Payload, domain.PayloadTags, resendTags(payload.Data.Tags))
	if b := payload.Data.Bounce; b != nil {
		putIfSet(event.Payload, domain.PayloadBounceType, strings.ToLower(b.Type))
		putIfSet(event.Payload, domain.PayloadBounceMessage, b.Message)
	}
	if c := payload.Data.Click; c != nil {
		putIfSet(event.Payload, domain.PayloadClickURL, c.Link)
		putIfSet(event.Payload, domain.PayloadIP, c.IPAddress)
		putIfSet(event.Payload, domain.PayloadUserAgent, c.UserAgent)
	}
	if o := payload.Data.Open; o != nil {
		putIfSet(event.Payload, domain.PayloadIP, o.IPAddress)
		putIfSet(event.Payload, domain.PayloadUserAgent, o.UserAgent)
	}

	eventType, ok := resendEventTypes[payload.Type]
	if !ok {
		return unhandled(event), nil
	}
	event.Type = eventType
	event.Handled = true
	return event, nil
}

func parseResendTime(values ...string) time.Time {
	for _, value := range values {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// resendTags flattens either {"k":"v"} or [{"name":"k","value":"v"}] into "k:v,k2:v2".
func resendTags(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		keys := make([]string, 0, len(asMap))
		for k := range asMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		tags := make([]string, 0, len(keys))
		for _, k := range keys {
			tags = append(tags, k+":"+asMap[k])
		}
		return strings.Join(tags, ",")
	}

	var asList []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &asList); err == nil {
		tags := make([]string, 0, len(asList))
		for _, tag := range asList {
			tags = append(tags, tag.Name+":"+tag.Value)
		}
		return strings.Join(tags, ",")
	}

	return ""
}
