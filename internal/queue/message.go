package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
)

// EmailEventMessage is the broker payload for one applied email event.
type EmailEventMessage struct {
	EventID           string            `json:"eventId"`
	SendRecordID      string            `json:"sendRecordId"`
	CampaignID        string            `json:"campaignId"`
	UserID            string            `json:"userId"`
	Provider          domain.Provider   `json:"provider"`
	EventType         domain.EventType  `json:"eventType"`
	ProviderMessageID string            `json:"providerMessageId"`
	Recipient         string            `json:"recipient,omitempty"`
	OccurredAt        time.Time         `json:"occurredAt"`
	Payload           map[string]string `json:"payload,omitempty"`
	CorrelationID     string            `json:"correlationId,omitempty"`
}

func (m EmailEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if strings.TrimSpace(m.SendRecordID) == "" {
		return fmt.Errorf("sendRecordId is required")
	}
	if !m.EventType.IsValid() {
		return fmt.Errorf("invalid eventType %q", m.EventType)
	}
	return nil
}
