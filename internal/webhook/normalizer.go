package webhook

import (
	"fmt"

	"github.com/bandmail/warmup-engine/internal/domain"
)

// Normalizer turns provider webhook bodies into domain.NormalizedEvent.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize parses rawPayload for the given provider. Unknown provider event
// types are returned with Handled=false instead of an error.
func (n *Normalizer) Normalize(provider domain.Provider, rawPayload []byte) (domain.NormalizedEvent, error) {
	if len(rawPayload) == 0 {
		return domain.NormalizedEvent{}, fmt.Errorf("%w: empty webhook payload", domain.ErrValidation)
	}

	switch provider {
	case domain.ProviderResend:
		return normalizeResend(rawPayload)
	case domain.ProviderMailgun:
		return normalizeMailgun(rawPayload)
	default:
		return domain.NormalizedEvent{}, fmt.Errorf("%w: unsupported provider %q", domain.ErrValidation, provider)
	}
}

func unhandled(event domain.NormalizedEvent) domain.NormalizedEvent {
	event.Type = domain.EventType(event.ProviderEventType)
	event.Handled = false
	return event
}

func putIfSet(payload map[string]string, key string, value string) {
	if value != "" {
		payload[key] = value
	}
}
