package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/bandmail/warmup-engine/internal/observability"
	"github.com/bandmail/warmup-engine/internal/webhook"
	"go.uber.org/zap"
)

// WebhookSecrets holds the per-provider signing material.
type WebhookSecrets struct {
	ResendSecret      string
	MailgunSigningKey string
}

// WebhookDelivery is one inbound provider request. RawBody must be the bytes
// exactly as received.
type WebhookDelivery struct {
	Provider        domain.Provider
	RawBody         []byte
	SignatureHeader string
}

type eventProcessor interface {
	Process(ctx context.Context, event domain.NormalizedEvent) (ProcessOutcome, error)
}

// WebhookService verifies, normalizes and applies provider webhooks.
type WebhookService struct {
	verifier      *webhook.SignatureVerifier
	normalizer    *webhook.Normalizer
	processor     eventProcessor
	secrets       WebhookSecrets
	allowUnsigned bool
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// NewWebhookService builds the service. allowUnsigned lets deliveries through
// when a provider's secret is not configured; config validation forbids it in
// production.
func NewWebhookService(
	verifier *webhook.SignatureVerifier,
	normalizer *webhook.Normalizer,
	processor eventProcessor,
	secrets WebhookSecrets,
	allowUnsigned bool,
	logger *zap.Logger,
) (*WebhookService, error) {
	if verifier == nil || normalizer == nil {
		return nil, fmt.Errorf("webhook verifier and normalizer are required")
	}
	if processor == nil {
		return nil, fmt.Errorf("event processor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if allowUnsigned {
		if secrets.ResendSecret == "" {
			logger.Warn("RESEND_WEBHOOK_SECRET is not set: resend webhooks are accepted WITHOUT signature verification")
		}
		if secrets.MailgunSigningKey == "" {
			logger.Warn("MAILGUN_WEBHOOK_SIGNING_KEY is not set: mailgun webhooks are accepted WITHOUT signature verification")
		}
	}

	return &WebhookService{
		verifier:      verifier,
		normalizer:    normalizer,
		processor:     processor,
		secrets:       secrets,
		allowUnsigned: allowUnsigned,
		logger:        logger,
	}, nil
}

func (s *WebhookService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Handle runs one delivery. It returns domain.ErrSignature for unauthenticated
// requests and domain.ErrValidation for malformed ones; anything the core
// cannot correlate comes back as a non-error outcome.
func (s *WebhookService) Handle(ctx context.Context, delivery WebhookDelivery) (ProcessOutcome, error) {
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("provider", delivery.Provider.String()))

	if err := s.verify(delivery); err != nil {
		if errors.Is(err, domain.ErrSignature) {
			s.metrics.IncSignatureFailure(delivery.Provider.String())
			logger.Warn("webhook signature rejected", zap.Error(err))
		}
		return "", err
	}

	event, err := s.normalizer.Normalize(delivery.Provider, delivery.RawBody)
	if err != nil {
		return "", err
	}

	outcome, err := s.processor.Process(ctx, event)
	if err != nil {
		return "", err
	}

	s.metrics.IncWebhookEvent(delivery.Provider.String(), event.Type.String(), string(outcome))
	return outcome, nil
}

func (s *WebhookService) verify(delivery WebhookDelivery) error {
	switch delivery.Provider {
	case domain.ProviderResend:
		if s.secrets.ResendSecret == "" && s.allowUnsigned {
			return nil
		}
		return s.verifier.Verify(delivery.RawBody, delivery.SignatureHeader, s.secrets.ResendSecret)
	case domain.ProviderMailgun:
		if s.secrets.MailgunSigningKey == "" && s.allowUnsigned {
			return nil
		}
		sig, err := webhook.ParseMailgunSignature(delivery.RawBody)
		if err != nil {
			return err
		}
		return s.verifier.VerifyMailgun(sig, s.secrets.MailgunSigningKey)
	}
	return fmt.Errorf("%w: unsupported provider %q", domain.ErrValidation, delivery.Provider)
}
