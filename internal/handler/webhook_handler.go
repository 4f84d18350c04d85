package handler

import (
	"context"
	"fmt"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/bandmail/warmup-engine/internal/service"
	"github.com/bandmail/warmup-engine/internal/webhook"
	"github.com/gofiber/fiber/v2"
)

type WebhookProcessor interface {
	Handle(ctx context.Context, delivery service.WebhookDelivery) (service.ProcessOutcome, error)
}

type WebhookHandler struct {
	webhooks WebhookProcessor
}

func RegisterWebhookRoutes(router fiber.Router, webhooks WebhookProcessor) error {
	if webhooks == nil {
		return fmt.Errorf("webhook processor is required")
	}
	h := &WebhookHandler{webhooks: webhooks}
	router.Post("/webhooks/:provider", h.Receive)
	return nil
}

// Receive answers 200 for every authenticated, well-formed delivery, including
// events that match no send record, so providers stop retrying them.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	provider, err := domain.ParseProviderFromString(c.Params("provider"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	// fasthttp reuses the body buffer once the handler returns.
	raw := append([]byte(nil), c.Body()...)

	outcome, err := h.webhooks.Handle(c.UserContext(), service.WebhookDelivery{
		Provider:        provider,
		RawBody:         raw,
		SignatureHeader: c.Get(webhook.ResendSignatureHeader),
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": string(outcome),
	})
}
