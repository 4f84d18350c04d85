package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

type QuotaChecker interface {
	Check(ctx context.Context, userID string) (domain.QuotaStatus, error)
}

type QuotaHandler struct {
	quota QuotaChecker
}

func RegisterQuotaRoutes(router fiber.Router, quota QuotaChecker) error {
	if quota == nil {
		return fmt.Errorf("quota checker is required")
	}
	h := &QuotaHandler{quota: quota}
	router.Get("/v1/quota", RequireUser(), h.GetQuota)
	return nil
}

type quotaResponse struct {
	EmailsSentToday int       `json:"emailsSentToday"`
	MonthlyLimit    int       `json:"monthlyLimit"`
	Remaining       int       `json:"remaining"`
	ResetDate       time.Time `json:"resetDate"`
	Allowed         bool      `json:"allowed"`
}

func (h *QuotaHandler) GetQuota(c *fiber.Ctx) error {
	status, err := h.quota.Check(c.UserContext(), requestUserID(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(quotaResponse{
		EmailsSentToday: status.EmailsSentToday,
		MonthlyLimit:    status.MonthlyLimit,
		Remaining:       status.Remaining,
		ResetDate:       status.ResetDate,
		Allowed:         status.Allowed,
	})
}
