package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bandmail/warmup-engine/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type WarmupService interface {
	Start(ctx context.Context, userID string, campaignID string) (service.WarmupStart, error)
	Pause(ctx context.Context, userID string, campaignID string, reason string) (service.WarmupStatus, error)
	Resume(ctx context.Context, userID string, campaignID string) (service.WarmupStatus, error)
	Status(ctx context.Context, userID string, campaignID string) (service.WarmupStatus, error)
}

type BatchSender interface {
	SendNextBatch(ctx context.Context, userID string, campaignID string) (service.BatchResult, error)
}

type WarmupHandler struct {
	warmup   WarmupService
	batches  BatchSender
	validate *validator.Validate
}

func NewWarmupHandler(warmup WarmupService, batches BatchSender, validate *validator.Validate) (*WarmupHandler, error) {
	if warmup == nil {
		return nil, fmt.Errorf("warmup service is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch sender is required")
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WarmupHandler{warmup: warmup, batches: batches, validate: validate}, nil
}

// RegisterWarmupRoutes mounts the warm-up endpoints under /v1. The router is
// expected to run RequestContext first.
func RegisterWarmupRoutes(router fiber.Router, warmup WarmupService, batches BatchSender, validate *validator.Validate) error {
	h, err := NewWarmupHandler(warmup, batches, validate)
	if err != nil {
		return err
	}

	campaigns := router.Group("/v1/campaigns/:id/warmup", RequireUser())
	campaigns.Post("/start", h.Start)
	campaigns.Post("/send-batch", h.SendBatch)
	campaigns.Post("/pause", h.Pause)
	campaigns.Post("/resume", h.Resume)
	campaigns.Get("/status", h.Status)

	return nil
}

type pauseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type dayQuotaResponse struct {
	Day   int `json:"day"`
	Quota int `json:"quota"`
}

type startResponse struct {
	CampaignID string             `json:"campaignId"`
	WarmupDay  int                `json:"warmupDay"`
	StartedAt  time.Time          `json:"startedAt"`
	Schedule   []dayQuotaResponse `json:"schedule"`
}

type batchResponse struct {
	BatchSent      int  `json:"batchSent"`
	BatchFailed    int  `json:"batchFailed"`
	WarmupDay      int  `json:"warmupDay"`
	IsComplete     bool `json:"isComplete"`
	NextBatchQuota int  `json:"nextBatchQuota"`
}

type statusResponse struct {
	CampaignID          string     `json:"campaignId"`
	Enabled             bool       `json:"enabled"`
	Paused              bool       `json:"paused"`
	PauseReason         *string    `json:"pauseReason"`
	CurrentDay          int        `json:"currentDay"`
	DaysRemaining       int        `json:"daysRemaining"`
	Progress            int        `json:"progress"`
	IsComplete          bool       `json:"isComplete"`
	EstimatedCompletion *time.Time `json:"estimatedCompletion"`
	TodayQuota          int        `json:"todayQuota"`
	SentCount           int64      `json:"sentCount"`
	FailedCount         int64      `json:"failedCount"`
}

func (h *WarmupHandler) Start(c *fiber.Ctx) error {
	start, err := h.warmup.Start(c.UserContext(), requestUserID(c), campaignID(c))
	if err != nil {
		return toHTTPError(err)
	}

	schedule := make([]dayQuotaResponse, 0, len(start.Schedule))
	for _, day := range start.Schedule {
		schedule = append(schedule, dayQuotaResponse{Day: day.Day, Quota: day.Quota})
	}

	return c.Status(fiber.StatusOK).JSON(startResponse{
		CampaignID: start.CampaignID,
		WarmupDay:  start.WarmupDay,
		StartedAt:  start.StartedAt,
		Schedule:   schedule,
	})
}

func (h *WarmupHandler) SendBatch(c *fiber.Ctx) error {
	result, err := h.batches.SendNextBatch(c.UserContext(), requestUserID(c), campaignID(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(batchResponse{
		BatchSent:      result.BatchSent,
		BatchFailed:    result.BatchFailed,
		WarmupDay:      result.WarmupDay,
		IsComplete:     result.IsComplete,
		NextBatchQuota: result.NextBatchQuota,
	})
}

func (h *WarmupHandler) Pause(c *fiber.Ctx) error {
	var req pauseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := h.validate.StructCtx(c.UserContext(), req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "reason is required")
	}

	status, err := h.warmup.Pause(c.UserContext(), requestUserID(c), campaignID(c), req.Reason)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toStatusResponse(status))
}

func (h *WarmupHandler) Resume(c *fiber.Ctx) error {
	status, err := h.warmup.Resume(c.UserContext(), requestUserID(c), campaignID(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toStatusResponse(status))
}

func (h *WarmupHandler) Status(c *fiber.Ctx) error {
	status, err := h.warmup.Status(c.UserContext(), requestUserID(c), campaignID(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toStatusResponse(status))
}

func campaignID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Params("id"))
}

func toStatusResponse(s service.WarmupStatus) statusResponse {
	return statusResponse{
		CampaignID:          s.CampaignID,
		Enabled:             s.Enabled,
		Paused:              s.Paused,
		PauseReason:         s.PauseReason,
		CurrentDay:          s.CurrentDay,
		DaysRemaining:       s.DaysRemaining,
		Progress:            s.Progress,
		IsComplete:          s.IsComplete,
		EstimatedCompletion: s.EstimatedCompletion,
		TodayQuota:          s.TodayQuota,
		SentCount:           s.SentCount,
		FailedCount:         s.FailedCount,
	}
}
