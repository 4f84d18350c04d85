package handler

import (
	"strings"

	"github.com/bandmail/warmup-engine/internal/observability"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderUserID carries the caller's user id, set by the upstream gateway.
const HeaderUserID = "X-User-ID"

// RequestContext stores the correlation id and caller id on the request's
// user context so services and loggers can pick them up. A missing
// X-Request-ID is generated and echoed back.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, correlationID)

		ctx := observability.WithCorrelationID(c.UserContext(), correlationID)
		if userID := strings.TrimSpace(c.Get(HeaderUserID)); userID != "" {
			ctx = observability.WithUserID(ctx, userID)
		}
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// RequireUser rejects requests that reached the API without a caller id.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := observability.UserIDFromContext(c.UserContext()); !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+HeaderUserID+" header")
		}
		return c.Next()
	}
}

func requestUserID(c *fiber.Ctx) string {
	userID, _ := observability.UserIDFromContext(c.UserContext())
	return userID
}
