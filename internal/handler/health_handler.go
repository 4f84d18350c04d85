package handler

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/bandmail/warmup-engine/internal/queue"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

func PostgresCheck(sqlDB *sql.DB) ReadinessCheck {
	return func(ctx context.Context) error {
		return sqlDB.PingContext(ctx)
	}
}

func RedisCheck(rdb *redis.Client) ReadinessCheck {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

// BrokerCheck only reports; analytics publishing is best effort, so a
// disconnected broker is shown as degraded without failing readiness.
func BrokerCheck(broker *queue.RabbitMQ) ReadinessCheck {
	return func(ctx context.Context) error {
		if !broker.IsConnected() {
			return errDegraded
		}
		return nil
	}
}

var errDegraded = errors.New("degraded")

func RegisterHealthRoutes(app fiber.Router, checks map[string]ReadinessCheck) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(checks))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(checks map[string]ReadinessCheck) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
		defer cancel()

		results := fiber.Map{}
		ready := true
		for _, name := range names {
			err := checks[name](ctx)
			switch {
			case err == nil:
				results[name] = "ok"
			case errors.Is(err, errDegraded):
				results[name] = "degraded"
			default:
				results[name] = "down"
				ready = false
			}
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
