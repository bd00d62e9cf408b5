package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// BrokerCheck reports whether the message broker connection is usable.
type BrokerCheck func() error

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, broker BrokerCheck) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, broker))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, broker BrokerCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
		defer cancel()

		checks := fiber.Map{}
		healthy := true

		pgStatus := "ok"
		if err := sqlDB.PingContext(ctx); err != nil {
			pgStatus = "down"
			healthy = false
		}
		checks["postgres"] = pgStatus

		redisStatus := "ok"
		if err := rdb.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
			healthy = false
		}
		checks["redis"] = redisStatus

		if broker != nil {
			brokerStatus := "ok"
			if err := broker(); err != nil {
				brokerStatus = "down"
				healthy = false
			}
			checks["rabbitmq"] = brokerStatus
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !healthy {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
