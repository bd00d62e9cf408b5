package transport

import (
	"strings"

	"github.com/clubops/notify-engine/internal/observability"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const correlationHeader = "X-Correlation-ID"

// CorrelationMiddleware propagates the caller's correlation id into the
// request context, minting one when the header is absent. The id travels
// with the dispatch message so worker logs can be joined to the API call.
func CorrelationMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := strings.TrimSpace(c.Get(correlationHeader))
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), correlationID))
		c.Set(correlationHeader, correlationID)

		return c.Next()
	}
}
