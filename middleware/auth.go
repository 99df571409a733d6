package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity injected by the Gateway.
// Every secured PvP route requires X-User-ID; X-User-Name is the display
// name shown to the opponent.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		name := strings.TrimSpace(c.Get("X-User-Name"))
		if name == "" {
			name = userID
		}

		c.Locals("user_id", userID)
		c.Locals("user_name", name)

		return c.Next()
	}
}
