// middleware/sse_auth.go
package middleware

import (
	"context"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"watch-reward-system/services"
)

// TokenValidator checks an end-user access token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken, deviceID string) (*services.ValidateResponse, error)
}

// SSEAuthMiddleware validates `token` and `device_id` query params, since
// EventSource cannot send headers.
//
// Usage:
//
//	app.Get("/watch/balance/stream", middleware.SSEAuthMiddleware(authClient), stream.StreamBalanceSSE)
func SSEAuthMiddleware(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			log.Printf("[SSEAuth] ❌ Missing query params for %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := validator.ValidateToken(c.UserContext(), accessToken, deviceID)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(LocalUserID, resp.UserID)
		c.Locals(LocalDeviceID, resp.DeviceID)
		c.Locals(LocalUserRoles, resp.Roles)

		log.Printf("[SSEAuth] ✅ Authenticated user %s (device %s)", resp.UserID, resp.DeviceID)
		return c.Next()
	}
}
