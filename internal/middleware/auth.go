package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"listings_backend/internal/verification"
)

const LocalUserID = "user_id"

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func AuthMiddleware(resolver verification.IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		userID, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}

// UserID returns the caller set by AuthMiddleware, or 0.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalUserID).(uint)
	return id
}
