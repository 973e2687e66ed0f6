package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows any origin by default and answers preflight requests with an
// empty 200 instead of fiber's 204.
func CORS(origins string) fiber.Handler {
	if origins == "" {
		origins = "*"
	}
	h := cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	})

	return func(c *fiber.Ctx) error {
		if err := h(c); err != nil {
			return err
		}
		if c.Method() == fiber.MethodOptions && c.Response().StatusCode() == fiber.StatusNoContent {
			c.Status(fiber.StatusOK)
			c.Response().ResetBody()
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		}
		return nil
	}
}
