package middleware

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"listings_backend/internal/model"
	"listings_backend/internal/verification"
)

const LocalListing = "listing"

// CheckListingOwnership loads the :id listing for the authenticated caller.
// A missing listing and someone else's listing both answer 404.
func CheckListingOwnership(listings verification.ListingStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || id == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid listing id",
			})
		}

		listing, err := verification.AuthorizeListing(c.UserContext(), listings, UserID(c), uint(id))
		switch {
		case err == nil:
		case errors.Is(err, verification.ErrUnauthenticated):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		case errors.Is(err, verification.ErrNotFoundOrUnauthorized):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Listing not found",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not load listing",
			})
		}

		c.Locals(LocalListing, listing)
		return c.Next()
	}
}

func ListingFromContext(c *fiber.Ctx) (model.Listing, bool) {
	listing, ok := c.Locals(LocalListing).(model.Listing)
	return listing, ok
}
