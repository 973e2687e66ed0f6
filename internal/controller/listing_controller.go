package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"listings_backend/internal/middleware"
)

type ListingController struct {
	now func() time.Time
}

func NewListingController() *ListingController {
	return &ListingController{now: time.Now}
}

// GetPremiumStatus reports the entitlement of a listing already authorized by
// CheckListingOwnership. An elapsed window reads as not premium even before
// the expiry sweep has run.
func (lc *ListingController) GetPremiumStatus(c *fiber.Ctx) error {
	listing, ok := middleware.ListingFromContext(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Listing not found",
		})
	}

	return c.JSON(fiber.Map{
		"listingId":        listing.ID,
		"isPremium":        listing.PremiumActive(lc.now()),
		"premiumExpiresAt": listing.PremiumExpiresAt,
	})
}
