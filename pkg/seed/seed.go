package seed

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"listings_backend/internal/model"
	"listings_backend/pkg/subscription"
)

// DemoReference is the pending checkout seeded for local IPN testing.
const DemoReference = "DEMO-CHECKOUT-0001"

// SeedDemoData creates a demo owner, one listing and a pending monthly
// checkout. Running it again leaves existing rows untouched.
func SeedDemoData(db *gorm.DB, log *zap.Logger) error {
	owner := model.User{
		Email:       "demo-owner@listings.local",
		Username:    "demo-owner",
		FirstName:   "Demo",
		LastName:    "Owner",
		PhoneNumber: "+221770000000",
	}
	if err := db.Where(model.User{Email: owner.Email}).FirstOrCreate(&owner).Error; err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}

	listing := model.Listing{
		Title:       "Demo villa",
		Status:      model.ListingStatusForSale,
		Price:       85000000,
		Currency:    model.CurrencyXOF,
		UserID:      owner.ID,
		City:        "Dakar",
		CountryName: "Senegal",
	}
	if err := db.Where(model.Listing{UserID: owner.ID, Title: listing.Title}).FirstOrCreate(&listing).Error; err != nil {
		return fmt.Errorf("seed listing: %w", err)
	}

	checkout := model.Subscription{
		Reference: DemoReference,
		ListingID: listing.ID,
		UserID:    owner.ID,
		Product:   subscription.SubscriptionProduct,
		Plan:      subscription.MonthlyPlan,
		Status:    model.SubscriptionPending,
	}
	if err := db.Where(model.Subscription{Reference: DemoReference}).FirstOrCreate(&checkout).Error; err != nil {
		return fmt.Errorf("seed checkout: %w", err)
	}

	log.Info("demo data seeded",
		zap.Uint("user_id", owner.ID),
		zap.Uint("listing_id", listing.ID),
		zap.String("reference", DemoReference))
	return nil
}
