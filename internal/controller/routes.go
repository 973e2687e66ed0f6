package controller

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"listings_backend/internal/middleware"
	"listings_backend/internal/verification"
)

type RouteConfig struct {
	Payments *PaymentController
	Listings *ListingController
	Identity verification.IdentityResolver
	Store    verification.ListingStore
	// Limiter throttles the pull endpoint when set.
	Limiter middleware.Limiter
	Metrics http.Handler
	Logger  *zap.Logger
}

func SetupRoutes(app *fiber.App, rc RouteConfig) {
	api := app.Group("/api")

	payments := api.Group("/payments")
	verify := []fiber.Handler{}
	if rc.Limiter != nil {
		verify = append(verify, middleware.RateLimit(rc.Limiter, rc.Logger))
	}
	verify = append(verify, rc.Payments.VerifyPayment)
	payments.Post("/verify", verify...)
	payments.Options("/verify", rc.Payments.Options)
	payments.Post("/ipn", rc.Payments.HandleIPN)
	payments.Options("/ipn", rc.Payments.Options)

	listings := api.Group("/listings", middleware.AuthMiddleware(rc.Identity))
	listings.Get("/:id/premium", middleware.CheckListingOwnership(rc.Store), rc.Listings.GetPremiumStatus)

	if rc.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(rc.Metrics))
	}
}
