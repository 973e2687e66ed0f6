package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"listings_backend/internal/controller"
	"listings_backend/internal/middleware"
	"listings_backend/internal/model"
	"listings_backend/internal/verification"
	"listings_backend/pkg/config"
	"listings_backend/pkg/cron"
	"listings_backend/pkg/database"
	"listings_backend/pkg/gateway"
	applog "listings_backend/pkg/logger"
	"listings_backend/pkg/metrics"
	"listings_backend/pkg/ratelimit"
	"listings_backend/pkg/seed"
	"listings_backend/pkg/store"
	"listings_backend/pkg/subscription"
	"listings_backend/pkg/utils/jwt"
)

func main() {
	cfg := config.Load()

	zl, err := applog.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.InitDB(cfg.Database.DSN())
	if err != nil {
		zl.Fatal("database init failed", zap.Error(err))
	}
	err = database.MigrateDatabase(db, zl,
		&model.User{},
		&model.Listing{},
		&model.Subscription{},
	)
	if err != nil {
		zl.Warn("migration warning", zap.Error(err))
	}

	if cfg.Server.IsDev() {
		if err := seed.SeedDemoData(db, zl); err != nil {
			zl.Warn("demo seed failed", zap.Error(err))
		}
	}

	recorder, err := metrics.New()
	if err != nil {
		zl.Fatal("metrics init failed", zap.Error(err))
	}

	st := store.New(db)
	identity := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)

	var ipnKeys *verification.IPNKeys
	if cfg.PayTech.CheckIPNKeys {
		ipnKeys = &verification.IPNKeys{APIKey: cfg.PayTech.APIKey, APISecret: cfg.PayTech.APISecret}
	}

	svc := verification.NewService(verification.Dependencies{
		TokenGateway:   gateway.NewTokenClient(cfg.TokenGateway.BaseURL, cfg.TokenGateway.APIKey, cfg.TokenGateway.Timeout),
		PayTechGateway: gateway.NewPayTechClient(cfg.PayTech.BaseURL, cfg.PayTech.APIKey, cfg.PayTech.APISecret, cfg.PayTech.Timeout),
		Identity:       identity,
		Listings:       st,
		Entitlements:   st,
		Catalog: subscription.NewCatalog(
			cfg.Pricing.Currency,
			cfg.Pricing.ReportPrice,
			cfg.Pricing.MonthlyPrice,
			cfg.Pricing.YearlyPrice,
		),
		Logger:   zl.Named("verification"),
		Observer: recorder,
		IPNKeys:  ipnKeys,
	})

	expiry, err := cron.InitSubscriptionExpiryCron(st, recorder, zl.Named("cron"))
	if err != nil {
		zl.Error("could not initialize subscription expiry cron", zap.Error(err))
	}

	var limiter middleware.Limiter
	redisClient := ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.New(redisClient, cfg.Redis.RateLimit, cfg.Redis.RateWindow)
	} else {
		zl.Info("REDIS_ADDR not set, verification rate limit disabled")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: func() string { return uuid.NewString() },
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(middleware.CORS(cfg.Server.CORSOrigins))

	controller.SetupRoutes(app, controller.RouteConfig{
		Payments: controller.NewPaymentController(svc, zl.Named("http")),
		Listings: controller.NewListingController(),
		Identity: identity,
		Store:    st,
		Limiter:  limiter,
		Metrics:  recorder.Handler(),
		Logger:   zl,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		if expiry != nil {
			expiry.Stop()
		}
		_ = app.Shutdown()
	}()

	zl.Info("server is running", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.AppEnv))
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
