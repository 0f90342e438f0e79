package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Handlers struct {
	Health     *handlers.HealthHandler
	Lifecycle  *handlers.LifecycleHandler
	Moderation *handlers.ModerationHandler
	Admin      *handlers.AdminHandler
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	accounts middleware.AccountReader,
	guard *ratelimit.Guard,
	h Handlers,
) {
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Owner endpoints
	jwt := middleware.JWTProtected(cfg)
	api.Delete("/listings/:id", jwt, h.Lifecycle.DeleteListing)
	api.Post("/listings/:id/restore", jwt, h.Lifecycle.RestoreListing)
	api.Patch("/listings/:id/status", jwt, h.Lifecycle.ChangeListingStatus)
	api.Delete("/templates/:id", jwt, h.Lifecycle.DeleteTemplate)
	api.Post("/templates/:id/restore", jwt, h.Lifecycle.RestoreTemplate)
	api.Delete("/account", jwt, h.Lifecycle.DeleteAccount)
	api.Post("/account/restore", jwt, h.Lifecycle.RestoreAccount)
	api.Post("/reports", jwt, h.Moderation.CreateReport)

	// Admin panel. X-Admin-Token callers skip the JWT check.
	admin := api.Group("/admin",
		middleware.AdminToken(cfg),
		middleware.JWTProtected(cfg),
		middleware.AdminRequired(accounts, cfg),
	)

	// Sliding-window guard on every admin mutation, keyed per route and caller
	guarded := middleware.RateGuard(guard, middleware.RatePolicy{
		Window: cfg.AdminRateWindow,
		Max:    cfg.AdminRateMax,
	})

	admin.Get("/reports", h.Moderation.ListReports)
	admin.Get("/reports/:id", h.Moderation.GetReport)
	admin.Post("/reports/:id/review", guarded, h.Moderation.MarkReviewed)
	admin.Put("/reports/:id", guarded, h.Moderation.ResolveReport)

	admin.Get("/pending-deletion/:kind", h.Admin.PendingDeletion)
	admin.Get("/suspended-users", h.Admin.SuspendedUsers)
	admin.Post("/retention/sweep", guarded, h.Admin.RunSweep)

	admin.Post("/users/:id/suspend", guarded, h.Admin.Suspend)
	admin.Delete("/users/:id/suspend", guarded, h.Admin.Unsuspend)

	admin.Post("/:kind/:id/remove", guarded, h.Admin.Remove)
	admin.Post("/:kind/:id/restore", guarded, h.Admin.Restore)
	admin.Delete("/:kind/:id", guarded, h.Admin.HardDelete)
}
