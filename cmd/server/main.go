package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/jobs"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/ratelimit"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store/memstore"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store/pgstore"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := jobs.NewScheduler()

	// Store
	var (
		st           store.Store
		pgLogHandler *logging.PGHandler
	)
	switch cfg.StoreDriver {
	case "postgres":
		if err := database.Connect(cfg); err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := database.Migrate(); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		st = pgstore.New(database.DB)

		// PostgreSQL log handler (ERROR+ async batch)
		pgLogHandler = logging.NewPGHandler(database.DB)
		slog.SetDefault(slog.New(logging.NewMultiHandler(
			logging.StdoutHandler(os.Stdout),
			pgLogHandler,
		)))

		if err := scheduler.Add("log_cleanup", cfg.LogCleanupCron,
			logging.CleanupJob(database.DB, cfg.LogRetentionDays)); err != nil {
			slog.Error("job registration failed", "error", err)
			os.Exit(1)
		}
	default:
		slog.Warn("using in-memory store, data is lost on restart")
		st = memstore.New()
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Services
	retentionService := services.NewRetentionService(st, cfg.RetentionGraceDays)
	lifecycleService := services.NewLifecycleService(st, retentionService)
	moderationService := services.NewModerationService(st, lifecycleService)
	adminService := services.NewAdminService(st, moderationService)
	sweeper := services.NewRetentionSweeper(retentionService, lifecycleService, cfg.RetentionSweepBatch)

	if err := scheduler.Add("retention_sweep", cfg.RetentionSweepCron,
		jobs.SweepJob(sweeper, 10*time.Minute)); err != nil {
		slog.Error("job registration failed", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Admin rate guard with periodic compaction
	guard := ratelimit.New()
	guard.Start(ctx, cfg.RateCompactionInterval)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})
	app.Use(middleware.Metrics())

	// Routes
	routes.Setup(app, cfg, st, guard, routes.Handlers{
		Health:     handlers.NewHealthHandler(st, cfg.StoreDriver),
		Lifecycle:  handlers.NewLifecycleHandler(lifecycleService),
		Moderation: handlers.NewModerationHandler(moderationService, adminService),
		Admin:      handlers.NewAdminHandler(lifecycleService, adminService, sweeper),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := scheduler.Stop(stopCtx); err != nil {
		slog.Error("scheduler stop error", "error", err)
	}
	stopCancel()

	guard.Stop()
	cancel()
	if pgLogHandler != nil {
		pgLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	if cfg.StoreDriver == "postgres" {
		if err := database.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
