package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/pws-ingestion/internal/api/http"
	"github.com/i474232898/pws-ingestion/internal/config"
	"github.com/i474232898/pws-ingestion/internal/scheduler"
	"github.com/i474232898/pws-ingestion/internal/store"
	"github.com/i474232898/pws-ingestion/internal/weather"
	"github.com/i474232898/pws-ingestion/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create database directory: %v", err)
		}
	}

	// Durable store; a failed open is fatal, the engine cannot run
	// unconfigured.
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	fetcher := providers.NewWundergroundProvider(httpClient)

	// Status surface: logs every event and retains recent messages for
	// the HTTP status endpoint.
	events := weather.NewEventLog(100)

	// Ingestion engine with write-once setup.
	service := weather.NewService(fetcher, events)
	if err := service.SetStation(cfg.StationID); err != nil {
		log.Fatalf("failed to configure station: %v", err)
	}
	if err := service.SetCredential(cfg.APIKey); err != nil {
		log.Fatalf("failed to configure credential: %v", err)
	}
	if err := service.AttachStore(st); err != nil {
		log.Fatalf("failed to attach store: %v", err)
	}
	if err := service.LoadIndex(); err != nil {
		log.Fatalf("failed to rebuild deduplication index: %v", err)
	}
	if err := service.Start(); err != nil {
		log.Fatalf("failed to start ingestion: %v", err)
	}
	defer service.Stop()

	// Scheduler that periodically polls within the active-hours window.
	sched := scheduler.New(service, events, cfg.PollInterval, cfg.ActiveStart, cfg.ActiveEnd)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "pws-ingestion",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "pws-ingestion",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, sched, events)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
