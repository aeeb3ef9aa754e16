package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/skycal/celestial-data-aggregation/internal/api/http"
	"github.com/skycal/celestial-data-aggregation/internal/celestial"
	"github.com/skycal/celestial-data-aggregation/internal/celestial/luminance"
	"github.com/skycal/celestial-data-aggregation/internal/celestial/orchestrator"
	"github.com/skycal/celestial-data-aggregation/internal/celestial/providers"
	"github.com/skycal/celestial-data-aggregation/internal/config"
	"github.com/skycal/celestial-data-aggregation/internal/location"
	"github.com/skycal/celestial-data-aggregation/internal/scheduler"
	"github.com/skycal/celestial-data-aggregation/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Snapshot cache with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxEntries, cfg.StoreMaxAge)

	// Providers behind circuit breakers.
	apod := providers.NewAPODProvider(httpClient, cfg.NASAAPIKey)
	gemini := providers.NewGeminiProvider(httpClient, cfg.GeminiAPIKey, cfg.GeminiModel)

	// Ephemeris chain: structured source first, generative extraction
	// second; the orchestrator's demo placeholder is the final step.
	ephemerisChain := []celestial.EphemerisProvider{
		providers.NewOpenMeteoProvider(httpClient),
		providers.NewTextEphemerisProvider(gemini),
	}

	analyzer := luminance.NewAnalyzer(httpClient, cfg.LuminanceStride)

	// Core service orchestrating providers and the cache.
	service := orchestrator.NewService(apod, ephemerisChain, gemini, analyzer, memStore)

	// Reverse geocoders: Google when a key is configured, Nominatim always.
	var geocoders []location.ReverseGeocoder
	if cfg.GoogleGeocoderKey != "" {
		geocoders = append(geocoders, location.NewGoogleGeocoder(cfg.GoogleGeocoderKey))
	}
	geocoders = append(geocoders, location.NewNominatimGeocoder(httpClient))
	resolver := location.NewResolver(geocoders...)

	// Scheduler keeping the recent imagery window warm.
	sched := scheduler.New(service, cfg.PrefetchWindowDays, cfg.PrefetchInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// View state machine; the splash interval runs once at startup.
	viewState := celestial.NewViewStateController()
	time.AfterFunc(cfg.SplashInterval, viewState.SplashElapsed)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "celestial-data-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
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
			"service": "celestial-data-aggregation",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service:    service,
		Resolver:   resolver,
		Generative: gemini,
		Sessions:   celestial.NewSessionManager(),
		ViewState:  viewState,
	})

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
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
