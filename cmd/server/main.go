package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/timelapser/server/internal/config"
	"github.com/timelapser/server/internal/ffmpeg"
	"github.com/timelapser/server/internal/handlers"
	custommw "github.com/timelapser/server/internal/middleware"
	"github.com/timelapser/server/internal/observability"
	"github.com/timelapser/server/internal/repository"
	"github.com/timelapser/server/internal/services"
)

// @title Timelapser Server API
// @version 1.0
// @description Camera timelapse capture and orchestration server
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	provider := config.NewProvider(configPath, cfg)

	// Root context cancelled on SIGINT/SIGTERM drives all background work
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("timelapser-server", "1.0.0"))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	captureMetrics, err := observability.NewCaptureMetrics()
	if err != nil {
		log.Fatalf("Failed to create capture metrics: %v", err)
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Fatalf("Failed to create HTTP metrics: %v", err)
	}

	// Initialize database and repositories
	var dialect repository.Dialect
	var cameraRepo repository.CameraRepo
	var imageRepo repository.ImageRepo
	var batchRepo repository.BatchRepo
	var attemptRepo repository.AttemptRepo

	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL database")
		pg, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
		defer pg.Close()
		dialect = repository.DialectPostgres
		cameraRepo = repository.NewCameraRepository(pg, dialect)
		imageRepo = repository.NewImageRepository(pg, dialect)
		batchRepo = repository.NewBatchRepository(pg, dialect)
		attemptRepo = repository.NewAttemptRepository(pg, dialect)
	} else {
		log.Println("Using SQLite database")
		lite, err := repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
		defer lite.Close()
		dialect = repository.DialectSQLite
		cameraRepo = repository.NewCameraRepository(lite, dialect)
		imageRepo = repository.NewImageRepository(lite, dialect)
		batchRepo = repository.NewBatchRepository(lite, dialect)
		attemptRepo = repository.NewAttemptRepository(lite, dialect)
	}

	// Initialize services
	layout := services.StorageLayout{Root: cfg.Storage.OutputDir}
	hub := services.NewWebSocketHub()
	go hub.Run()

	manager := services.NewCameraManager(cameraRepo, imageRepo, batchRepo, attemptRepo, layout, hub)
	manager.UpdateSettings(cfg.Timelapse.GenerationMode, cfg.Timelapse.FrameRate, cfg.Timelapse.UnhealthyFailureThreshold)

	if err := manager.Reconcile(ctx, cfg.Cameras); err != nil {
		log.Fatalf("Failed to reconcile cameras: %v", err)
	}

	runner := ffmpeg.NewRunner(os.Getenv("FFMPEG_PATH"))
	captureService := services.NewCaptureService(runner, manager, layout, captureMetrics)
	timelapseService := services.NewTimelapseService(runner, manager, batchRepo, layout, hub, captureMetrics)
	cleanupService := services.NewCleanupService(manager, imageRepo, layout, captureMetrics)
	orchestrator := services.NewOrchestratorService(provider, manager, captureService, timelapseService, cleanupService)

	go orchestrator.Run(ctx)
	go cleanupService.Run(ctx, cfg.Storage.CleanupDays)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	cameraHandler := handlers.NewCameraHandler(manager)
	timelapseHandler := handlers.NewTimelapseHandler(manager, timelapseService, provider)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.TracingMiddleware("timelapser-server"))
	r.Use(observability.MetricsMiddleware(httpMetrics))
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, cfg.Security.APIKeyHeader))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)

	r.Route("/api/cameras", func(r chi.Router) {
		r.Get("/", cameraHandler.ListCameras)
		r.Get("/summary", cameraHandler.GetSummary)
		r.Get("/{name}", cameraHandler.GetCamera)

		r.Route("/{name}/timelapse", func(r chi.Router) {
			r.Post("/start", timelapseHandler.Start)
			r.Post("/pause", timelapseHandler.Pause)
			r.Post("/resume", timelapseHandler.Resume)
			r.Post("/stop", timelapseHandler.Stop)
			r.Post("/reset", timelapseHandler.Reset)
			r.Post("/generate", timelapseHandler.Generate)
		})
	})

	r.Get("/api/stats", cameraHandler.GetStats)
	r.Get("/api/ws", wsHandler.HandleConnection)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Timelapser Server starting on %s", cfg.ServerAddress)
		log.Printf("Media storage path: %s", cfg.Storage.OutputDir)
		log.Printf("Configured cameras: %d", len(cfg.Cameras))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Printf("Telemetry shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
