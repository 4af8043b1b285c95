package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"

	"riskdash/internal/cache"
	"riskdash/internal/config"
	"riskdash/internal/detect"
	"riskdash/internal/errors"
	"riskdash/internal/files"
	"riskdash/internal/infrastructure"
	"riskdash/internal/loader"
	customMiddleware "riskdash/internal/middleware"
	"riskdash/internal/pages"
	"riskdash/internal/schema"
	"riskdash/internal/services"
	"riskdash/internal/store"
	handlers "riskdash/internal/transport/http"
	"riskdash/internal/validation"
	ws "riskdash/internal/websocket"
	"riskdash/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.IngestMetrics
	Store         store.StatusStore
	Cache         *cache.UploadCache
	WebSocketHub  *ws.Hub
	IngestService *services.IngestService
	HealthService *services.HealthService
	ErrorHandler  *errors.ErrorHandler
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	build := contracts.GetVersionInfo()
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", build.Version),
		slog.String("commit", build.GitCommit),
		slog.String("built", build.BuildTime))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return newApplication(context.Background(), cfg, logger, otelProviders)
}

// newApplication wires every component from an already loaded configuration
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, otelProviders *infrastructure.OTelProviders) (*Application, error) {
	paths := cfg.ResolvedPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  errors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(ctx); err != nil {
		app.release()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context) error {
	meter := a.OTelProviders.Meter
	if meter == nil {
		meter = otel.Meter(infrastructure.MeterName)
	}
	metrics, err := infrastructure.NewIngestMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to create ingest metrics: %w", err)
	}
	a.Metrics = metrics

	st, err := openStore(ctx, a.Config)
	if err != nil {
		return err
	}
	a.Store = st

	a.Cache = cache.NewUploadCache(a.Config.Ingest.CacheTTL, a.Config.Ingest.CacheMaxEntries)

	hub := ws.NewHub(a.Logger, a.Config.WebSocket.PingPeriod, a.Config.WebSocket.PongWait)
	hub.Start()
	a.WebSocketHub = hub

	engine := detect.NewEngine(schema.Default(), a.Logger, a.Config.Ingest.HeaderSampleSize)
	ingest, err := services.NewIngestService(services.IngestDeps{
		Loader:  loader.NewLoader(engine, a.Logger, a.Config.Ingest.Workers),
		Catalog: pages.DefaultCatalog(),
		Cache:   a.Cache,
		Files:   files.NewManager(a.Paths, a.Logger),
		Store:   a.Store,
		Metrics: a.Metrics,
		Events:  hub,
		Tracer:  a.OTelProviders.Tracer,
		Logger:  a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ingest service: %w", err)
	}
	a.IngestService = ingest

	a.HealthService = services.NewHealthService(config.AppVersion, a.Paths, a.Store, hub, a.Logger)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.StatusStore, error) {
	if cfg.Store.Driver == config.StoreSQLite {
		st, err := store.OpenSQLite(ctx, cfg.StoreDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open status store: %w", err)
		}
		return st, nil
	}
	return store.NewMemoryStore(), nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// These don't wrap the ResponseWriter, so the websocket upgrade keeps its Hijacker
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	wsHandler := handlers.NewWebSocketHandler(
		a.WebSocketHub,
		a.Config.Security.AllowedOrigins,
		a.Config.WebSocket.ReadBufferSize,
		a.Config.WebSocket.WriteBufferSize,
		a.Logger,
		a.ErrorHandler,
	)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Get("/ws", wsHandler.ServeHTTP)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, 0)
	maxUpload := a.Config.Ingest.MaxUploadBytes

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		handlers.NewHealthHandler(a.HealthService, a.Logger).Routes(r)

		r.Mount("/schemas", handlers.NewSchemaHandler(a.IngestService, validator, a.Logger, a.ErrorHandler).Routes())

		// Routes that change stored inputs are audited
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuditLog(a.Logger))
			r.Mount("/ingest", handlers.NewIngestHandler(a.IngestService, validator, maxUpload, a.Logger, a.ErrorHandler).Routes())
			r.Mount("/pages", handlers.NewPagesHandler(a.IngestService, validator, maxUpload, a.Logger, a.ErrorHandler).Routes())
		})
	})
}

// getCORSConfig returns CORS configuration based on environment
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}

	if a.isDevelopmentMode() {
		cfg.AllowedOrigins = append(append([]string(nil), cfg.AllowedOrigins...),
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		)
	}

	a.Logger.Info("CORS configured",
		slog.Bool("development", a.isDevelopmentMode()),
		slog.Any("allowed_origins", cfg.AllowedOrigins))
	return cfg
}

func (a *Application) isDevelopmentMode() bool {
	return a.Config.Logging.Development || a.Config.Telemetry.Environment == "development"
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("store", a.Config.Store.Driver),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("uploads_dir", a.Paths.UploadsDir),
		slog.String("exports_dir", a.Paths.ExportsDir),
		slog.String("logs_dir", a.Paths.LogsDir))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.release()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// release stops background workers and closes the status store
func (a *Application) release() {
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.Cache != nil {
		a.Cache.Stop()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Error closing status store", slog.String("error", err.Error()))
		}
	}
}

// Run serves until SIGINT, SIGTERM or a listener failure, then shuts down
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.Start(serveCtx, cancel); err != nil {
		return err
	}

	<-serveCtx.Done()
	if ctx.Err() != nil {
		a.Logger.Info("Received interrupt signal")
	} else {
		a.Logger.Warn("Server stopped unexpectedly")
	}
	return a.Stop(context.Background())
}

// performStartupHealthCheck probes every data directory for writability
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	fv := validation.NewFileValidator(a.Logger)
	var problems []error
	for _, dir := range []string{a.Paths.DataDir, a.Paths.UploadsDir, a.Paths.ExportsDir, a.Paths.LogsDir} {
		if err := fv.ValidateOutputDirectory(dir); err != nil {
			problems = append(problems, err)
		}
	}
	if err := stderrors.Join(problems...); err != nil {
		return err
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
