package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tourismcli/internal/config"
	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/infrastructure"
	customMiddleware "tourismcli/internal/middleware"
	"tourismcli/internal/schema"
	"tourismcli/internal/services"
	"tourismcli/internal/store"
	handlers "tourismcli/internal/transport/http"
	contracts "tourismcli/pkg/contracts"
)

// Application represents the HTTP service container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Telemetry     *infrastructure.Telemetry
	Registry      *schema.Registry
	RunService    *services.RunService
	HealthService *services.HealthService
}

// NewApplication wires the run store, services and router from cfg
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	telemetry, err := infrastructure.NewTelemetry(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	registry := schema.NewRegistry()
	runs, err := services.NewRunService(cfg, registry, store.NewMemoryRunStore(), telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create run service: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Telemetry:     telemetry,
		Registry:      registry,
		RunService:    runs,
		HealthService: services.NewHealthService(runs),
	}
	if err := app.setupRouter(); err != nil {
		return nil, err
	}
	app.createServer()
	return app, nil
}

// setupRouter orders middleware as RequestID, OTel, errors, then security
func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(a.Logger, false)

	r.Use(customMiddleware.RequestID)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}
	r.Use(otelMiddleware.Handler)
	r.Use(apperrors.NewErrorMiddleware(errorHandler, a.Logger).Handler)
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Server.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Server.RateLimit.RPS,
			a.Config.Server.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(errorHandler.NotFound)

	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		r.Mount("/schema", handlers.NewSchemaHandler(a.Registry, errorHandler, a.Logger).Routes())
		r.Mount("/runs", handlers.NewRunsHandler(a.RunService, errorHandler, a.Logger).Routes())
	})

	if a.Telemetry.MetricsHandler != nil {
		r.Handle("/metrics", a.Telemetry.MetricsHandler)
	}

	a.Router = r
	return nil
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the server in the background; a listen failure cancels ctx
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting server",
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("output_dir", a.Config.Output.Dir),
		slog.Bool("metrics", a.Telemetry.MetricsHandler != nil))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()
	return nil
}

// Stop gracefully stops the server and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if err := a.Telemetry.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down telemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Server shutdown complete")
	return nil
}

// Run serves until interrupted or until ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}
	return a.Stop(ctx)
}
