package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"marginreco/internal/config"
	apperrors "marginreco/internal/errors"
	"marginreco/internal/infrastructure"
	customMiddleware "marginreco/internal/middleware"
	"marginreco/internal/services"
	handlers "marginreco/internal/transport/http"
)

// VERSION is reported by the health endpoint
const VERSION = infrastructure.ServiceVersion

// Application represents the web service container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Telemetry     *infrastructure.Telemetry
	Store         *services.ArtifactStore
	ReportService *services.ReportService
	HealthService *services.HealthService
	Logger        *slog.Logger
}

// NewApplication wires telemetry, services and the router from cfg
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &Application{
		Config:    cfg,
		Telemetry: telemetry,
		Logger:    logger,
	}
	if err := a.initializeServices(); err != nil {
		telemetry.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := a.setupRouter(); err != nil {
		a.Store.Close()
		telemetry.Shutdown(context.Background())
		return nil, err
	}
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	store, err := services.NewArtifactStore(a.Config.Output.TempDir, a.Config.Server.ReportTTL, a.Logger)
	if err != nil {
		return err
	}
	a.Store = store
	a.ReportService = services.NewReportService(a.Config, a.Telemetry.Metrics, a.Logger)
	a.HealthService = services.NewHealthService(VERSION, store, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(a.Logger)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create telemetry middleware: %w", err)
	}

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(otelMiddleware.Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleError(w, r, apperrors.NewNotFoundError(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		problem := apperrors.NewProblemDetails(http.StatusMethodNotAllowed, apperrors.TypeValidation,
			"Method Not Allowed", fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path), r.URL.Path)
		render.Render(w, r, problem)
	})

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Handle("/metrics", a.Telemetry.MetricsHandler())

	reportHandler := handlers.NewReportHandler(a.ReportService, a.Store,
		a.Config.Server.MaxUploadBytes, a.Logger, errorHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}
		r.With(customMiddleware.ContentTypeValidator(errorHandler, "multipart/form-data")).
			Post("/sheets", reportHandler.ListSheets)
		r.Mount("/reports", reportHandler.Routes())
	})

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
		ErrorLog:     slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts down gracefully
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "server listening",
			slog.String("address", ln.Addr().String()),
			slog.String("version", VERSION))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// Stop drains the server, removes generated artifacts and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Telemetry.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down telemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return errors.Join(errs...)
}
