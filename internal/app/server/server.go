package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"payreport/internal/domain/access"
	"payreport/internal/domain/payroll"
	"payreport/internal/domain/reports"
	"payreport/internal/export/xlsx"
	"payreport/internal/platform/config"
	"payreport/internal/platform/logger"
	"payreport/internal/platform/metrics"
	"payreport/internal/platform/seed"
	"payreport/internal/transport/http/api"
	payrollhandler "payreport/internal/transport/http/handlers/payroll"
	reportshandler "payreport/internal/transport/http/handlers/reports"
	"payreport/internal/transport/http/middleware"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Config  config.Config
	Backend Backend
	Metrics *metrics.Collector
	Router  http.Handler
	Logger  *slog.Logger
}

// Run is the process entrypoint: load config, open storage, serve until SIGINT/SIGTERM.
func Run() error {
	cfg := config.Load()
	log := logger.New(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(log)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Backend.Close(); err != nil {
			log.Warn("backend close failed", "err", err)
		}
	}()

	return app.Serve(ctx)
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := seed.LoadFile(ctx, cfg.FixturesFile, backend, logger.Component(log, "seed")); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("seed failed: %w", err)
	}

	app := &App{
		Config:  cfg,
		Backend: backend,
		Metrics: metrics.New(),
		Logger:  log,
	}
	app.Router = app.routes()
	return app, nil
}

func (a *App) routes() http.Handler {
	entitlements := access.NewPlanEntitlements(a.Config.PlanFeatures)
	household := access.ClaimsHousehold{}
	reportService := reports.NewService(a.Backend, a.Backend, a.Logger)
	payrollService := payroll.NewService(a.Backend)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger.Component(a.Logger, "http"), a.Metrics))
	router.Use(middleware.Recoverer(a.Logger))
	router.Use(middleware.SecureHeaders(a.Config.Environment == "production"))
	if len(a.Config.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.Config.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{"Content-Disposition", middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	router.Use(middleware.BodyLimit(a.Config.MaxBodyBytes))
	router.Use(middleware.Auth(a.Config.JWTSecret, a.Logger))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Backend.Ping(ctx); err != nil {
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if a.Config.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(a.Config.RateLimitPerMinute, time.Minute))
		r.Use(middleware.ExpensiveRouteRateLimit(a.Config.RateLimitPerMinute, time.Minute))

		reportsHandler := reportshandler.NewHandler(reportService, xlsx.NewRenderer(a.Backend), entitlements, household, a.Metrics, a.Logger)
		reportsHandler.RegisterRoutes(r)

		payrollHandler := payrollhandler.NewHandler(payrollService, household, a.Logger)
		payrollHandler.RegisterRoutes(r)
	})

	return router
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight requests.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.Logger.Info("payreport server listening", "addr", a.Config.Addr, "backend", a.Config.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
