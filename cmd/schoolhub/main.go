package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/schoolhub/internal/bootstrap"
	"github.com/neomorfeo/schoolhub/internal/config"
	"github.com/neomorfeo/schoolhub/internal/logging"

	handler "github.com/neomorfeo/schoolhub/internal/adapter/http"
	telemetry "github.com/neomorfeo/schoolhub/internal/adapter/otel"
)

const serviceName = "schoolhub"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "schoolhub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Component: "api", Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	// --- Telemetry ---
	otelCfg, err := telemetry.ConfigFromEnv()
	if err != nil {
		return err
	}
	providers, err := telemetry.Setup(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", zap.Error(err))
		}
	}()

	// --- Adapters (out) and application ---
	a, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing resources", zap.Error(err))
		}
	}()

	// --- Adapters (in) ---
	router := newRouter(logger)
	api := humachi.New(router, huma.DefaultConfig(serviceName, otelCfg.ServiceVersion))
	handler.Register(api, handler.Services{
		Admins:            a.Admins,
		Conversions:       a.Conversions,
		ConversionTimeout: cfg.ConversionTimeout,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Stop drives shutdown; cancelling the start context would hard-stop workers.
		if err := a.Jobs.Start(context.WithoutCancel(gctx)); err != nil {
			return fmt.Errorf("starting job queue: %w", err)
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return a.Jobs.Stop(stopCtx)
	})

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("docs", "/docs"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func newRouter(logger *zap.Logger) *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))
	router.Use(logging.RequestLogger(logger))
	return router
}
