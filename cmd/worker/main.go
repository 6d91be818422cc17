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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/soyapp/soy-backend/internal/app"
	"github.com/soyapp/soy-backend/internal/config"
	"github.com/soyapp/soy-backend/internal/handler/health"
	"github.com/soyapp/soy-backend/internal/handler/prometheus"
	"github.com/soyapp/soy-backend/internal/middleware"
	"github.com/soyapp/soy-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	}).WithFields(map[string]interface{}{"process": "worker"})
	log.Logger = lg.ZL

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal(err, "worker exited")
	}
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	workers, err := a.Workers()
	if err != nil {
		return err
	}

	srv := probeServer(cfg.Worker.MetricsPort, a)

	g, gctx := errgroup.WithContext(ctx)
	for _, start := range workers.Runners() {
		start := start
		g.Go(func() error { return start(gctx) })
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("probe server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// probeServer exposes health and metrics for the orchestrator.
func probeServer(port int, a *app.App) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery())

	metrics := prometheus.New("soy_worker", a.Registry)
	engine.GET("/metrics", metrics.Handler())
	health.NewHandler(a.Checks).RegisterRoutes(&engine.RouterGroup)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
