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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/soyapp/soy-backend/internal/app"
	"github.com/soyapp/soy-backend/internal/config"
	"github.com/soyapp/soy-backend/internal/generator"
	audithandler "github.com/soyapp/soy-backend/internal/handler/audit"
	authhandler "github.com/soyapp/soy-backend/internal/handler/auth"
	certhandler "github.com/soyapp/soy-backend/internal/handler/certificate"
	generatorhandler "github.com/soyapp/soy-backend/internal/handler/generator"
	"github.com/soyapp/soy-backend/internal/handler/health"
	paymenthandler "github.com/soyapp/soy-backend/internal/handler/payment"
	"github.com/soyapp/soy-backend/internal/handler/prometheus"
	"github.com/soyapp/soy-backend/internal/middleware"
	"github.com/soyapp/soy-backend/internal/router"
	authService "github.com/soyapp/soy-backend/internal/service/auth"
	paymentService "github.com/soyapp/soy-backend/internal/service/payment"
	jwtauth "github.com/soyapp/soy-backend/pkg/auth"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/security"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
	log.Logger = lg.ZL

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal(err, "api exited")
	}
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	handlers := router.Handlers{
		Health:      health.NewHandler(a.Checks),
		Certificate: certhandler.NewHandler(a.Certificates),
		Audit:       audithandler.NewHandler(a.Auditor),
		Generator:   generatorhandler.NewHandler(generator.NewOpenAIGenerator(cfg.Secrets.OpenAIAPIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, lg)),
	}

	var authMiddleware *middleware.AuthMiddleware
	if cfg.Secrets.JWTSecret != "" {
		jwtSvc, err := jwtauth.NewJWTService(cfg.Secrets.JWTSecret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
		if err != nil {
			return err
		}
		operators := make([]authService.Operator, 0, len(cfg.Operators))
		for _, op := range cfg.Operators {
			operators = append(operators, authService.Operator{Email: op.Email, PasswordHash: op.PasswordHash})
		}
		authSvc := authService.NewService(operators, security.NewBcryptHasher(security.DefaultCost), jwtSvc, a.Auditor)
		authMiddleware = middleware.NewAuthMiddleware(authSvc)
		handlers.Auth = authhandler.NewHandler(authSvc)
	}

	if cfg.Secrets.StripeSecretKey != "" {
		paymentSvc, err := paymentService.NewService(paymentService.Config{
			SecretKey:     cfg.Secrets.StripeSecretKey,
			PriceID:       cfg.Secrets.StripePriceID,
			WebhookSecret: cfg.Secrets.StripeWebhookSecret,
			FrontendURL:   cfg.App.FrontendURL,
			SuccessPath:   cfg.Stripe.SuccessPath,
			CancelPath:    cfg.Stripe.CancelPath,
		}, nil, a.Store.Users, a.Auditor, a.Events, lg)
		if err != nil {
			return err
		}
		handlers.Payment = paymenthandler.NewHandler(paymentSvc)
	} else {
		lg.Warn("SOY_STRIPE_SECRET_KEY not set, payment routes disabled")
	}

	r := router.NewRouter(authMiddleware, handlers, prometheus.New("soy", a.Registry), router.RouterConfig{
		RateLimitRPS:    cfg.RateLimit.RPS,
		RateLimitBurst:  cfg.RateLimit.Burst,
		Timeout:         cfg.Server.Timeout(),
		WorkflowTimeout: cfg.WorkflowTimeout(),
		CORS:            middleware.DefaultCORSConfig(),
	})
	r.Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Worker.Embedded {
		workers, err := a.Workers()
		if err != nil {
			return err
		}
		for _, start := range workers.Runners() {
			start := start
			g.Go(func() error { return start(gctx) })
		}
	}

	return g.Wait()
}
