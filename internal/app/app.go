// Package app builds the dependency graph shared by the API and worker
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/soyapp/soy-backend/internal/classifier"
	"github.com/soyapp/soy-backend/internal/config"
	"github.com/soyapp/soy-backend/internal/email"
	"github.com/soyapp/soy-backend/internal/handler/health"
	"github.com/soyapp/soy-backend/internal/ocr"
	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/internal/repository/firestore"
	"github.com/soyapp/soy-backend/internal/repository/memory"
	"github.com/soyapp/soy-backend/internal/repository/postgres"
	"github.com/soyapp/soy-backend/internal/service/audit"
	"github.com/soyapp/soy-backend/internal/service/certificate"
	"github.com/soyapp/soy-backend/internal/service/event"
	"github.com/soyapp/soy-backend/internal/service/notification"
	"github.com/soyapp/soy-backend/internal/storage"
	"github.com/soyapp/soy-backend/internal/worker"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/messaging"
	"github.com/soyapp/soy-backend/pkg/messaging/redis"
	"github.com/soyapp/soy-backend/pkg/metrics"
	pkgworker "github.com/soyapp/soy-backend/pkg/worker"
)

const metricsNamespace = "soy"

// App holds every long-lived dependency. Close releases them in reverse
// order of construction.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store        repository.Store
	Files        repository.FileStorage
	AuditRepo    repository.AuditRepository
	OutboxRepo   repository.OutboxRepository
	Broker       messaging.Broker
	Locker       worker.Locker
	Auditor      *audit.Service
	Events       event.Emitter
	Notifier     notification.Service
	Certificates *certificate.Service
	Checks       map[string]health.Check

	closers []io.Closer
}

// New connects to every configured backend. On error, whatever was already
// opened is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Metrics:  metrics.New(metricsNamespace, reg),
		Checks:   map[string]health.Check{},
	}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, log := a.Config, a.Logger

	if err := a.initStore(ctx); err != nil {
		return err
	}
	if err := a.initJournal(ctx); err != nil {
		return err
	}
	if err := a.initBroker(ctx); err != nil {
		return err
	}

	annotator, err := ocr.NewVisionAnnotator(ctx, cfg.OCR.CredentialsFile)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, annotator)

	mailer, err := newMailer(cfg, log)
	if err != nil {
		return err
	}

	a.Auditor = audit.NewService(a.AuditRepo)
	a.Events = event.NewEventService(a.OutboxRepo)
	a.Notifier = notification.NewService(a.Store.Users, a.Store.Testigos, mailer, cfg.App.MessageLinkBase, log, a.Metrics)
	a.Certificates = certificate.NewService(certificate.Deps{
		Store: a.Store,
		Files: a.Files,
		Extractor: ocr.NewService(annotator, a.Files, ocr.Config{
			TempPrefix: cfg.OCR.TempPrefix,
			PDFTimeout: cfg.OCR.PDFTimeout,
		}, log, a.Metrics),
		Classifier: classifier.NewOpenAIClassifier(cfg.Secrets.OpenAIAPIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, log),
		Notifier:   a.Notifier,
		Auditor:    a.Auditor,
		Events:     a.Events,
		Logger:     log,
		Metrics:    a.Metrics,
	})
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.Driver {
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client)
		a.Store = firestore.NewStore(client, a.Metrics)

		gcs, err := storage.NewGCS(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, gcs)
		a.Files = gcs
	default:
		a.Logger.Warn("using in-memory document store, data is lost on restart")
		a.Store = memory.NewDB().Store()
		a.Files = memory.NewFiles(cfg.Storage.Bucket)
	}
	return nil
}

// initJournal opens Postgres for the audit log and the outbox when a host is
// configured, and falls back to process memory otherwise.
func (a *App) initJournal(ctx context.Context) error {
	if a.Config.Database.Host == "" {
		a.Logger.Warn("database.host not set, audit log and outbox are kept in memory")
		a.AuditRepo = memory.NewAuditLog()
		a.OutboxRepo = memory.NewOutbox()
		return nil
	}

	db, err := postgres.NewDB(a.Config.Database)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, db)
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	base := postgres.NewBaseRepository(db)
	a.AuditRepo = postgres.NewAuditRepository(base)
	a.OutboxRepo = postgres.NewOutboxRepository(base)
	a.Checks["database"] = pingDB(db)
	return nil
}

func (a *App) initBroker(ctx context.Context) error {
	if a.Config.Redis.URL == "" {
		a.Broker = messaging.NewMemoryBroker()
		a.closers = append(a.closers, a.Broker)
		return nil
	}

	client, err := redis.NewClient(ctx, redis.Config{URL: a.Config.Redis.URL})
	if err != nil {
		return err
	}
	broker := redis.NewRedisBroker(client, a.Logger)
	a.closers = append(a.closers, broker)
	a.Broker = broker
	a.Locker = redis.NewLocker(client, "soy:lock:", a.Logger)
	a.Checks["redis"] = pingRedis(client)
	return nil
}

func newMailer(cfg *config.Config, log *logger.Logger) (email.Service, error) {
	from := email.Sender{Address: cfg.Email.From, Name: cfg.Email.FromName}
	switch cfg.Email.Provider {
	case "sendgrid":
		if cfg.Secrets.SendGridAPIKey == "" {
			return nil, errors.New("SOY_SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return email.NewSendGridService(cfg.Secrets.SendGridAPIKey, cfg.Email.SendGridHost, from, log), nil
	case "smtp":
		return email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.Secrets.SMTPPassword,
		}, from, log), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

// Workers are the background loops of the service.
type Workers struct {
	Dispatcher *worker.MessageDispatcher
	Sweeper    *worker.CertificateSweeper
	Outbox     *pkgworker.OutboxProcessor
	Cleanup    *pkgworker.AuditCleanupWorker
}

// Runners returns every worker's Start method, for an errgroup.
func (w *Workers) Runners() []func(context.Context) error {
	return []func(context.Context) error{
		w.Dispatcher.Start,
		w.Sweeper.Start,
		w.Outbox.Start,
		w.Cleanup.Start,
	}
}

func (a *App) Workers() (*Workers, error) {
	cfg := a.Config

	outbox, err := pkgworker.NewOutboxProcessor(a.OutboxRepo, a.Broker, pkgworker.OutboxProcessorConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.Interval,
		MaxRetries:   cfg.Outbox.MaxRetries,
		Channel:      cfg.Outbox.Channel,
	}, a.Logger, a.Metrics)
	if err != nil {
		return nil, err
	}

	return &Workers{
		Dispatcher: worker.NewMessageDispatcher(
			a.Store.Messages, a.Store.Users, a.Notifier, a.Auditor, a.Events, a.Locker,
			worker.DispatcherConfig{Interval: cfg.Worker.MessageInterval, LockTTL: cfg.Redis.LockTTL},
			a.Logger, a.Metrics,
		),
		Sweeper: worker.NewCertificateSweeper(a.Certificates, cfg.Worker.CertificateInterval, a.Logger),
		Outbox:  outbox,
		Cleanup: pkgworker.NewAuditCleanupWorker(a.AuditRepo, a.OutboxRepo, cfg.Audit.RetentionDays, cfg.Audit.CleanupInterval, a.Logger),
	}, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Error(err, "failed to close resource")
		}
	}
	a.closers = nil
}

func pingDB(db *sqlx.DB) health.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func pingRedis(client *goredis.Client) health.Check {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}
