package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/messaging"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxRetries is the number of failed ticks after which an event is
	// marked failed and left alone.
	MaxRetries int
	Channel    string
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	log *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("outbox batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("outbox poll interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return nil, fmt.Errorf("outbox max retries must be greater than 0")
	}
	if config.Channel == "" {
		return nil, fmt.Errorf("outbox channel is required")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  log.With("outbox"),
		metrics: metrics,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor", "interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return nil
		case <-ticker.C:
			if err := p.ProcessEvents(ctx); err != nil {
				p.logger.Error(err, "failed to process events")
			}
		}
	}
}

// ProcessEvents publishes one batch of pending events.
func (p *OutboxProcessor) ProcessEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.StoreOperations.WithLabelValues("outbox.get_pending", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.StoreOperations.WithLabelValues("outbox.get_pending", "ok").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := p.broker.Publish(ctx, p.config.Channel, messaging.Message{
		ID:         event.ID.String(),
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	})
	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		errStr := err.Error()
		status := model.OutboxStatusPending
		if event.RetryCount+1 >= p.config.MaxRetries {
			status = model.OutboxStatusFailed
		}
		if updateErr := p.repo.UpdateStatus(ctx, event.ID, status, &errStr); updateErr != nil {
			p.logger.Error(updateErr, "failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}
