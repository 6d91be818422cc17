package worker

import (
	"context"
	"time"

	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/pkg/logger"
)

// AuditCleanupWorker enforces the audit log retention and drops outbox rows
// that were published long ago.
type AuditCleanupWorker struct {
	audit         repository.AuditRepository
	outbox        repository.OutboxRepository
	retentionDays int
	interval      time.Duration
	logger        *logger.Logger
	now           func() time.Time
}

func NewAuditCleanupWorker(audit repository.AuditRepository, outbox repository.OutboxRepository, retentionDays int, interval time.Duration, log *logger.Logger) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		audit:         audit,
		outbox:        outbox,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        log.With("audit-cleanup"),
		now:           time.Now,
	}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Cleanup(ctx)
		}
	}
}

func (w *AuditCleanupWorker) Cleanup(ctx context.Context) {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	n, err := w.audit.Cleanup(ctx, cutoff)
	if err != nil {
		w.logger.Error(err, "failed to clean up audit logs")
	} else if n > 0 {
		w.logger.Info("audit logs removed", "count", n, "cutoff", cutoff)
	}

	if w.outbox == nil {
		return
	}
	n, err = w.outbox.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error(err, "failed to clean up outbox events")
	} else if n > 0 {
		w.logger.Info("processed outbox events removed", "count", n, "cutoff", cutoff)
	}
}
