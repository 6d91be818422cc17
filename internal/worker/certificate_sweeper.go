package worker

import (
	"context"
	"sync"
	"time"

	"github.com/soyapp/soy-backend/internal/service/certificate"
	"github.com/soyapp/soy-backend/pkg/logger"
)

// PendingProcessor is satisfied by *certificate.Service.
type PendingProcessor interface {
	ProcessPending(ctx context.Context) (certificate.SweepResult, error)
}

// CertificateSweeper periodically re-runs the certificate workflow over every
// pending certificate.
type CertificateSweeper struct {
	processor PendingProcessor
	interval  time.Duration
	mu        sync.Mutex
	logger    *logger.Logger
}

func NewCertificateSweeper(processor PendingProcessor, interval time.Duration, log *logger.Logger) *CertificateSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CertificateSweeper{processor: processor, interval: interval, logger: log.With("certificate-sweeper")}
}

func (s *CertificateSweeper) Start(ctx context.Context) error {
	s.logger.Info("starting certificate sweeper", "interval", s.interval.String())
	return runEvery(ctx, s.interval, s.Sweep)
}

func (s *CertificateSweeper) Sweep(ctx context.Context) {
	if !s.mu.TryLock() {
		s.logger.Debug("previous sweep still running, skipping tick")
		return
	}
	defer s.mu.Unlock()

	res, err := s.processor.ProcessPending(ctx)
	if err != nil {
		s.logger.Error(err, "certificate sweep failed")
		return
	}
	if res.Pending > 0 || res.Resumed > 0 || res.Failed > 0 {
		s.logger.Info("certificate sweep finished", "pending", res.Pending, "resumed", res.Resumed, "failed", res.Failed)
	}
}
