package certificate

import (
	"context"
	"fmt"

	"github.com/soyapp/soy-backend/internal/model"
)

// SweepResult summarises one pass of ProcessPending.
type SweepResult struct {
	Pending int
	Failed  int
	Resumed int
}

// ProcessPending runs ProcessCertificate over every pending certificate and
// resumes approvals whose testigo notification never completed. Failures of
// individual certificates are logged and do not stop the pass.
func (s *Service) ProcessPending(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	pending, err := s.certificates.ListByStatus(ctx, model.CertificateStatusPending)
	if err != nil {
		return res, fmt.Errorf("failed to list pending certificates: %w", err)
	}
	res.Pending = len(pending)

	seen := make(map[string]struct{}, len(pending))
	for _, cert := range pending {
		seen[cert.ID] = struct{}{}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		s.logger.Debug("processing pending certificate", "certificate_id", cert.ID)
		if err := s.ProcessCertificate(ctx, cert.ID); err != nil {
			res.Failed++
		}
	}

	awaiting, err := s.certificates.ListAwaitingNotification(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list certificates awaiting notification: %w", err)
	}
	for _, cert := range awaiting {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if _, ok := seen[cert.ID]; ok {
			continue
		}
		s.logger.Debug("resuming approval", "certificate_id", cert.ID)
		sent, err := s.completeApproval(ctx, cert)
		if err != nil {
			res.Failed++
			continue
		}
		if sent {
			res.Resumed++
		}
	}

	return res, nil
}
