// Package certificate drives a death certificate through its lifecycle:
// pending, then approved or rejected, then confirmed.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyapp/soy-backend/internal/classifier"
	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/ocr"
	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/internal/service/audit"
	"github.com/soyapp/soy-backend/internal/service/event"
	"github.com/soyapp/soy-backend/internal/service/notification"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

// notifyLease bounds how long a failed or crashed notification attempt blocks
// the next one.
const notifyLease = 5 * time.Minute

// TextExtractor is satisfied by *ocr.Service.
type TextExtractor interface {
	ExtractText(ctx context.Context, f ocr.File) (string, error)
}

type Service struct {
	certificates repository.CertificateRepository
	users        repository.UserRepository
	entradas     repository.EntradaRepository
	files        repository.FileStorage
	extractor    TextExtractor
	classifier   classifier.Classifier
	notifier     notification.Service
	auditor      *audit.Service
	events       event.Emitter
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

type Deps struct {
	Store      repository.Store
	Files      repository.FileStorage
	Extractor  TextExtractor
	Classifier classifier.Classifier
	Notifier   notification.Service
	Auditor    *audit.Service
	Events     event.Emitter
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

func NewService(d Deps) *Service {
	return &Service{
		certificates: d.Store.Certificates,
		users:        d.Store.Users,
		entradas:     d.Store.Entradas,
		files:        d.Files,
		extractor:    d.Extractor,
		classifier:   d.Classifier,
		notifier:     d.Notifier,
		auditor:      d.Auditor,
		events:       d.Events,
		logger:       d.Logger.With("certificate"),
		metrics:      d.Metrics,
		now:          time.Now,
	}
}

// load returns (nil, nil) for a missing certificate after logging it.
func (s *Service) load(ctx context.Context, id string) (*model.Certificate, error) {
	cert, err := s.certificates.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("certificate not found", "certificate_id", id)
		s.metrics.CertificatesProcessed.WithLabelValues("not_found").Inc()
		return nil, nil
	}
	if err != nil {
		s.logger.Error(err, "failed to load certificate", "certificate_id", id)
		return nil, err
	}
	return cert, nil
}

// ProcessCertificate extracts the certificate text, classifies it and moves
// a pending certificate to approved or rejected.
func (s *Service) ProcessCertificate(ctx context.Context, id string) error {
	cert, err := s.load(ctx, id)
	if err != nil || cert == nil {
		return err
	}
	if cert.Status != model.CertificateStatusPending {
		s.logger.Warn("certificate is not pending, skipping", "certificate_id", id, "status", cert.Status)
		s.metrics.CertificatesProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	file, ok, err := s.fileFor(ctx, cert)
	if err != nil {
		s.fail(err, "failed to download certificate", cert)
		return err
	}
	if !ok {
		s.logger.Warn("unsupported certificate format", "certificate_id", id, "file_name", cert.FileName)
		s.metrics.CertificatesProcessed.WithLabelValues("unsupported").Inc()
		return nil
	}

	text, err := s.extractor.ExtractText(ctx, file)
	if errors.Is(err, ocr.ErrUnsupportedFormat) {
		s.logger.Warn("unsupported certificate format", "certificate_id", id, "mime_type", file.MimeType)
		s.metrics.CertificatesProcessed.WithLabelValues("unsupported").Inc()
		return nil
	}
	if err != nil {
		s.fail(err, "failed to extract certificate text", cert)
		return err
	}

	valid, err := s.classifier.IsValidDeathCertificate(ctx, text)
	if err != nil {
		s.fail(err, "failed to classify certificate", cert)
		return err
	}

	if !valid {
		return s.reject(ctx, cert)
	}
	return s.approve(ctx, cert)
}

// ApproveCertificate is the manual approval path. It skips extraction and
// classification. An approved certificate whose testigo was never notified
// resumes from the notification step.
func (s *Service) ApproveCertificate(ctx context.Context, id string) error {
	cert, err := s.load(ctx, id)
	if err != nil || cert == nil {
		return err
	}

	switch {
	case cert.Status == model.CertificateStatusPending:
		return s.approve(ctx, cert)
	case cert.Status == model.CertificateStatusApproved && !cert.TestigoNotified:
		_, err := s.completeApproval(ctx, cert)
		return err
	default:
		s.logger.Warn("certificate cannot be approved", "certificate_id", id, "status", cert.Status)
		return nil
	}
}

// ConfirmDeath moves an approved certificate to confirmed and publishes the
// user's legacy. Confirming an already confirmed certificate publishes again,
// which completes a publication that was interrupted.
func (s *Service) ConfirmDeath(ctx context.Context, id string) error {
	cert, err := s.load(ctx, id)
	if err != nil || cert == nil {
		return err
	}

	switch cert.Status {
	case model.CertificateStatusApproved:
		won, err := s.transition(ctx, cert, model.CertificateStatusConfirmed)
		if err != nil || !won {
			return err
		}
		s.record(ctx, model.AuditActionConfirm, cert, model.EventCertificateConfirmed)
		s.metrics.CertificatesProcessed.WithLabelValues("confirmed").Inc()
	case model.CertificateStatusConfirmed:
		s.logger.Info("certificate already confirmed, republishing legacy", "certificate_id", id)
	default:
		s.logger.Warn("certificate cannot be confirmed", "certificate_id", id, "status", cert.Status)
		return nil
	}

	if err := s.PublishLegacy(ctx, cert.UserID); err != nil {
		s.fail(err, "failed to publish legacy", cert)
		return err
	}
	s.logger.Info("death confirmed and legacy published", "certificate_id", id, "user_id", cert.UserID)
	return nil
}

// PublishLegacy makes every entrada of the user public, one write per entry.
func (s *Service) PublishLegacy(ctx context.Context, userID string) error {
	entradas, err := s.entradas.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list entradas for user %s: %w", userID, err)
	}

	published := 0
	for _, e := range entradas {
		if e.IsPublic {
			continue
		}
		if err := s.entradas.SetPublic(ctx, e.ID, true); err != nil {
			return fmt.Errorf("failed to publish entrada %s: %w", e.ID, err)
		}
		published++
	}
	s.metrics.EntriesPublished.Add(float64(published))

	payload := map[string]interface{}{"userId": userID, "published": published, "total": len(entradas)}
	if err := s.auditor.Log(ctx, model.AuditActionPublish, model.AuditEntityUser, userID, &audit.LogOptions{Metadata: payload}); err != nil {
		s.logger.Error(err, "failed to write audit log", "user_id", userID)
	}
	if err := s.events.Emit(ctx, model.EventLegacyPublished, payload); err != nil {
		s.logger.Error(err, "failed to emit event", "event_type", model.EventLegacyPublished, "user_id", userID)
	}

	s.logger.Info("legacy published", "user_id", userID, "published", published, "total", len(entradas))
	return nil
}

func (s *Service) fileFor(ctx context.Context, cert *model.Certificate) (ocr.File, bool, error) {
	switch cert.Kind() {
	case model.FileKindPDF:
		return ocr.File{Path: cert.FilePath, MimeType: cert.MimeType()}, true, nil
	case model.FileKindImage:
		data, err := s.files.Download(ctx, cert.FilePath)
		if err != nil {
			return ocr.File{}, false, err
		}
		return ocr.File{Path: cert.FilePath, MimeType: cert.MimeType(), Content: data}, true, nil
	default:
		return ocr.File{}, false, nil
	}
}

func (s *Service) reject(ctx context.Context, cert *model.Certificate) error {
	won, err := s.transition(ctx, cert, model.CertificateStatusRejected)
	if err != nil || !won {
		return err
	}
	s.record(ctx, model.AuditActionReject, cert, model.EventCertificateRejected)
	s.metrics.CertificatesProcessed.WithLabelValues("rejected").Inc()
	s.logger.Info("certificate rejected", "certificate_id", cert.ID)
	return nil
}

func (s *Service) approve(ctx context.Context, cert *model.Certificate) error {
	won, err := s.transition(ctx, cert, model.CertificateStatusApproved)
	if err != nil || !won {
		return err
	}
	s.record(ctx, model.AuditActionApprove, cert, model.EventCertificateApproved)
	s.metrics.CertificatesProcessed.WithLabelValues("approved").Inc()
	_, err = s.completeApproval(ctx, cert)
	return err
}

// completeApproval flags the user deceased and notifies the primary testigo.
// It reports whether an e-mail went out. Both steps are safe to repeat.
func (s *Service) completeApproval(ctx context.Context, cert *model.Certificate) (bool, error) {
	if err := s.markDeceased(ctx, cert); err != nil {
		return false, err
	}
	return s.notifyTestigo(ctx, cert)
}

// markDeceased writes the flag and its audit entry only the first time.
func (s *Service) markDeceased(ctx context.Context, cert *model.Certificate) error {
	user, err := s.users.Get(ctx, cert.UserID)
	if err != nil {
		s.fail(err, "failed to load user", cert)
		return err
	}
	if user.IsDeceased {
		return nil
	}

	if err := s.users.MarkDeceased(ctx, cert.UserID); err != nil {
		s.fail(err, "failed to mark user deceased", cert)
		return err
	}
	if err := s.auditor.Log(ctx, model.AuditActionMarkDead, model.AuditEntityUser, cert.UserID, &audit.LogOptions{
		Metadata: map[string]string{"certificadoId": cert.ID},
	}); err != nil {
		s.logger.Error(err, "failed to write audit log", "user_id", cert.UserID)
	}
	s.logger.Info("certificate approved, user marked deceased", "certificate_id", cert.ID, "user_id", cert.UserID)
	return nil
}

// notifyTestigo sends the testigo e-mail under a lease on the certificate so
// concurrent callers send it once. A user without testigos closes the step
// with an empty testigo id.
func (s *Service) notifyTestigo(ctx context.Context, cert *model.Certificate) (bool, error) {
	now := s.now()
	err := s.certificates.ClaimTestigoNotification(ctx, cert.ID, now, now.Add(notifyLease))
	if errors.Is(err, repository.ErrStatusConflict) {
		s.logger.Info("testigo notification already handled", "certificate_id", cert.ID)
		return false, nil
	}
	if err != nil {
		s.fail(err, "failed to claim testigo notification", cert)
		return false, err
	}

	testigo, err := s.notifier.NotifyPrimaryTestigo(ctx, cert.UserID)
	if err != nil {
		s.fail(err, "failed to notify primary testigo", cert)
		if rerr := s.certificates.ReleaseTestigoNotification(context.WithoutCancel(ctx), cert.ID); rerr != nil {
			s.logger.Error(rerr, "failed to release testigo notification", "certificate_id", cert.ID)
		}
		return false, err
	}

	testigoID := ""
	if testigo != nil {
		testigoID = testigo.ID
	}
	if err := s.certificates.MarkTestigoNotified(ctx, cert.ID, testigoID); err != nil {
		s.fail(err, "failed to record testigo notification", cert)
		return testigo != nil, err
	}
	if testigo == nil {
		return false, nil
	}

	if err := s.auditor.Log(ctx, model.AuditActionNotify, model.AuditEntityCertificate, cert.ID, &audit.LogOptions{
		Metadata: map[string]string{"testigoId": testigo.ID},
	}); err != nil {
		s.logger.Error(err, "failed to write audit log", "certificate_id", cert.ID)
	}
	return true, nil
}

// transition applies a compare-and-swap on the status. A lost race reports
// won=false with no error.
func (s *Service) transition(ctx context.Context, cert *model.Certificate, to model.CertificateStatus) (bool, error) {
	from := cert.Status
	if !model.CanTransition(from, to) {
		return false, fmt.Errorf("invalid certificate transition %s -> %s", from, to)
	}

	err := s.certificates.TransitionStatus(ctx, cert.ID, from, to)
	if errors.Is(err, repository.ErrStatusConflict) {
		s.logger.Warn("certificate changed concurrently, skipping", "certificate_id", cert.ID, "from", from, "to", to)
		s.metrics.CertificatesProcessed.WithLabelValues("conflict").Inc()
		return false, nil
	}
	if err != nil {
		s.fail(err, "failed to update certificate status", cert)
		return false, err
	}
	cert.Status = to
	return true, nil
}

// record writes the audit entry and outbox event of a status change. Failures
// are logged since the status write has already happened.
func (s *Service) record(ctx context.Context, action string, cert *model.Certificate, eventType string) {
	payload := map[string]string{
		"certificadoId": cert.ID,
		"userId":        cert.UserID,
		"status":        string(cert.Status),
	}
	if err := s.auditor.Log(ctx, action, model.AuditEntityCertificate, cert.ID, &audit.LogOptions{Changes: payload}); err != nil {
		s.logger.Error(err, "failed to write audit log", "certificate_id", cert.ID)
	}
	if err := s.events.Emit(ctx, eventType, payload); err != nil {
		s.logger.Error(err, "failed to emit event", "event_type", eventType, "certificate_id", cert.ID)
	}
}

func (s *Service) fail(err error, msg string, cert *model.Certificate) {
	s.metrics.CertificatesProcessed.WithLabelValues("error").Inc()
	s.logger.Error(err, msg, "certificate_id", cert.ID, "user_id", cert.UserID)
}
