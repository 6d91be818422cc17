package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/soyapp/soy-backend/internal/model"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict is returned by TransitionStatus when the stored status
	// no longer matches the expected prior status.
	ErrStatusConflict = errors.New("status conflict")
)

// All repository interfaces in one file
type (
	CertificateRepository interface {
		Get(ctx context.Context, id string) (*model.Certificate, error)
		ListByStatus(ctx context.Context, status model.CertificateStatus) ([]*model.Certificate, error)
		// ListAwaitingNotification returns approved certificates whose primary
		// testigo has not been notified yet.
		ListAwaitingNotification(ctx context.Context) ([]*model.Certificate, error)
		// TransitionStatus writes to only if the stored status still equals from.
		TransitionStatus(ctx context.Context, id string, from, to model.CertificateStatus) error
		// ClaimTestigoNotification reserves the notification step until
		// leaseUntil. It returns ErrStatusConflict when the step is already
		// done or another caller holds a lease that has not expired at now.
		ClaimTestigoNotification(ctx context.Context, id string, now, leaseUntil time.Time) error
		// ReleaseTestigoNotification drops the lease after a failed attempt.
		ReleaseTestigoNotification(ctx context.Context, id string) error
		// MarkTestigoNotified closes the notification step and drops the
		// lease. An empty testigoID records that the user has no testigo.
		MarkTestigoNotified(ctx context.Context, id, testigoID string) error
	}

	UserRepository interface {
		Get(ctx context.Context, id string) (*model.User, error)
		MarkDeceased(ctx context.Context, id string) error
		SetPremium(ctx context.Context, id string, premium bool) error
	}

	TestigoRepository interface {
		ListByUser(ctx context.Context, userID string) ([]*model.Testigo, error)
	}

	EntradaRepository interface {
		ListByUser(ctx context.Context, userID string) ([]*model.Entrada, error)
		SetPublic(ctx context.Context, id string, public bool) error
	}

	ScheduledMessageRepository interface {
		// ListDue returns unsent messages whose send date is at or before now.
		ListDue(ctx context.Context, now time.Time) ([]*model.ScheduledMessage, error)
		MarkSent(ctx context.Context, id string, at time.Time) error
	}

	// FileStorage is the object store holding uploaded certificates and OCR
	// scratch files.
	FileStorage interface {
		Download(ctx context.Context, path string) ([]byte, error)
		Upload(ctx context.Context, path, contentType string, data []byte) error
		Delete(ctx context.Context, path string) error
		List(ctx context.Context, prefix string) ([]string, error)
		URI(path string) string
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Store bundles the document store gateways so a single client handle can be
// constructed once at startup and injected everywhere.
type Store struct {
	Certificates CertificateRepository
	Users        UserRepository
	Testigos     TestigoRepository
	Entradas     EntradaRepository
	Messages     ScheduledMessageRepository
}
