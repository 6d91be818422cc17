package notification

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/soyapp/soy-backend/internal/email"
	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

const (
	subjectTestigo          = "Solicitud de Confirmación de Defunción"
	subjectScheduledMessage = "Tienes un Mensaje Programado de Soy"

	testigoTemplate = `<p>Estimado/a %s,</p>
<p>Se ha detectado que el usuario <strong>%s</strong> ha fallecido.</p>
<p>Por favor, confirma esta información para proceder con la publicación del legado.</p>
<p>Gracias.</p>`

	scheduledMessageTemplate = `<p>Hola,</p><p>Han programado un mensaje para ti el día de hoy. Puedes verlo aquí: <a href="%s">Ver mensaje</a></p>`
)

type Service interface {
	// NotifyPrimaryTestigo e-mails the user's primary testigo and returns it.
	// A user without testigos yields (nil, nil).
	NotifyPrimaryTestigo(ctx context.Context, userID string) (*model.Testigo, error)
	SendScheduledMessage(ctx context.Context, msg *model.ScheduledMessage) error
}

type service struct {
	users    repository.UserRepository
	testigos repository.TestigoRepository
	emailSvc email.Service
	linkBase string
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	users repository.UserRepository,
	testigos repository.TestigoRepository,
	emailSvc email.Service,
	linkBase string,
	log *logger.Logger,
	m *metrics.Metrics,
) Service {
	return &service{
		users:    users,
		testigos: testigos,
		emailSvc: emailSvc,
		linkBase: strings.TrimRight(linkBase, "/"),
		logger:   log.With("notification"),
		metrics:  m,
	}
}

func (s *service) NotifyPrimaryTestigo(ctx context.Context, userID string) (*model.Testigo, error) {
	testigos, err := s.testigos.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load testigos for user %s: %w", userID, err)
	}
	testigo := model.PrimaryTestigo(testigos)
	if testigo == nil {
		s.logger.Warn("user has no testigo, skipping notification", "user_id", userID)
		s.metrics.TestigoNotifications.WithLabelValues("no_testigo").Inc()
		return nil, nil
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	body := fmt.Sprintf(testigoTemplate, html.EscapeString(testigo.Name), html.EscapeString(user.DisplayName()))
	if err := s.emailSvc.SendCustom(ctx, testigo.Email, subjectTestigo, body); err != nil {
		s.metrics.TestigoNotifications.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to notify testigo %s: %w", testigo.ID, err)
	}

	s.metrics.TestigoNotifications.WithLabelValues("sent").Inc()
	s.logger.Info("primary testigo notified", "user_id", userID, "testigo_id", testigo.ID)
	return testigo, nil
}

func (s *service) SendScheduledMessage(ctx context.Context, msg *model.ScheduledMessage) error {
	if msg.Email == "" {
		return email.ErrNoRecipient
	}
	body := fmt.Sprintf(scheduledMessageTemplate, s.MessageLink(msg.ID))
	if err := s.emailSvc.SendCustom(ctx, msg.Email, subjectScheduledMessage, body); err != nil {
		return fmt.Errorf("failed to send scheduled message %s: %w", msg.ID, err)
	}
	return nil
}

// MessageLink is the public viewing URL of a scheduled message.
func (s *service) MessageLink(id string) string {
	return s.linkBase + "/" + id
}
