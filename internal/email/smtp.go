package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/soyapp/soy-backend/pkg/logger"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPService sends through a plain SMTP relay.
type SMTPService struct {
	dialer *gomail.Dialer
	from   Sender
	logger *logger.Logger
}

var _ Service = (*SMTPService)(nil)

func NewSMTPService(cfg SMTPConfig, from Sender, log *logger.Logger) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
		logger: log.With("smtp"),
	}
}

func (s *SMTPService) SendCustom(ctx context.Context, to, subject, content string) error {
	if to == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := s.message(to, subject, content)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", to, err)
	}

	s.logger.Info("email sent", "to", to)
	return nil
}

func (s *SMTPService) message(to, subject, content string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from.Address, s.from.Name))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)
	return m
}
