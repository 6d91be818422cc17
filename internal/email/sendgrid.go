package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/soyapp/soy-backend/pkg/logger"
)

const sendGridEndpoint = "/v3/mail/send"

type SendGridService struct {
	apiKey string
	host   string
	from   Sender
	logger *logger.Logger
}

var _ Service = (*SendGridService)(nil)

func NewSendGridService(apiKey, host string, from Sender, log *logger.Logger) *SendGridService {
	if host == "" {
		host = "https://api.sendgrid.com"
	}
	return &SendGridService{apiKey: apiKey, host: host, from: from, logger: log.With("sendgrid")}
}

func (s *SendGridService) SendCustom(ctx context.Context, to, subject, content string) error {
	if to == "" {
		return ErrNoRecipient
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(s.from.Name, s.from.Address),
		subject,
		mail.NewEmail("", to),
		"",
		content,
	)

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected message to %s: status %d: %s", to, resp.StatusCode, resp.Body)
	}

	s.logger.Info("email sent", "to", to, "status", resp.StatusCode)
	return nil
}
