package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/internal/service/audit"
	"github.com/soyapp/soy-backend/internal/service/event"
	"github.com/soyapp/soy-backend/pkg/logger"
)

var (
	ErrMissingUserID    = errors.New("userId is required")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotConfigured    = errors.New("payments are not configured")
)

type Config struct {
	SecretKey     string
	PriceID       string
	WebhookSecret string
	FrontendURL   string
	SuccessPath   string
	CancelPath    string
}

// Service sells the premium subscription through Stripe Checkout.
type Service struct {
	stripe  *client.API
	cfg     Config
	users   repository.UserRepository
	auditor *audit.Service
	events  event.Emitter
	logger  *logger.Logger
}

// NewService builds the Stripe client. backends may be nil to use the
// default Stripe endpoints.
func NewService(
	cfg Config,
	backends *stripe.Backends,
	users repository.UserRepository,
	auditor *audit.Service,
	events event.Emitter,
	log *logger.Logger,
) (*Service, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY is not set", ErrNotConfigured)
	}
	return &Service{
		stripe:  client.New(cfg.SecretKey, backends),
		cfg:     cfg,
		users:   users,
		auditor: auditor,
		events:  events,
		logger:  log.With("payment"),
	}, nil
}

// CreateCheckoutSession starts a subscription checkout for userID and returns
// the hosted payment page URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingUserID
	}
	if s.cfg.PriceID == "" {
		return "", fmt.Errorf("%w: STRIPE_PRICE_ID is not set", ErrNotConfigured)
	}
	if s.cfg.FrontendURL == "" {
		return "", fmt.Errorf("%w: app.frontend_url is not set", ErrNotConfigured)
	}
	base := strings.TrimRight(s.cfg.FrontendURL, "/")

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(base + s.cfg.SuccessPath),
		CancelURL:  stripe.String(base + s.cfg.CancelPath),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	sess, err := s.stripe.CheckoutSessions.New(params)
	if err != nil {
		s.logger.Error(err, "failed to create checkout session", "user_id", userID)
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	s.logger.Info("checkout session created", "user_id", userID, "session_id", sess.ID)
	return sess.URL, nil
}

// HandleWebhook verifies a Stripe event and upgrades the paying user when a
// checkout completes. Other event types are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.cfg.WebhookSecret == "" {
		return fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET is not set", ErrNotConfigured)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if evt.Type != stripe.EventTypeCheckoutSessionCompleted {
		s.logger.Debug("ignoring stripe event", "type", string(evt.Type))
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to decode checkout session: %w", err)
	}

	userID := sess.Metadata["userId"]
	if userID == "" {
		s.logger.Warn("completed checkout without userId metadata", "session_id", sess.ID)
		return nil
	}

	if err := s.users.SetPremium(ctx, userID, true); err != nil {
		return fmt.Errorf("failed to set premium for user %s: %w", userID, err)
	}

	meta := map[string]interface{}{"userId": userID, "sessionId": sess.ID}
	if err := s.auditor.Log(ctx, model.AuditActionPremium, model.AuditEntityUser, userID, &audit.LogOptions{
		Changes: map[string]interface{}{"isPremium": true}, Metadata: meta,
	}); err != nil {
		s.logger.Error(err, "failed to write audit log", "user_id", userID)
	}
	if err := s.events.Emit(ctx, model.EventUserPremium, meta); err != nil {
		s.logger.Error(err, "failed to emit event", "user_id", userID)
	}

	s.logger.Info("user upgraded to premium", "user_id", userID)
	return nil
}
