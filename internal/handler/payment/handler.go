package payment

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/soyapp/soy-backend/internal/handler"
	"github.com/soyapp/soy-backend/internal/service/payment"
)

const maxWebhookBody = 64 << 10

// Payments is satisfied by *payment.Service.
type Payments interface {
	CreateCheckoutSession(ctx context.Context, userID string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type checkoutRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type Handler struct {
	svc Payments
}

func NewHandler(svc Payments) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	p := r.Group("/payment")
	{
		p.POST("/create-checkout-session", h.CreateCheckoutSession)
		p.POST("/webhook", h.Webhook)
	}
}

func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.MessageResponse{Message: "userId es requerido"})
		return
	}

	url, err := h.svc.CreateCheckoutSession(c.Request.Context(), req.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("checkout session failed")
		c.JSON(http.StatusInternalServerError, handler.MessageResponse{Message: "Error al crear la sesión de checkout"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Webhook reads the raw body, which the signature is computed over. A body
// over maxWebhookBody is rejected rather than truncated.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		log.Warn().Int64("limit", tooLarge.Limit).Msg("stripe webhook body too large")
		c.JSON(http.StatusRequestEntityTooLarge, handler.MessageResponse{Message: "Webhook Error: body too large"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, handler.MessageResponse{Message: "Webhook Error: unreadable body"})
		return
	}

	err = h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		log.Warn().Err(err).Msg("rejected stripe webhook")
		c.JSON(http.StatusBadRequest, handler.MessageResponse{Message: "Webhook Error: " + err.Error()})
	case err != nil:
		log.Error().Err(err).Msg("stripe webhook failed")
		c.JSON(http.StatusInternalServerError, handler.MessageResponse{Message: "Error al procesar el webhook"})
	default:
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
