package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soyapp/soy-backend/internal/handler"
	"github.com/soyapp/soy-backend/internal/middleware"
	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/service/auth"
	apperrors "github.com/soyapp/soy-backend/pkg/errors"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/token", h.Token)
	}
}

func (h *Handler) Token(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields := middleware.ValidationErrors(err); fields != nil {
			c.JSON(http.StatusBadRequest, &handler.Response{Status: "error", Message: "invalid request", Data: fields})
			return
		}
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		c.JSON(http.StatusTooManyRequests, handler.NewErrorResponse(err.Error()))
	case errors.Is(err, auth.ErrInvalidCredentials):
		_ = c.Error(apperrors.Unauthorized(err))
	case err != nil:
		_ = c.Error(apperrors.Internal(err))
	default:
		c.JSON(http.StatusOK, handler.NewSuccessResponse(tokens))
	}
}
