package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soyapp/soy-backend/internal/handler"
	"github.com/soyapp/soy-backend/internal/middleware"
	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/service/audit"
	apperrors "github.com/soyapp/soy-backend/pkg/errors"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audit := r.Group("/audit")
	{
		audit.GET("/logs", h.ListLogs)
	}
}

func (h *Handler) ListLogs(c *gin.Context) {
	var filter model.AuditFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		if fields := middleware.ValidationErrors(err); fields != nil {
			c.JSON(http.StatusBadRequest, &handler.Response{Status: "error", Message: "invalid filter", Data: fields})
			return
		}
		_ = c.Error(apperrors.BadRequest("invalid filter", err))
		return
	}

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}
	if logs == nil {
		logs = []*model.AuditLog{}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}
