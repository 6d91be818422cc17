package certificate

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/soyapp/soy-backend/internal/handler"
)

const (
	msgApproved  = "Certificado aprobado y testigo notificado."
	msgProcessed = "Certificado procesado correctamente."
	msgConfirmed = "Defunción confirmada y legado publicado."
	msgMissingID = "certificadoId es requerido"
	msgInternal  = "Internal server error"
)

// Workflow is satisfied by *certificate.Service.
type Workflow interface {
	ApproveCertificate(ctx context.Context, id string) error
	ProcessCertificate(ctx context.Context, id string) error
	ConfirmDeath(ctx context.Context, id string) error
}

type request struct {
	CertificadoID string `json:"certificadoId" binding:"required"`
}

type Handler struct {
	workflow Workflow
}

func NewHandler(workflow Workflow) *Handler {
	return &Handler{workflow: workflow}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	certificado := r.Group("/certificado")
	{
		certificado.POST("/aprobar", h.run(h.workflow.ApproveCertificate, msgApproved))
		certificado.POST("/procesar", h.run(h.workflow.ProcessCertificate, msgProcessed))
		certificado.POST("/confirmar", h.run(h.workflow.ConfirmDeath, msgConfirmed))
	}
}

func (h *Handler) run(op func(context.Context, string) error, success string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.MessageResponse{Message: msgMissingID})
			return
		}

		if err := op(c.Request.Context(), req.CertificadoID); err != nil {
			log.Error().Err(err).
				Str("certificado_id", req.CertificadoID).
				Str("path", c.FullPath()).
				Msg("certificate operation failed")
			c.JSON(http.StatusInternalServerError, handler.MessageResponse{Message: msgInternal})
			return
		}

		c.JSON(http.StatusOK, handler.MessageResponse{Message: success})
	}
}
