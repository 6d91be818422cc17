package generator

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/soyapp/soy-backend/internal/generator"
	"github.com/soyapp/soy-backend/internal/handler"
)

type emotionRequest struct {
	Text string `json:"text" binding:"required"`
}

type Handler struct {
	gen generator.Generator
}

func NewHandler(gen generator.Generator) *Handler {
	return &Handler{gen: gen}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	api := r.Group("/api")
	{
		api.GET("/question", h.Question)
		api.POST("/emotions", h.Emotions)
	}
}

func (h *Handler) Question(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, handler.MessageResponse{Message: "userId es requerido"})
		return
	}

	question, err := h.gen.GenerateQuestion(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("question generation failed")
		c.JSON(http.StatusInternalServerError, handler.MessageResponse{Message: "Error al generar la pregunta"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": question})
}

func (h *Handler) Emotions(c *gin.Context) {
	var req emotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.MessageResponse{Message: "text es requerido"})
		return
	}

	emotions, err := h.gen.GenerateEmotions(c.Request.Context(), req.Text)
	if err != nil {
		log.Error().Err(err).Msg("emotion generation failed")
		c.JSON(http.StatusInternalServerError, handler.MessageResponse{Message: "Error al generar las emociones"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"emotions": emotions})
}
