// Package generator produces reflection prompts and emotion tags for entries.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soyapp/soy-backend/pkg/logger"
)

const (
	DefaultModel = openai.GPT3Dot5Turbo

	questionPrompt = `Genera una pregunta de reflexión breve para el usuario basada en la siguiente información.
La pregunta debe promover la introspección personal del usuario, relacionada con sus experiencias de vida, emociones, aprendizajes,
o mensajes que desea dejar a sus seres queridos. Asegúrate de que las preguntas sean simples y fáciles de responder.

Contexto del usuario:

El usuario está desarrollando su legado emocional y espiritual.
La aplicación permite crear perfiles personales, registrar experiencias significativas, y programar mensajes para familiares y seres queridos.
Los mensajes pueden ser consejos, sentimientos, secretos, deseos, y reflexiones personales.
El usuario puede asignar testigos y beneficiarios para recibir estos mensajes después de su fallecimiento.
Se busca fortalecer el vínculo emocional con los seres queridos.

Ejemplos de Preguntas:

¿Qué experiencia de vida te ha enseñado algo que quisieras compartir con tus seres queridos?
¿Cuál es un deseo importante que te gustaría expresar a alguien cercano?
¿Qué consejo te hubiera gustado recibir en algún momento difícil de tu vida?
¿Qué emoción sientes hoy que quisieras capturar y recordar?
¿Qué mensaje dejarías para alguien a quien amas profundamente?
¿Cómo te gustaría que te recordaran tus seres queridos?
¿Cuál es el aprendizaje más valioso que te ha dado la vida?
¿Qué secreto te gustaría que alguien importante en tu vida conociera?
¿Qué sentimiento deseas transmitirle a alguien especial en un futuro importante para esa persona?
¿Qué reflexión sobre tu propósito de vida te gustaría dejar como parte de tu legado?`

	emotionPrompt = `Analiza el siguiente texto y determina las dos emociones más predominantes, como "alegría", "tristeza", "amor", "nostalgia". No agregues explicaciones, solo responde con las emociones separadas por comas.
Texto: "%s"`
)

var ErrEmptyResponse = errors.New("generator returned no choices")

// Generator is satisfied by *OpenAIGenerator.
type Generator interface {
	GenerateQuestion(ctx context.Context, userID string) (string, error)
	GenerateEmotions(ctx context.Context, text string) ([]string, error)
}

type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

var _ Generator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(apiKey, model, baseURL string, log *logger.Logger) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: log.With("generator"),
	}
}

// GenerateQuestion returns one reflection question. The prompt is the same
// for every user; userID is only logged.
func (g *OpenAIGenerator) GenerateQuestion(ctx context.Context, userID string) (string, error) {
	answer, err := g.complete(ctx, questionPrompt)
	if err != nil {
		return "", fmt.Errorf("question generation failed: %w", err)
	}
	g.logger.Debug("question generated", "user_id", userID)
	return answer, nil
}

// GenerateEmotions returns the emotions named in the model's comma separated
// answer, in order. Blank items are dropped.
func (g *OpenAIGenerator) GenerateEmotions(ctx context.Context, text string) ([]string, error) {
	answer, err := g.complete(ctx, fmt.Sprintf(emotionPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("emotion generation failed: %w", err)
	}
	emotions := make([]string, 0, 2)
	for _, e := range strings.Split(answer, ",") {
		if e = strings.TrimSpace(e); e != "" {
			emotions = append(emotions, e)
		}
	}
	return emotions, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
