// Package classifier decides whether extracted text is a death certificate.
package classifier

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

	verdictValid = "válido"

	promptTemplate = `Determina si el siguiente texto corresponde a un certificado de defunción válido. Responde únicamente con "válido" o "inválido".

Texto: "%s"`
)

var ErrEmptyResponse = errors.New("classifier returned no choices")

// Classifier returns a boolean verdict for certificate text.
type Classifier interface {
	IsValidDeathCertificate(ctx context.Context, text string) (bool, error)
}

type OpenAIClassifier struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

var _ Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a chat-completion classifier. baseURL overrides
// the API endpoint when non-empty.
func NewOpenAIClassifier(apiKey, model, baseURL string, log *logger.Logger) *OpenAIClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: log.With("classifier"),
	}
}

func (c *OpenAIClassifier) IsValidDeathCertificate(ctx context.Context, text string) (bool, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf(promptTemplate, text),
		}},
	})
	if err != nil {
		return false, fmt.Errorf("certificate classification failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, ErrEmptyResponse
	}

	verdict := normalize(resp.Choices[0].Message.Content)
	c.logger.Info("certificate classified", "verdict", verdict)
	return verdict == verdictValid, nil
}

func normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
