package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyapp/soy-backend/pkg/logger"
)

func newServer(t *testing.T, answer string, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		for _, m := range req.Messages {
			prompts = append(prompts, m.Content)
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-3.5-turbo",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": answer}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &prompts
}

func TestIsValidDeathCertificate(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"valid", "válido", true},
		{"valid with whitespace and case", "  Válido\n", true},
		{"invalid", "inválido", false},
		{"unexpected answer", "no lo sé", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, prompts := newServer(t, tt.answer, http.StatusOK)
			c := NewOpenAIClassifier("test-key", "", srv.URL, logger.Nop())

			got, err := c.IsValidDeathCertificate(context.Background(), "ACTA DE DEFUNCION")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.Len(t, *prompts, 1)
			assert.True(t, strings.HasSuffix((*prompts)[0], `Texto: "ACTA DE DEFUNCION"`))
		})
	}
}

func TestIsValidDeathCertificateAPIError(t *testing.T) {
	srv, _ := newServer(t, "", http.StatusInternalServerError)
	c := NewOpenAIClassifier("test-key", "", srv.URL, logger.Nop())

	_, err := c.IsValidDeathCertificate(context.Background(), "texto")
	assert.Error(t, err)
}
