package email

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyapp/soy-backend/pkg/logger"
)

func TestSendGridSendCustom(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendGridEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewSendGridService("sg-key", srv.URL, Sender{Address: "no-reply@soy.app", Name: "Soy"}, logger.Nop())
	err := svc.SendCustom(context.Background(), "testigo@example.com", "Asunto", "<p>Hola</p>")
	require.NoError(t, err)

	assert.Equal(t, "Asunto", body["subject"])
	from := body["from"].(map[string]interface{})
	assert.Equal(t, "no-reply@soy.app", from["email"])
	personalizations := body["personalizations"].([]interface{})
	to := personalizations[0].(map[string]interface{})["to"].([]interface{})
	assert.Equal(t, "testigo@example.com", to[0].(map[string]interface{})["email"])
	content := body["content"].([]interface{})
	assert.Equal(t, "text/html", content[0].(map[string]interface{})["type"])
	assert.Equal(t, "<p>Hola</p>", content[0].(map[string]interface{})["value"])
}

func TestSendGridRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"message":"sender not verified"}]}`))
	}))
	defer srv.Close()

	svc := NewSendGridService("sg-key", srv.URL, Sender{Address: "no-reply@soy.app"}, logger.Nop())
	err := svc.SendCustom(context.Background(), "a@b.c", "s", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSendCustomRequiresRecipient(t *testing.T) {
	svc := NewSendGridService("k", "", Sender{}, logger.Nop())
	assert.ErrorIs(t, svc.SendCustom(context.Background(), "", "s", "c"), ErrNoRecipient)

	smtp := NewSMTPService(SMTPConfig{Host: "localhost", Port: 25}, Sender{}, logger.Nop())
	assert.ErrorIs(t, smtp.SendCustom(context.Background(), "", "s", "c"), ErrNoRecipient)
}

func TestSMTPMessage(t *testing.T) {
	svc := NewSMTPService(SMTPConfig{Host: "localhost", Port: 25}, Sender{Address: "no-reply@soy.app", Name: "Soy"}, logger.Nop())
	m := svc.message("testigo@example.com", "Asunto", "<p>Hola</p>")

	assert.Equal(t, []string{"testigo@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Asunto"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
}
