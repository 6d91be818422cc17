package generator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeGenerator struct {
	userID string
	text   string
	err    error
}

func (f *fakeGenerator) GenerateQuestion(_ context.Context, userID string) (string, error) {
	f.userID = userID
	return "¿Cómo te gustaría que te recordaran?", f.err
}

func (f *fakeGenerator) GenerateEmotions(_ context.Context, text string) ([]string, error) {
	f.text = text
	return []string{"amor", "nostalgia"}, f.err
}

func serve(f *fakeGenerator, method, path, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f).RegisterRoutes(&r.RouterGroup)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQuestion(t *testing.T) {
	f := &fakeGenerator{}
	w := serve(f, http.MethodGet, "/api/question?userId=U1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"question":"¿Cómo te gustaría que te recordaran?"}`, w.Body.String())
	assert.Equal(t, "U1", f.userID)
}

func TestQuestionErrors(t *testing.T) {
	w := serve(&fakeGenerator{}, http.MethodGet, "/api/question", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(&fakeGenerator{err: errors.New("openai down")}, http.MethodGet, "/api/question?userId=U1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEmotions(t *testing.T) {
	f := &fakeGenerator{}
	w := serve(f, http.MethodPost, "/api/emotions", `{"text":"Te extraño"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"emotions":["amor","nostalgia"]}`, w.Body.String())
	assert.Equal(t, "Te extraño", f.text)

	assert.Equal(t, http.StatusBadRequest, serve(f, http.MethodPost, "/api/emotions", `{}`).Code)
	assert.Equal(t, http.StatusInternalServerError,
		serve(&fakeGenerator{err: errors.New("openai down")}, http.MethodPost, "/api/emotions", `{"text":"x"}`).Code)
}
