package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/service/audit"
	apperrors "github.com/soyapp/soy-backend/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := perform(r, http.MethodGet, "/", "", map[string]string{HeaderXRequestID: "abc"})
	assert.Equal(t, "abc", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "abc", w.Body.String())

	w = perform(r, http.MethodGet, "/", "", nil)
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestErrorHandlerMapsAppErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/missing", func(c *gin.Context) { _ = c.Error(apperrors.NotFound("certificate", nil)) })
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })

	w := perform(r, http.MethodGet, "/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "certificate not found")

	w = perform(r, http.MethodGet, "/plain", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(TimeoutConfig{Duration: 10 * time.Millisecond}))
	r.GET("/slow", func(c *gin.Context) { <-c.Request.Context().Done() })

	w := perform(r, http.MethodGet, "/slow", "", nil)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestRateLimiterPerClient(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(RateLimiterConfig{RPS: 0.001, Burst: 1}).RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, req("10.0.0.1"))
	assert.Equal(t, http.StatusOK, req("10.0.0.2"))
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 8}))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/", "small", nil).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, perform(r, http.MethodPost, "/", "this body is too large", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig()))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/", "", map[string]string{"Origin": "https://admin.soy.app"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

type staticValidator struct{}

func (staticValidator) ValidateToken(_ context.Context, token string) (*model.OperatorClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &model.OperatorClaims{Email: "ops@soy.app"}, nil
}

func TestAuthenticate(t *testing.T) {
	r := gin.New()
	r.Use(NewAuthMiddleware(staticValidator{}).Authenticate())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, audit.ActorFromContext(c.Request.Context()))
	})

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/", "", map[string]string{"Authorization": "Basic x"}).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/", "", map[string]string{"Authorization": "Bearer bad"}).Code)

	w := perform(r, http.MethodGet, "/", "", map[string]string{"Authorization": "Bearer good"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops@soy.app", w.Body.String())
}

func TestValidationErrors(t *testing.T) {
	RegisterValidation()

	type body struct {
		Email string `json:"email" binding:"required,email"`
	}
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var b body
		err := c.ShouldBindJSON(&b)
		c.JSON(http.StatusBadRequest, ValidationErrors(err))
	})

	w := perform(r, http.MethodPost, "/", `{"email":"nope"}`, map[string]string{"Content-Type": "application/json"})
	assert.JSONEq(t, `[{"field":"email","message":"Invalid email format"}]`, w.Body.String())

	assert.Nil(t, ValidationErrors(errors.New("unexpected EOF")))
}
