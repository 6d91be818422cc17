package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/soyapp/soy-backend/internal/middleware"
	"github.com/soyapp/soy-backend/internal/repository/memory"
	"github.com/soyapp/soy-backend/internal/service/audit"
	"github.com/soyapp/soy-backend/internal/service/auth"
	jwtauth "github.com/soyapp/soy-backend/pkg/auth"
	"github.com/soyapp/soy-backend/pkg/security"
)

func setup(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidation()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	jwtSvc, err := jwtauth.NewJWTService("secret", time.Hour)
	require.NoError(t, err)

	svc := auth.NewService([]auth.Operator{{Email: "ops@soy.app", PasswordHash: string(hash)}}, security.NewBcryptHasher(bcrypt.MinCost), jwtSvc, audit.NewService(memory.NewAuditLog()))
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	NewHandler(svc).RegisterRoutes(&r.RouterGroup)
	return r
}

func postToken(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestToken(t *testing.T) {
	r := setup(t)

	w := postToken(r, `{"email":"ops@soy.app","password":"s3cret"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "access_token")

	w = postToken(r, `{"email":"ops@soy.app","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postToken(r, `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"email"`)
}
