package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/service/audit"
)

const ContextOperatorEmail = "operator_email"

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.OperatorClaims, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate requires an operator bearer token and records the operator as
// the audit actor of the request.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(ContextOperatorEmail, claims.Email)
		c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), claims.Email))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: msg,
		TraceID: c.GetString(ContextRequestID),
	})
}
