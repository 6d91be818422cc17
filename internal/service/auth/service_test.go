package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository/memory"
	"github.com/soyapp/soy-backend/internal/service/audit"
	"github.com/soyapp/soy-backend/pkg/auth"
	"github.com/soyapp/soy-backend/pkg/security"
)

func newService(t *testing.T) (*Service, *memory.AuditLog) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	jwtSvc, err := auth.NewJWTService("test-secret", time.Hour)
	require.NoError(t, err)

	auditLog := memory.NewAuditLog()
	svc := NewService([]Operator{{Email: "Ops@Soy.app", PasswordHash: string(hash)}}, security.NewBcryptHasher(bcrypt.MinCost), jwtSvc, audit.NewService(auditLog))
	return svc, auditLog
}

func TestLogin(t *testing.T) {
	svc, auditLog := newService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, " ops@soy.app ", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.InDelta(t, time.Hour.Seconds(), float64(resp.ExpiresIn), 5)

	claims, err := svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops@soy.app", claims.Email)

	logs, err := auditLog.List(ctx, model.AuditFilter{Action: model.AuditActionLogin})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "ops@soy.app", logs[0].Actor)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Login(context.Background(), "ops@soy.app", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody@soy.app", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < maxLoginAttempts; i++ {
		_, err := svc.Login(ctx, "ops@soy.app", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := svc.Login(ctx, "ops@soy.app", "s3cret")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestValidateTokenRejectsRemovedOperator(t *testing.T) {
	svc, _ := newService(t)
	jwtSvc, _ := auth.NewJWTService("test-secret", time.Hour)

	token, _, err := jwtSvc.GenerateAccessToken("former@soy.app")
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLoginMalformedHash(t *testing.T) {
	jwtSvc, err := auth.NewJWTService("test-secret", time.Hour)
	require.NoError(t, err)
	svc := NewService([]Operator{{Email: "ops@soy.app", PasswordHash: "plain-text"}}, security.NewBcryptHasher(bcrypt.MinCost), jwtSvc, audit.NewService(memory.NewAuditLog()))

	_, err = svc.Login(context.Background(), "ops@soy.app", "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
