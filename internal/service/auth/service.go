package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/service/audit"
	"github.com/soyapp/soy-backend/pkg/auth"
	"github.com/soyapp/soy-backend/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked, please try again later")
)

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
)

// Operator is a dashboard account. Operators are provisioned in configuration
// with a bcrypt password hash.
type Operator struct {
	Email        string
	PasswordHash string
}

type Service struct {
	operators map[string]string
	hasher    security.PasswordHasher
	jwtSvc    auth.JWTService
	attempts  *cache.Cache
	auditor   *audit.Service
}

func NewService(operators []Operator, hasher security.PasswordHasher, jwtSvc auth.JWTService, auditor *audit.Service) *Service {
	byEmail := make(map[string]string, len(operators))
	for _, op := range operators {
		byEmail[normalize(op.Email)] = op.PasswordHash
	}
	return &Service{
		operators: byEmail,
		hasher:    hasher,
		jwtSvc:    jwtSvc,
		attempts:  cache.New(lockoutDuration, 2*lockoutDuration),
		auditor:   auditor,
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	email = normalize(email)

	if n, ok := s.attempts.Get(email); ok && n.(int) >= maxLoginAttempts {
		return nil, ErrAccountLocked
	}

	hash, ok := s.operators[email]
	if !ok {
		s.recordFailure(email)
		return nil, ErrInvalidCredentials
	}
	match, err := s.hasher.Matches(hash, password)
	if err != nil {
		return nil, fmt.Errorf("operator %s has a malformed password hash: %w", email, err)
	}
	if !match {
		s.recordFailure(email)
		return nil, ErrInvalidCredentials
	}
	s.attempts.Delete(email)

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	_ = s.auditor.Log(audit.WithActor(ctx, email), model.AuditActionLogin, model.AuditEntityOperator, email, nil)

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	}, nil
}

func (s *Service) ValidateToken(_ context.Context, token string) (*model.OperatorClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if _, ok := s.operators[normalize(claims.Email)]; !ok {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

// recordFailure counts failed attempts. The window restarts with the first
// failure after the previous one expired.
func (s *Service) recordFailure(email string) {
	if err := s.attempts.Add(email, 1, cache.DefaultExpiration); err != nil {
		_ = s.attempts.Increment(email, 1)
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
