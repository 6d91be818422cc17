package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/soyapp/soy-backend/internal/model"
)

const issuer = "soy-backend"

var ErrInvalidToken = errors.New("invalid token")

type JWTService interface {
	GenerateAccessToken(email string) (token string, expiresAt time.Time, err error)
	ValidateToken(token string) (*model.OperatorClaims, error)
}

type hmacService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTService signs operator tokens with HS256.
func NewJWTService(secret string, expiry time.Duration) (JWTService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return &hmacService{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

func (s *hmacService) GenerateAccessToken(email string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)
	claims := model.OperatorClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *hmacService) ValidateToken(tokenString string) (*model.OperatorClaims, error) {
	claims := &model.OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
