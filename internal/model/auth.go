package model

import "github.com/golang-jwt/jwt/v5"

// OperatorClaims are carried by the bearer tokens issued to dashboard operators.
type OperatorClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
