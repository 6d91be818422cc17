package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 12
	DefaultCost    = bcrypt.DefaultCost
)

var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)

// PasswordHasher hashes and checks operator passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Matches reports whether password matches hash. A malformed hash is an
	// error, a wrong password is not.
	Matches(hash, password string) (bool, error)
}

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", ErrPasswordTooShort
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("password hashing failed: %w", err)
	}
	return string(out), nil
}

func (b *bcryptHasher) Matches(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
