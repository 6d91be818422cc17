package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery")
	require.NoError(t, err)

	ok, err := h.Matches(hash, "correct horse battery")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Matches(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Matches("not-a-hash", "x")
	assert.Error(t, err)
}

func TestHashRejectsShortPasswords(t *testing.T) {
	_, err := NewBcryptHasher(0).Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
