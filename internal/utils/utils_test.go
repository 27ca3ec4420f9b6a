package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewSessionToken(t *testing.T) {
	t.Run("Should return 64 hex characters", func(t *testing.T) {
		tok, err := NewSessionToken()
		require.NoError(t, err)
		assert.Len(t, tok, 64)
		assert.Regexp(t, "^[0-9a-f]+$", tok)
	})
	t.Run("Should not repeat tokens", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			tok, err := NewSessionToken()
			require.NoError(t, err)
			assert.False(t, seen[tok])
			seen[tok] = true
		}
	})
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not-a-hash", "s3cret"))
}
