package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("s3cret-passphrase")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, verifyPassword(hash, "s3cret-passphrase"))
	assert.False(t, verifyPassword(hash, "wrong"))
	assert.False(t, verifyPassword(hash, ""))
}

func TestHashPasswordSaltsEveryHash(t *testing.T) {
	h1, err := hashPassword("same password")
	require.NoError(t, err)
	h2, err := hashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, verifyPassword(h1, "same password"))
	assert.True(t, verifyPassword(h2, "same password"))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	assert.False(t, verifyPassword("", "password"))
	assert.False(t, verifyPassword("not-a-hash", "password"))
	assert.False(t, verifyPassword("$argon2id$v=19$garbage", "password"))
}

func TestGenerateRandomToken(t *testing.T) {
	t1, err := generateRandomToken()
	require.NoError(t, err)
	t2, err := generateRandomToken()
	require.NoError(t, err)

	assert.NotEmpty(t, t1)
	assert.NotEqual(t, t1, t2)
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, hashToken("abc"), hashToken("abc"))
	assert.NotEqual(t, hashToken("abc"), hashToken("abd"))
	assert.Len(t, hashToken("abc"), 64)
}
