package library

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	for _, p := range []string{"Secret123", "", "pässwörd with spaces", strings.Repeat("x", 200)} {
		hash, err := HashPassword(p)
		require.NoError(t, err)
		assert.True(t, CheckPassword(p, hash), "password %q", p)
		assert.False(t, CheckPassword(p+"!", hash), "password %q", p)
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	a, err := HashPassword("Secret123")
	require.NoError(t, err)
	b, err := HashPassword("Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	salt, digest, ok := strings.Cut(a, ":")
	require.True(t, ok)
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	require.NoError(t, err)
	assert.Len(t, rawSalt, 16)
	rawDigest, err := base64.StdEncoding.DecodeString(digest)
	require.NoError(t, err)
	assert.Len(t, rawDigest, 32)
}

func TestCheckPasswordRejectsMalformed(t *testing.T) {
	for _, stored := range []string{"", "nocolon", ":", "abc:", ":abc", "a:b:c", "!!!:AAAA", "AAAA:short"} {
		assert.False(t, CheckPassword("Secret123", stored), "stored %q", stored)
	}
}

func TestCheckPasswordAcceptsLegacyDigest(t *testing.T) {
	salt := []byte("0123456789abcdef")
	sum := sha256.Sum256(append(append([]byte{}, salt...), "Secret123"...))
	stored := base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(sum[:])

	assert.True(t, CheckPassword("Secret123", stored))
	assert.False(t, CheckPassword("Secret124", stored))
}
