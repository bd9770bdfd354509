package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	a, err := GenerateAPIKey()
	require.NoError(t, err)
	b, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "frc_"))
	assert.NotEqual(t, a, b)
	assert.Greater(t, len(a), KeyPrefixLen)
}

func TestPrefix(t *testing.T) {
	raw, err := GenerateAPIKey()
	require.NoError(t, err)

	prefix, err := Prefix(raw)
	require.NoError(t, err)
	assert.Len(t, prefix, KeyPrefixLen)
	assert.Equal(t, raw[:KeyPrefixLen], prefix)

	_, err = Prefix("frc_x")
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestHashAndVerify(t *testing.T) {
	raw, err := GenerateAPIKey()
	require.NoError(t, err)

	hash, err := HashAPIKey(raw)
	require.NoError(t, err)
	assert.NotContains(t, hash, raw, "raw key must not appear in the stored verifier")

	key := &APIKey{KeyHash: hash}
	assert.True(t, key.Verify(raw))
	assert.False(t, key.Verify(raw+"x"))
	assert.False(t, key.Verify(""))
}
