package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pinky-promise")
	require.NoError(t, err)
	require.NotEqual(t, "pinky-promise", hash)

	require.True(t, VerifyPassword(hash, "pinky-promise"))
	require.False(t, VerifyPassword(hash, "broken-promise"))
	require.False(t, VerifyPassword("", "pinky-promise"))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	_, err = GenerateToken(0)
	require.Error(t, err)
}

func TestGenerateReferralCode(t *testing.T) {
	code, err := GenerateReferralCode(8)
	require.NoError(t, err)
	require.Len(t, code, 8)
	for _, r := range code {
		require.True(t, strings.ContainsRune(referralAlphabet, r), "unexpected rune %q", r)
	}
}
