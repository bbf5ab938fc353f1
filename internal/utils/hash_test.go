package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashRefreshToken_Deterministic(t *testing.T) {
	t.Parallel()
	a := HashRefreshToken("some-refresh-token")
	b := HashRefreshToken("some-refresh-token")
	require.Equal(t, a, b)
	require.Len(t, a, 64) // hex-encoded sha256
	require.NotEqual(t, a, HashRefreshToken("another-token"))
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	require.True(t, VerifyPassword(hash, "hunter2"))
	require.False(t, VerifyPassword(hash, "wrong"))
}
