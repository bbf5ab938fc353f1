package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCodec() *TokenCodec {
	return NewTokenCodec("finapp-test", "access-secret", "refresh-secret", 15, 7)
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()
	codec := newTestCodec()
	now := time.Now().UTC()

	for _, kind := range []TokenKind{AccessToken, RefreshToken} {
		token, exp, err := codec.Issue(kind, "alice@example.com", 42, now)
		require.NoError(t, err)
		require.True(t, exp.After(now))

		claims, err := codec.Verify(token, kind)
		require.NoError(t, err)
		require.Equal(t, uint64(42), claims.UserID)
		require.Equal(t, "alice@example.com", claims.Subject)
		require.Equal(t, "finapp-test", claims.Issuer)
	}
}

// A refresh token must never verify under the access key, and vice
// versa: the two kinds are signed with independent secrets.
func TestVerify_CrossKindRejected(t *testing.T) {
	t.Parallel()
	codec := newTestCodec()
	now := time.Now().UTC()

	access, _, err := codec.Issue(AccessToken, "a@b.c", 1, now)
	require.NoError(t, err)
	refresh, _, err := codec.Issue(RefreshToken, "a@b.c", 1, now)
	require.NoError(t, err)

	_, err = codec.Verify(access, RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = codec.Verify(refresh, AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	codec := newTestCodec()

	// issued far enough in the past that even the refresh TTL is over
	token, _, err := codec.Issue(AccessToken, "a@b.c", 7, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)

	_, err = codec.Verify(token, AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()
	other := NewTokenCodec("someone-else", "access-secret", "refresh-secret", 15, 7)
	token, _, err := other.Issue(AccessToken, "a@b.c", 7, time.Now().UTC())
	require.NoError(t, err)

	_, err = newTestCodec().Verify(token, AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := newTestCodec().Verify(raw, AccessToken)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestVerify_MissingUserID(t *testing.T) {
	t.Parallel()
	codec := newTestCodec()
	token, _, err := codec.Issue(AccessToken, "a@b.c", 0, time.Now().UTC())
	require.NoError(t, err)

	_, err = codec.Verify(token, AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}
