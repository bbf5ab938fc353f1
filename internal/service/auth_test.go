package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finapp-server/internal/model"
	"finapp-server/internal/utils"
)

type fakeUsers struct {
	byEmail map[string]model.User
	byID    map[uint64]model.User
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.User{}, errors.New("no rows")
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, errors.New("no rows")
	}
	return u, nil
}

type storedToken struct {
	userID uint64
	exp    time.Time
}

type fakeTokens struct {
	rows map[string]storedToken
}

func newFakeTokens() *fakeTokens { return &fakeTokens{rows: map[string]storedToken{}} }

func (f *fakeTokens) Store(_ context.Context, userID uint64, hash string, exp time.Time) error {
	f.rows[hash] = storedToken{userID: userID, exp: exp}
	return nil
}

func (f *fakeTokens) Exists(_ context.Context, hash string, userID uint64) (bool, error) {
	row, ok := f.rows[hash]
	return ok && row.userID == userID, nil
}

func (f *fakeTokens) DeleteByOwner(_ context.Context, userID uint64) error {
	for h, row := range f.rows {
		if row.userID == userID {
			delete(f.rows, h)
		}
	}
	return nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for h, row := range f.rows {
		if !row.exp.After(now) {
			delete(f.rows, h)
			n++
		}
	}
	return n, nil
}

type fakeCodes struct {
	rows map[string]model.OneTimeCode
}

func newFakeCodes() *fakeCodes { return &fakeCodes{rows: map[string]model.OneTimeCode{}} }

func (f *fakeCodes) Store(_ context.Context, userID uint64, code string, exp time.Time) error {
	f.rows[code] = model.OneTimeCode{UserID: userID, Code: code, ExpiresAt: exp}
	return nil
}

func (f *fakeCodes) Exists(_ context.Context, code string) (bool, error) {
	_, ok := f.rows[code]
	return ok, nil
}

func newTestAuth(t *testing.T) (*AuthService, *fakeTokens, *fakeCodes) {
	t.Helper()
	hash, err := utils.HashPassword("hunter2", 4)
	require.NoError(t, err)

	alice := model.User{ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: hash}
	users := &fakeUsers{
		byEmail: map[string]model.User{alice.Email: alice},
		byID:    map[uint64]model.User{alice.ID: alice},
	}
	tokens := newFakeTokens()
	codes := newFakeCodes()
	codec := utils.NewTokenCodec("finapp-test", "ak", "rk", 15, 7)
	return NewAuthService(users, tokens, codes, codec), tokens, codes
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()
	auth, tokens, _ := newTestAuth(t)

	res, err := auth.Login(context.Background(), "alice@example.com", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	require.Equal(t, uint64(1), res.User.ID)
	// refresh token is on record, stored hashed
	require.Len(t, tokens.rows, 1)
	_, raw := tokens.rows[res.RefreshToken]
	require.False(t, raw)
}

// Unknown email and wrong password must be indistinguishable.
func TestLogin_UniformFailure(t *testing.T) {
	t.Parallel()
	auth, _, _ := newTestAuth(t)

	_, errUnknown := auth.Login(context.Background(), "nobody@example.com", "hunter2")
	_, errWrongPw := auth.Login(context.Background(), "alice@example.com", "wrong")
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPw, ErrInvalidCredentials)
	require.Equal(t, errUnknown, errWrongPw)
}

func TestRefresh_IssuesAccessOnly(t *testing.T) {
	t.Parallel()
	auth, _, _ := newTestAuth(t)

	login, err := auth.Login(context.Background(), "alice@example.com", "hunter2")
	require.NoError(t, err)

	res, err := auth.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	// the refresh token is reused, not rotated
	require.Empty(t, res.RefreshToken)

	// and can be used again
	_, err = auth.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
}

// A cryptographically valid refresh token that has been revoked
// server-side must be rejected: revocation wins over signature.
func TestRefresh_RevokedTokenRejected(t *testing.T) {
	t.Parallel()
	auth, _, _ := newTestAuth(t)

	login, err := auth.Login(context.Background(), "alice@example.com", "hunter2")
	require.NoError(t, err)

	require.NoError(t, auth.Logout(context.Background(), 1))

	_, err = auth.Refresh(context.Background(), login.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	t.Parallel()
	auth, _, _ := newTestAuth(t)

	login, err := auth.Login(context.Background(), "alice@example.com", "hunter2")
	require.NoError(t, err)

	_, err = auth.Refresh(context.Background(), login.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestIssueOneTimeCode(t *testing.T) {
	t.Parallel()
	auth, _, codes := newTestAuth(t)

	before := time.Now().UTC()
	res, err := auth.IssueOneTimeCode(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.Empty(t, res.RefreshToken)

	rec, ok := codes.rows[res.AccessToken]
	require.True(t, ok)
	require.Equal(t, uint64(1), rec.UserID)
	// 30 second window
	require.WithinDuration(t, before.Add(OneTimeCodeTTL), res.ExpiresAt, 2*time.Second)
}

func TestSweepExpiredTokens(t *testing.T) {
	t.Parallel()
	auth, tokens, _ := newTestAuth(t)

	// nothing on record: sweep is a no-op, not an error
	require.NoError(t, auth.SweepExpiredTokens(context.Background()))

	now := time.Now().UTC()
	require.NoError(t, tokens.Store(context.Background(), 1, "expired-hash", now.Add(-time.Minute)))
	require.NoError(t, tokens.Store(context.Background(), 1, "live-hash", now.Add(time.Hour)))

	require.NoError(t, auth.SweepExpiredTokens(context.Background()))
	require.Len(t, tokens.rows, 1)
	_, ok := tokens.rows["live-hash"]
	require.True(t, ok)
}
