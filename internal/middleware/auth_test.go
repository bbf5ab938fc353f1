package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"finapp-server/internal/model"
	"finapp-server/internal/repository"
	"finapp-server/internal/utils"
)

type fakeCodes struct {
	rows     map[string]model.OneTimeCode
	consumed []string
}

func (f *fakeCodes) Consume(_ context.Context, code string) (model.OneTimeCode, error) {
	f.consumed = append(f.consumed, code)
	rec, ok := f.rows[code]
	if !ok {
		return model.OneTimeCode{}, repository.ErrNotFound
	}
	delete(f.rows, code)
	return rec, nil
}

type fakeKeys struct{ valid map[string]bool }

func (f *fakeKeys) ValidKey(_ context.Context, token string, _ time.Time) (bool, error) {
	return f.valid[token], nil
}

func newTestResolver() (*Resolver, *utils.TokenCodec, *fakeCodes, *fakeKeys) {
	codec := utils.NewTokenCodec("finapp-test", "ak", "rk", 15, 7)
	codes := &fakeCodes{rows: map[string]model.OneTimeCode{}}
	keys := &fakeKeys{valid: map[string]bool{}}
	return NewResolver(codec, codes, keys), codec, codes, keys
}

// do runs one request through the resolver into a handler that echoes
// the resolved user id.
func do(t *testing.T, r *Resolver, req *http.Request, requirement Requirement) (*httptest.ResponseRecorder, uint64) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotUID uint64
	handler := r.Require(requirement)(func(c echo.Context) error {
		gotUID, _ = CurrentUserID(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, gotUID
}

func TestRequire_JWT(t *testing.T) {
	t.Parallel()
	r, codec, _, _ := newTestResolver()

	token, _, err := codec.Issue(utils.AccessToken, "a@b.c", 7, time.Now().UTC())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, uid := do(t, r, req, AuthJWT)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(7), uid)
}

func TestRequire_JWT_Rejections(t *testing.T) {
	t.Parallel()
	r, codec, _, _ := newTestResolver()

	refresh, _, err := codec.Issue(utils.RefreshToken, "a@b.c", 7, time.Now().UTC())
	require.NoError(t, err)

	cases := map[string]string{
		"no header":      "",
		"not bearer":     "Basic abc",
		"empty bearer":   "Bearer ",
		"garbage token":  "Bearer not-a-jwt",
		"refresh as jwt": "Bearer " + refresh,
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec, _ := do(t, r, req, AuthJWT)
		require.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

// The zero value of Requirement must behave as AuthJWT so an
// undeclared route fails closed.
func TestRequire_ZeroValueFailsClosed(t *testing.T) {
	t.Parallel()
	r, _, _, _ := newTestResolver()

	var zero Requirement
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ := do(t, r, req, zero)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequire_None(t *testing.T) {
	t.Parallel()
	r, _, _, _ := newTestResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, uid := do(t, r, req, AuthNone)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, uid)
}

func TestRequire_OneTimeCode(t *testing.T) {
	t.Parallel()
	r, _, codes, _ := newTestResolver()
	codes.rows["good"] = model.OneTimeCode{UserID: 5, Code: "good", ExpiresAt: time.Now().UTC().Add(30 * time.Second)}

	req := httptest.NewRequest(http.MethodGet, "/?code=good", nil)
	rec, uid := do(t, r, req, AuthOneTimeCode)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(5), uid)

	// the code was consumed; a replay fails
	req = httptest.NewRequest(http.MethodGet, "/?code=good", nil)
	rec, _ = do(t, r, req, AuthOneTimeCode)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

// An expired code is rejected, but its lookup still consumed it.
func TestRequire_OneTimeCode_ExpiredConsumed(t *testing.T) {
	t.Parallel()
	r, _, codes, _ := newTestResolver()
	codes.rows["stale"] = model.OneTimeCode{UserID: 5, Code: "stale", ExpiresAt: time.Now().UTC().Add(-time.Second)}

	req := httptest.NewRequest(http.MethodGet, "/?code=stale", nil)
	rec, _ := do(t, r, req, AuthOneTimeCode)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, []string{"stale"}, codes.consumed)
	require.Empty(t, codes.rows)
}

func TestRequire_OneTimeCode_MissingParam(t *testing.T) {
	t.Parallel()
	r, _, codes, _ := newTestResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ := do(t, r, req, AuthOneTimeCode)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, codes.consumed)
}

func TestRequire_APIKey(t *testing.T) {
	t.Parallel()
	r, _, _, keys := newTestResolver()
	keys.valid["secret-key"] = true

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec, _ := do(t, r, req, AuthAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec, _ = do(t, r, req, AuthAPIKey)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
