package middleware // middleware provides reusable HTTP middleware functions

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"finapp-server/internal/model"
	"finapp-server/internal/utils"
)

// Requirement is the auth policy a route declares at registration time.
// The zero value is AuthJWT, so a route that never declares anything
// gets the most restrictive policy — fail closed, not open.
type Requirement int

const (
	AuthJWT Requirement = iota
	AuthNone
	AuthOneTimeCode
	AuthAPIKey
)

const userIDKey = "user_id"

// Stores the resolver needs; the repository types satisfy these.
type (
	CodeConsumer interface {
		Consume(ctx context.Context, code string) (model.OneTimeCode, error)
	}
	APIKeyChecker interface {
		ValidKey(ctx context.Context, token string, now time.Time) (bool, error)
	}
)

// Resolver is the per-request auth gate. It inspects the requirement a
// route was registered with, resolves caller identity, and stores it in
// the request context before the handler runs.
type Resolver struct {
	Codec *utils.TokenCodec
	Codes CodeConsumer
	Keys  APIKeyChecker
}

func NewResolver(codec *utils.TokenCodec, codes CodeConsumer, keys APIKeyChecker) *Resolver {
	return &Resolver{Codec: codec, Codes: codes, Keys: keys}
}

// Require returns the middleware enforcing the given requirement. All
// rejection paths answer 401 with the same body; the handler never runs
// without a resolved identity unless the route declared AuthNone.
func (r *Resolver) Require(req Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch req {
			case AuthNone:
				return next(c)
			case AuthOneTimeCode:
				return r.handleOneTimeCode(c, next)
			case AuthAPIKey:
				return r.handleAPIKey(c, next)
			default:
				return r.handleJWT(c, next)
			}
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func (r *Resolver) handleJWT(c echo.Context, next echo.HandlerFunc) error {
	raw, ok := bearerToken(c)
	if !ok {
		return unauthorized(c)
	}
	claims, err := r.Codec.Verify(raw, utils.AccessToken)
	if err != nil {
		return unauthorized(c)
	}
	c.Set(userIDKey, claims.UserID)
	return next(c)
}

// handleOneTimeCode authenticates via the `code` query parameter. The
// code is consumed — deleted — as soon as it is found, whether or not
// it is still valid, so no code is ever tried twice.
func (r *Resolver) handleOneTimeCode(c echo.Context, next echo.HandlerFunc) error {
	code := c.QueryParam("code")
	if code == "" {
		return unauthorized(c)
	}
	rec, err := r.Codes.Consume(c.Request().Context(), code)
	if err != nil {
		return unauthorized(c)
	}
	if time.Now().UTC().After(rec.ExpiresAt) {
		c.Logger().Warnf("one-time code for user %d expired at %s", rec.UserID, rec.ExpiresAt)
		return unauthorized(c)
	}
	c.Set(userIDKey, rec.UserID)
	return next(c)
}

func (r *Resolver) handleAPIKey(c echo.Context, next echo.HandlerFunc) error {
	raw, ok := bearerToken(c)
	if !ok {
		return unauthorized(c)
	}
	valid, err := r.Keys.ValidKey(c.Request().Context(), raw, time.Now().UTC())
	if err != nil || !valid {
		return unauthorized(c)
	}
	return next(c)
}

func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimPrefix(auth, "Bearer ")
	if raw == "" {
		return "", false
	}
	return raw, true
}

// CurrentUserID returns the identity the resolver stored for this
// request. ok is false on routes that ran without authentication; a
// handler that requires identity and finds none should answer 403 —
// that is a resolver-ordering bug, not a credential problem.
func CurrentUserID(c echo.Context) (uint64, bool) {
	v := c.Get(userIDKey)
	id, ok := v.(uint64)
	return id, ok
}
