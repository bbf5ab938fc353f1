package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// TokenKind selects which of the two signing keys a token is issued and
// verified under. Access and refresh tokens use independent secrets so a
// refresh token can never be replayed as an access token.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

// ErrInvalidToken is the single error returned for every verification
// failure: bad signature, wrong issuer, expired, malformed, or a missing
// user_id claim. Callers must not be able to tell these apart.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed token payload. Subject carries the user's email,
// UserID the numeric identifier used everywhere else in the system.
type Claims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the two token kinds. It is a pure
// function over its inputs and the clock; nothing is persisted here.
type TokenCodec struct {
	issuer     string
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenCodec builds a codec from the two independent secrets. TTLs
// follow the configuration convention: minutes for access tokens, days
// for refresh tokens.
func NewTokenCodec(issuer, accessKey, refreshKey string, accessTTLMin, refreshTTLDays int) *TokenCodec {
	return &TokenCodec{
		issuer:     issuer,
		accessKey:  []byte(accessKey),
		refreshKey: []byte(refreshKey),
		accessTTL:  time.Duration(accessTTLMin) * time.Minute,
		refreshTTL: time.Duration(refreshTTLDays) * 24 * time.Hour,
	}
}

func (c *TokenCodec) key(kind TokenKind) []byte {
	if kind == RefreshToken {
		return c.refreshKey
	}
	return c.accessKey
}

// TTL returns the configured lifetime for the given token kind.
func (c *TokenCodec) TTL(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue signs a token of the given kind for the user. It returns the
// serialized JWT and its expiration time.
func (c *TokenCodec) Issue(kind TokenKind, email string, userID uint64, now time.Time) (string, time.Time, error) {
	exp := now.Add(c.TTL(kind))
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key(kind))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, issuer and expiry for a token of the given
// kind and returns its claims. Every failure mode collapses into
// ErrInvalidToken.
func (c *TokenCodec) Verify(token string, kind TokenKind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.key(kind), nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
