// Package service contains the session state machine built on top of the
// token codec and the persistence layer.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"finapp-server/internal/model"
	"finapp-server/internal/utils"
)

// OneTimeCodeTTL is the hard validity window for SSE bootstrap codes.
const OneTimeCodeTTL = 30 * time.Second

var (
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// the two cases are indistinguishable to the caller on purpose.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is returned for every failed refresh: bad signature,
	// missing claim, revoked token, vanished user. One error, no oracle.
	ErrUnauthorized = errors.New("unauthorized")
)

// Stores the session manager needs. The repository types satisfy these.
type (
	UserStore interface {
		GetByEmail(ctx context.Context, email string) (model.User, error)
		GetByID(ctx context.Context, id uint64) (model.User, error)
	}
	RefreshTokenStore interface {
		Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
		Exists(ctx context.Context, tokenHash string, userID uint64) (bool, error)
		DeleteByOwner(ctx context.Context, userID uint64) error
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	}
	OneTimeCodeStore interface {
		Store(ctx context.Context, userID uint64, code string, exp time.Time) error
		Exists(ctx context.Context, code string) (bool, error)
	}
)

// UserView is the public projection of a user returned by auth flows.
type UserView struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResult is the auth payload shape shared by login, refresh,
// register and one-time-code issuance. On refresh the refresh token is
// empty: the existing one stays valid and is reused, not rotated. For
// one-time codes the code travels in the access-token slot.
type LoginResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         UserView  `json:"user"`
}

// AuthService orchestrates login, refresh, logout and one-time-code
// issuance. Access tokens are stateless; refresh tokens are capability
// tokens that must also exist server-side (as a hash) to be accepted.
type AuthService struct {
	users  UserStore
	tokens RefreshTokenStore
	codes  OneTimeCodeStore
	codec  *utils.TokenCodec
}

func NewAuthService(users UserStore, tokens RefreshTokenStore, codes OneTimeCodeStore, codec *utils.TokenCodec) *AuthService {
	return &AuthService{users: users, tokens: tokens, codes: codes, codec: codec}
}

// Login verifies the credentials and returns a fresh access+refresh
// pair. Unknown email and wrong password produce the identical error.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !utils.VerifyPassword(user.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}
	return s.IssuePair(ctx, user)
}

// IssuePair signs a new access+refresh token pair for the user and
// persists the refresh token hash. Also used after registration
// (auto-login) and after sensitive profile changes (reAuth).
func (s *AuthService) IssuePair(ctx context.Context, user model.User) (LoginResult, error) {
	now := time.Now().UTC()

	access, accessExp, err := s.codec.Issue(utils.AccessToken, user.Email, user.ID, now)
	if err != nil {
		return LoginResult{}, err
	}
	refresh, refreshExp, err := s.codec.Issue(utils.RefreshToken, user.Email, user.ID, now)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.tokens.Store(ctx, user.ID, utils.HashRefreshToken(refresh), refreshExp); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExp,
		User:         UserView{ID: user.ID, Username: user.Username, Email: user.Email},
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The token
// must verify under the refresh key AND its hash must still be on
// record for the claimed owner — revocation wins over signature. The
// refresh token itself is reused, not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	claims, err := s.codec.Verify(refreshToken, utils.RefreshToken)
	if err != nil {
		return LoginResult{}, ErrUnauthorized
	}

	ok, err := s.tokens.Exists(ctx, utils.HashRefreshToken(refreshToken), claims.UserID)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		// Cryptographically valid but not on record: already revoked, swept,
		// or a replay. Same answer as any other failure.
		log.Printf("auth: refresh for user %d with a valid token that is not on record", claims.UserID)
		return LoginResult{}, ErrUnauthorized
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return LoginResult{}, ErrUnauthorized
	}

	access, accessExp, err := s.codec.Issue(utils.AccessToken, user.Email, user.ID, time.Now().UTC())
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		AccessToken: access,
		ExpiresAt:   accessExp,
		User:        UserView{ID: user.ID, Username: user.Username, Email: user.Email},
	}, nil
}

// Logout revokes every refresh token owned by the user. Outstanding
// access tokens stay valid until their own expiry.
func (s *AuthService) Logout(ctx context.Context, userID uint64) error {
	return s.tokens.DeleteByOwner(ctx, userID)
}

// RevokeAll removes all refresh tokens for the user. Called on email or
// password changes before a fresh pair is issued.
func (s *AuthService) RevokeAll(ctx context.Context, userID uint64) error {
	return s.tokens.DeleteByOwner(ctx, userID)
}

// IssueOneTimeCode creates a single-use code for the user with a
// 30-second expiry, retrying on the (unlikely) uuid collision. The code
// is returned in the login-result shape, in the access-token slot.
func (s *AuthService) IssueOneTimeCode(ctx context.Context, userID uint64) (LoginResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return LoginResult{}, err
	}

	code := uuid.NewString()
	for {
		taken, err := s.codes.Exists(ctx, code)
		if err != nil {
			return LoginResult{}, err
		}
		if !taken {
			break
		}
		log.Printf("auth: one-time code collision for user %d, regenerating", userID)
		code = uuid.NewString()
	}

	exp := time.Now().UTC().Add(OneTimeCodeTTL)
	if err := s.codes.Store(ctx, userID, code, exp); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken: code,
		ExpiresAt:   exp,
		User:        UserView{ID: user.ID, Username: user.Username, Email: user.Email},
	}, nil
}

// SweepExpiredTokens purges refresh tokens past their expiry. Called by
// the periodic sweeper; finding nothing to delete is the normal case.
func (s *AuthService) SweepExpiredTokens(ctx context.Context) error {
	n, err := s.tokens.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("sweeper: deleted %d expired refresh token(s)", n)
	}
	return nil
}
