package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to a user; one user may hold several valid
// tokens at once (multi-device). Tokens are only ever deleted in bulk:
// on logout, on sensitive profile changes, or by the expiry sweeper.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  Token     – the signed refresh JWT as issued to the client.
//  ExpiresAt – expiration timestamp of the token.
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	Token     string    // refresh_tokens.token
	ExpiresAt time.Time // refresh_tokens.expires_at
	CreatedAt time.Time // refresh_tokens.created_at
}

// OneTimeCode models a row in the `one_time_codes` table. A code is a
// single-use credential with a 30 second validity window, used to open
// the SSE stream where custom headers cannot be sent. Any lookup that
// reaches validation removes the row, valid or not.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the code.
//  Code      – random code value, unique across the table.
//  ExpiresAt – hard expiry, 30 seconds after issuance.
//  CreatedAt – timestamp of creation.
type OneTimeCode struct {
	ID        uint64    // one_time_codes.id
	UserID    uint64    // one_time_codes.user_id
	Code      string    // one_time_codes.code
	ExpiresAt time.Time // one_time_codes.expires_at
	CreatedAt time.Time // one_time_codes.created_at
}

// APIKey models a row in the optional `api_keys` table used by the
// admin surface. Keys carry their own expiry and are matched by exact
// token value.
type APIKey struct {
	ID        uint64    // api_keys.id
	Token     string    // api_keys.token
	ExpiresAt time.Time // api_keys.expires_at
	CreatedAt time.Time // api_keys.created_at
}
