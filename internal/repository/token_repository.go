package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists refresh tokens (single 'token_hash' column). Only a
// SHA-256 hash of the issued refresh JWT is stored; existence of the hash
// is what makes a cryptographically valid token acceptable on refresh.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token hash row for its owner.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// Exists reports whether the exact token hash is still on record for the
// owner. A revoked or swept token simply is not there anymore.
func (r *TokenRepo) Exists(ctx context.Context, tokenHash string, userID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM refresh_tokens WHERE token_hash=? AND user_id=? LIMIT 1",
		tokenHash, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteByOwner removes every refresh token belonging to the user.
// Used on logout and on sensitive profile changes (reAuth).
func (r *TokenRepo) DeleteByOwner(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}

// DeleteExpired removes exactly the rows with expires_at < now and
// returns how many were deleted. Zero rows is not an error.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
