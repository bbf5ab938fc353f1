package repository

import (
	"context"
	"database/sql"
	"time"
)

// APIKeyRepo checks bearer values on the admin surface against the
// `api_keys` table. Keys carry their own expiry.
type APIKeyRepo struct{ DB *sql.DB }

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo { return &APIKeyRepo{DB: db} }

// ValidKey reports whether an unexpired key with this exact token exists.
func (r *APIKeyRepo) ValidKey(ctx context.Context, token string, now time.Time) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM api_keys WHERE token=? AND expires_at > ? LIMIT 1",
		token, now).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
