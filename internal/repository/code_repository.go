package repository

import (
	"context"
	"database/sql"
	"time"

	"finapp-server/internal/model"
)

// CodeRepo persists single-use one-time codes used to bootstrap the SSE
// stream. Codes are consumed on lookup: the row is deleted whether or
// not it turns out to be expired, so a code can never be tried twice.
type CodeRepo struct{ DB *sql.DB }

func NewCodeRepo(db *sql.DB) *CodeRepo { return &CodeRepo{DB: db} }

// Store inserts a code row for its owner.
func (r *CodeRepo) Store(ctx context.Context, userID uint64, code string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO one_time_codes (user_id, code, expires_at) VALUES (?,?,?)",
		userID, code, exp)
	return err
}

// Exists reports whether a code value is already taken. Used by the
// collision-retry loop at generation time.
func (r *CodeRepo) Exists(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM one_time_codes WHERE code=? LIMIT 1", code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Consume looks a code up and deletes it in the same transaction,
// regardless of whether it is still valid. The caller checks expiry on
// the returned record. A missing code maps to ErrNotFound.
func (r *CodeRepo) Consume(ctx context.Context, code string) (model.OneTimeCode, error) {
	var rec model.OneTimeCode

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return rec, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		"SELECT id,user_id,code,expires_at,created_at FROM one_time_codes WHERE code=? LIMIT 1 FOR UPDATE",
		code).Scan(&rec.ID, &rec.UserID, &rec.Code, &rec.ExpiresAt, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM one_time_codes WHERE id=?", rec.ID); err != nil {
		return rec, err
	}
	if err := tx.Commit(); err != nil {
		return rec, err
	}
	return rec, nil
}
