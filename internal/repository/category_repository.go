package repository

import (
	"context"
	"database/sql"
	"strings"

	"finapp-server/internal/model"
)

type CategoryRepo struct{ DB *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{DB: db} }

const categoryCols = "id,owner_id,label,color,type,goal,is_active,created_at,updated_at"

func scanCategory(row interface{ Scan(...any) error }) (model.Category, error) {
	var c model.Category
	err := row.Scan(&c.ID, &c.OwnerID, &c.Label, &c.Color, &c.Type, &c.Goal,
		&c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Create inserts a category for the owner and returns the stored row.
func (r *CategoryRepo) Create(ctx context.Context, c model.Category) (model.Category, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO categories (owner_id, label, color, type, goal, is_active) VALUES (?,?,?,?,?,?)",
		c.OwnerID, c.Label, c.Color, c.Type, c.Goal, c.Active)
	if err != nil {
		return model.Category{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Category{}, err
	}
	return r.GetByID(ctx, uint64(id), c.OwnerID)
}

// GetByID fetches one category scoped to its owner; a row owned by
// someone else is indistinguishable from a missing one.
func (r *CategoryRepo) GetByID(ctx context.Context, id, ownerID uint64) (model.Category, error) {
	c, err := scanCategory(r.DB.QueryRowContext(ctx,
		"SELECT "+categoryCols+" FROM categories WHERE id=? AND owner_id=? LIMIT 1", id, ownerID))
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ListByOwner returns the owner's categories, optionally only active ones.
func (r *CategoryRepo) ListByOwner(ctx context.Context, ownerID uint64, activeOnly bool) ([]model.Category, error) {
	q := "SELECT " + categoryCols + " FROM categories WHERE owner_id=?"
	if activeOnly {
		q += " AND is_active=1"
	}
	q += " ORDER BY id"
	rows, err := r.DB.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByIDs resolves a set of category ids scoped to the owner. Ids that
// do not exist (or belong to another user) are silently absent from the
// result; callers decide whether that is an error.
func (r *CategoryRepo) GetByIDs(ctx context.Context, ownerID uint64, ids []uint64) ([]model.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+categoryCols+" FROM categories WHERE owner_id=? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update applies non-nil fields to a category owned by ownerID.
func (r *CategoryRepo) Update(ctx context.Context, id, ownerID uint64, label, color *string, typ *model.CategoryType, goal *string, active *bool) (model.Category, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 7)
	if label != nil {
		sets = append(sets, "label=?")
		args = append(args, *label)
	}
	if color != nil {
		sets = append(sets, "color=?")
		args = append(args, *color)
	}
	if typ != nil {
		sets = append(sets, "type=?")
		args = append(args, *typ)
	}
	if goal != nil {
		sets = append(sets, "goal=?")
		args = append(args, *goal)
	}
	if active != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *active)
	}
	if len(sets) > 0 {
		args = append(args, id, ownerID)
		res, err := r.DB.ExecContext(ctx,
			"UPDATE categories SET "+strings.Join(sets, ",")+" WHERE id=? AND owner_id=?", args...)
		if err != nil {
			return model.Category{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Either missing or not ours; confirm before reporting not found.
			if _, err := r.GetByID(ctx, id, ownerID); err != nil {
				return model.Category{}, err
			}
		}
	}
	return r.GetByID(ctx, id, ownerID)
}

// Deactivate soft-deletes a category so existing entries keep their tag.
func (r *CategoryRepo) Deactivate(ctx context.Context, id, ownerID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE categories SET is_active=0 WHERE id=? AND owner_id=?", id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id, ownerID); err != nil {
			return err
		}
	}
	return nil
}
