package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"finapp-server/internal/model"
)

type EntryRepo struct{ DB *sql.DB }

func NewEntryRepo(db *sql.DB) *EntryRepo { return &EntryRepo{DB: db} }

// CreateBatch inserts the entries and their category links in one
// transaction. Categories must already be resolved and owner-scoped by
// the caller. Returns the stored entries with ids assigned.
func (r *EntryRepo) CreateBatch(ctx context.Context, entries []model.Entry) ([]model.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO entries (owner_id, value, label, entry_date) VALUES (?,?,?,?)",
			e.OwnerID, e.Value, e.Label, e.Date.Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		e.ID = uint64(id)
		for _, c := range e.Categories {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO entry_categories (entry_id, category_id) VALUES (?,?)",
				e.ID, c.ID); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// Search returns the owner's entries with entry_date in [start, end],
// categories resolved, ordered by date then id.
func (r *EntryRepo) Search(ctx context.Context, ownerID uint64, start, end time.Time) ([]model.Entry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,owner_id,value,label,entry_date,created_at,updated_at
		   FROM entries
		  WHERE owner_id=? AND entry_date BETWEEN ? AND ?
		  ORDER BY entry_date, id`,
		ownerID, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Entry
	ids := make([]uint64, 0)
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Value, &e.Label, &e.Date,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachCategories(ctx, entries, ids); err != nil {
		return nil, err
	}
	return entries, nil
}

// attachCategories loads the join table for the given entries in one query.
func (r *EntryRepo) attachCategories(ctx context.Context, entries []model.Entry, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT ec.entry_id, c.id, c.owner_id, c.label, c.color, c.type, c.goal, c.is_active, c.created_at, c.updated_at
		   FROM entry_categories ec
		   JOIN categories c ON c.id = ec.category_id
		  WHERE ec.entry_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	byEntry := make(map[uint64][]model.Category, len(ids))
	for rows.Next() {
		var entryID uint64
		var c model.Category
		if err := rows.Scan(&entryID, &c.ID, &c.OwnerID, &c.Label, &c.Color, &c.Type,
			&c.Goal, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return err
		}
		byEntry[entryID] = append(byEntry[entryID], c)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range entries {
		entries[i].Categories = byEntry[entries[i].ID]
	}
	return nil
}

// GetByID fetches one entry scoped to its owner, categories included.
func (r *EntryRepo) GetByID(ctx context.Context, id, ownerID uint64) (model.Entry, error) {
	var e model.Entry
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,owner_id,value,label,entry_date,created_at,updated_at
		   FROM entries WHERE id=? AND owner_id=? LIMIT 1`, id, ownerID).
		Scan(&e.ID, &e.OwnerID, &e.Value, &e.Label, &e.Date, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	list := []model.Entry{e}
	if err := r.attachCategories(ctx, list, []uint64{e.ID}); err != nil {
		return e, err
	}
	return list[0], nil
}

// Update rewrites the changed columns and, when categories is non-nil,
// replaces the join rows wholesale inside one transaction.
func (r *EntryRepo) Update(ctx context.Context, id, ownerID uint64, value, label *string, date *time.Time, categories []model.Category) (model.Entry, error) {
	if _, err := r.GetByID(ctx, id, ownerID); err != nil {
		return model.Entry{}, err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	sets := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if value != nil {
		sets = append(sets, "value=?")
		args = append(args, *value)
	}
	if label != nil {
		sets = append(sets, "label=?")
		args = append(args, *label)
	}
	if date != nil {
		sets = append(sets, "entry_date=?")
		args = append(args, date.Format("2006-01-02"))
	}
	if len(sets) > 0 {
		args = append(args, id, ownerID)
		if _, err := tx.ExecContext(ctx,
			"UPDATE entries SET "+strings.Join(sets, ",")+" WHERE id=? AND owner_id=?", args...); err != nil {
			return model.Entry{}, err
		}
	}
	if categories != nil {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM entry_categories WHERE entry_id=?", id); err != nil {
			return model.Entry{}, err
		}
		for _, c := range categories {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO entry_categories (entry_id, category_id) VALUES (?,?)", id, c.ID); err != nil {
				return model.Entry{}, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Entry{}, err
	}
	return r.GetByID(ctx, id, ownerID)
}

// Delete removes an entry owned by ownerID; deleting a missing row is a no-op.
func (r *EntryRepo) Delete(ctx context.Context, id, ownerID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM entries WHERE id=? AND owner_id=?", id, ownerID)
	return err
}

// CategoryTotal is one dashboard aggregation row.
type CategoryTotal struct {
	CategoryID uint64
	Label      string
	Type       model.CategoryType
	Total      string
}

// Totals aggregates the owner's entries over [start, end]: summed value
// per category plus overall income and expense totals. Uncategorized
// entries only contribute to the overall numbers.
func (r *EntryRepo) Totals(ctx context.Context, ownerID uint64, start, end time.Time) ([]CategoryTotal, string, string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT c.id, c.label, c.type, COALESCE(SUM(e.value),0)
		   FROM categories c
		   JOIN entry_categories ec ON ec.category_id = c.id
		   JOIN entries e ON e.id = ec.entry_id AND e.entry_date BETWEEN ? AND ?
		  WHERE c.owner_id=?
		  GROUP BY c.id, c.label, c.type
		  ORDER BY c.id`,
		start.Format("2006-01-02"), end.Format("2006-01-02"), ownerID)
	if err != nil {
		return nil, "", "", err
	}
	defer rows.Close()

	var perCategory []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.CategoryID, &t.Label, &t.Type, &t.Total); err != nil {
			return nil, "", "", err
		}
		perCategory = append(perCategory, t)
	}
	if err := rows.Err(); err != nil {
		return nil, "", "", err
	}

	var income, expense string
	err = r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN e.value >= 0 THEN e.value ELSE 0 END),0),
		        COALESCE(SUM(CASE WHEN e.value < 0 THEN -e.value ELSE 0 END),0)
		   FROM entries e
		  WHERE e.owner_id=? AND e.entry_date BETWEEN ? AND ?`,
		ownerID, start.Format("2006-01-02"), end.Format("2006-01-02")).Scan(&income, &expense)
	if err != nil {
		return nil, "", "", err
	}
	return perCategory, income, expense, nil
}
