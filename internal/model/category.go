package model

import "time"

// CategoryType distinguishes income categories from expense categories.
// The values are stored as strings in the `categories.type` column.
type CategoryType string

const (
	CategoryIn  CategoryType = "IN"
	CategoryOut CategoryType = "OUT"
)

// Category represents a row in the `categories` table. Categories are
// owned by a single user and label financial entries. A category is
// never hard-deleted while entries reference it; instead the Active
// flag is cleared (soft delete) so historical entries keep their tags.
//
// Fields:
//  ID        – primary key identifier.
//  OwnerID   – owning user.
//  Label     – display label, unique per owner in practice.
//  Color     – hex color used by the dashboard UI.
//  Type      – IN (income) or OUT (expense).
//  Goal      – optional monthly goal amount, stored as DECIMAL(18,2).
//  Active    – soft-delete flag; inactive categories are hidden from
//              pickers and from the chat assistant's category list.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Category struct {
	ID        uint64       // categories.id
	OwnerID   uint64       // categories.owner_id
	Label     string       // categories.label
	Color     string       // categories.color
	Type      CategoryType // categories.type
	Goal      *string      // categories.goal (nullable decimal string)
	Active    bool         // categories.is_active
	CreatedAt time.Time    // categories.created_at
	UpdatedAt time.Time    // categories.updated_at
}
