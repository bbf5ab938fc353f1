package model

import "time"

// Entry models a single financial entry in the `entries` table. The
// monetary value is kept as a decimal string end to end (DECIMAL(18,2)
// in MySQL) so no float rounding ever touches it. Entries reference
// their categories through the `entry_categories` join table.
//
// Fields:
//  ID         – primary key identifier.
//  OwnerID    – owning user.
//  Value      – signed amount as a decimal string, e.g. "150.00".
//  Label      – free-form description.
//  Date       – the day the entry applies to (DATE column).
//  Categories – resolved category rows; populated by the repository
//               when loading, written through the join table on save.
//  CreatedAt  – timestamp of creation.
//  UpdatedAt  – timestamp of last update.
type Entry struct {
	ID         uint64     // entries.id
	OwnerID    uint64     // entries.owner_id
	Value      string     // entries.value
	Label      string     // entries.label
	Date       time.Time  // entries.entry_date
	Categories []Category // via entry_categories
	CreatedAt  time.Time  // entries.created_at
	UpdatedAt  time.Time  // entries.updated_at
}
