package metadata

import (
	"time"

	"github.com/google/uuid"
)

// ItemID uniquely identifies an item in the tree. IDs are immutable for the
// lifetime of the item.
type ItemID string

// NewItemID generates a fresh random item identifier.
func NewItemID() ItemID {
	return ItemID(uuid.NewString())
}

// Kind discriminates between the two item variants. A single tagged entity
// replaces any file/folder subclassing.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// Item represents a node in the hierarchy, either a file or a folder.
//
// Invariants maintained by the tree engine and enforced (where possible) by
// the store:
//   - Name is non-empty and unique among siblings sharing the same parent.
//   - The tree is acyclic.
//   - A file's parent is always a folder, never nil.
//   - Path equals the join of ancestor names from the storage root to the
//     item itself after every successful mutation.
type Item struct {
	// ID is the immutable unique identifier.
	ID ItemID

	// Name is the entry name within the parent scope.
	Name string

	// Kind is either KindFile or KindFolder.
	Kind Kind

	// ParentID references the owning folder. Nil only for root-level folders.
	ParentID *ItemID

	// Path is the resolved storage path relative to the storage root,
	// e.g. "docs/a.txt". Recomputed by the engine on every rename/move,
	// never hand-edited.
	Path string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFolder reports whether the item is a folder.
func (i *Item) IsFolder() bool {
	return i.Kind == KindFolder
}

// IsFile reports whether the item is a file.
func (i *Item) IsFile() bool {
	return i.Kind == KindFile
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	out := *i
	if i.ParentID != nil {
		parent := *i.ParentID
		out.ParentID = &parent
	}
	return &out
}

// ListOptions narrows and orders a sibling listing.
//
// The zero value lists all children of the parent ordered by name ascending
// with the default page size.
type ListOptions struct {
	// Search filters by case-insensitive substring match on Name.
	Search string

	// OrderBy is one of "name", "created_at", "updated_at". A leading "-"
	// reverses the order. Empty means "name".
	OrderBy string

	// Limit caps the number of returned items. Zero means DefaultListLimit;
	// values above MaxListLimit are clamped.
	Limit int

	// Offset skips the first N matching items.
	Offset int
}

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// OrderField returns the bare ordering field and whether the order is
// descending.
func (o ListOptions) OrderField() (string, bool) {
	field := o.OrderBy
	desc := false
	if len(field) > 0 && field[0] == '-' {
		desc = true
		field = field[1:]
	}
	if field == "" {
		field = "name"
	}
	return field, desc
}

// EffectiveLimit applies the default and the cap to Limit.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		return MaxListLimit
	}
	return o.Limit
}

// ValidOrderField reports whether field is an allowed ordering column.
func ValidOrderField(field string) bool {
	switch field {
	case "name", "created_at", "updated_at":
		return true
	default:
		return false
	}
}
