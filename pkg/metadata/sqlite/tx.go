package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

const itemColumns = "id, name, kind, parent_id, path, created_at, updated_at"

// sqliteTx implements metadata.Tx over a *sql.Tx.
type sqliteTx struct {
	tx  *sql.Tx
	ctx context.Context
}

func (t *sqliteTx) Get(id metadata.ItemID) (*metadata.Item, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT "+itemColumns+" FROM items WHERE id = ?", string(id))

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &metadata.NotFoundError{ItemID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}

	return item, nil
}

func (t *sqliteTx) Insert(item *metadata.Item) error {
	_, err := t.tx.ExecContext(t.ctx,
		"INSERT INTO items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		string(item.ID), item.Name, string(item.Kind), nullableID(item.ParentID),
		item.Path, item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	if err != nil {
		return t.mapConstraintError(err, item.ParentID, item.Name)
	}

	return nil
}

func (t *sqliteTx) Update(item *metadata.Item) error {
	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE items SET name = ?, kind = ?, parent_id = ?, path = ?, updated_at = ? WHERE id = ?",
		item.Name, string(item.Kind), nullableID(item.ParentID), item.Path,
		item.UpdatedAt.UTC(), string(item.ID))
	if err != nil {
		return t.mapConstraintError(err, item.ParentID, item.Name)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return &metadata.NotFoundError{ItemID: item.ID}
	}

	return nil
}

func (t *sqliteTx) Delete(id metadata.ItemID) error {
	// parent_id carries ON DELETE CASCADE, so descendant rows go with the
	// subtree root in this single statement.
	res, err := t.tx.ExecContext(t.ctx, "DELETE FROM items WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return &metadata.NotFoundError{ItemID: id}
	}

	return nil
}

func (t *sqliteTx) ChildByName(parentID *metadata.ItemID, name string) (*metadata.Item, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT "+itemColumns+" FROM items WHERE COALESCE(parent_id, '') = COALESCE(?, '') AND name = ?",
		nullableID(parentID), name)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up child: %w", err)
	}

	return item, nil
}

func (t *sqliteTx) Children(parentID *metadata.ItemID) ([]*metadata.Item, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT "+itemColumns+" FROM items WHERE COALESCE(parent_id, '') = COALESCE(?, '') ORDER BY name ASC",
		nullableID(parentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (t *sqliteTx) List(parentID *metadata.ItemID, opts metadata.ListOptions) ([]*metadata.Item, error) {
	field, desc := opts.OrderField()
	if !metadata.ValidOrderField(field) {
		return nil, fmt.Errorf("invalid order field %q", field)
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + itemColumns + " FROM items WHERE COALESCE(parent_id, '') = COALESCE(?, '')")
	args := []any{nullableID(parentID)}

	if opts.Search != "" {
		sb.WriteString(` AND lower(name) LIKE '%' || ? || '%' ESCAPE '\'`)
		args = append(args, escapeLike(strings.ToLower(opts.Search)))
	}

	sb.WriteString(" ORDER BY " + field)
	if desc {
		sb.WriteString(" DESC")
	} else {
		sb.WriteString(" ASC")
	}

	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, opts.EffectiveLimit(), opts.Offset)

	rows, err := t.tx.QueryContext(t.ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (t *sqliteTx) RewritePathPrefix(oldPrefix, newPrefix string) (int, error) {
	sep := string(filepath.Separator)

	// The subtree match uses substr rather than LIKE: LIKE compares ASCII
	// case-insensitively, which would drag a case-differing sibling's subtree
	// ("Docs/…" when rewriting "docs") into the rewrite. substr/length both
	// count characters, so the arithmetic stays consistent for multi-byte
	// names.
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE items SET path = ? || substr(path, length(?) + 1)
		 WHERE path = ? OR substr(path, 1, length(?) + 1) = ? || ?`,
		newPrefix, oldPrefix, oldPrefix, oldPrefix, oldPrefix, sep)
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite path prefix: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rewrite result: %w", err)
	}

	return int(affected), nil
}

// mapConstraintError translates SQLite constraint violations into domain
// errors. A unique violation on (parent, name) becomes a CollisionError
// carrying the ID of the item already holding the name.
func (t *sqliteTx) mapConstraintError(err error, parentID *metadata.ItemID, name string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		existing, lookupErr := t.ChildByName(parentID, name)
		if lookupErr == nil && existing != nil {
			return &metadata.CollisionError{ExistingID: existing.ID}
		}
		return &metadata.CollisionError{}
	}

	return fmt.Errorf("failed to write item: %w", err)
}

// scanner abstracts *sql.Row and *sql.Rows for scanItem.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*metadata.Item, error) {
	var (
		item      metadata.Item
		id, kind  string
		parent    sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&id, &item.Name, &kind, &parent, &item.Path, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	item.ID = metadata.ItemID(id)
	item.Kind = metadata.Kind(kind)
	item.CreatedAt = createdAt
	item.UpdatedAt = updatedAt
	if parent.Valid {
		parentID := metadata.ItemID(parent.String)
		item.ParentID = &parentID
	}

	return &item, nil
}

func collectItems(rows *sql.Rows) ([]*metadata.Item, error) {
	var items []*metadata.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

func nullableID(id *metadata.ItemID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

// escapeLike escapes the LIKE wildcard characters in a literal search term.
func escapeLike(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, "%", `\%`)
	term = strings.ReplaceAll(term, "_", `\_`)
	return term
}
