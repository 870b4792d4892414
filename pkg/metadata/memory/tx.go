package memory

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

// memTx implements metadata.Tx over a plain item map.
type memTx struct {
	items           map[metadata.ItemID]*metadata.Item
	caseInsensitive bool
	readOnly        bool
}

func (t *memTx) Get(id metadata.ItemID) (*metadata.Item, error) {
	item, ok := t.items[id]
	if !ok {
		return nil, &metadata.NotFoundError{ItemID: id}
	}
	return item.Clone(), nil
}

func (t *memTx) Insert(item *metadata.Item) error {
	if t.readOnly {
		return errReadOnlyTx
	}

	if _, exists := t.items[item.ID]; exists {
		return fmt.Errorf("item %s already exists", item.ID)
	}

	if existing := t.findSibling(item.ParentID, item.Name, ""); existing != nil {
		return &metadata.CollisionError{ExistingID: existing.ID}
	}

	t.items[item.ID] = item.Clone()
	return nil
}

func (t *memTx) Update(item *metadata.Item) error {
	if t.readOnly {
		return errReadOnlyTx
	}

	if _, ok := t.items[item.ID]; !ok {
		return &metadata.NotFoundError{ItemID: item.ID}
	}

	if existing := t.findSibling(item.ParentID, item.Name, item.ID); existing != nil {
		return &metadata.CollisionError{ExistingID: existing.ID}
	}

	t.items[item.ID] = item.Clone()
	return nil
}

func (t *memTx) Delete(id metadata.ItemID) error {
	if t.readOnly {
		return errReadOnlyTx
	}

	if _, ok := t.items[id]; !ok {
		return &metadata.NotFoundError{ItemID: id}
	}

	// Ownership cascade: collect the whole subtree before deleting anything
	// so partial deletion cannot occur.
	doomed := []metadata.ItemID{id}
	for cursor := 0; cursor < len(doomed); cursor++ {
		for childID, child := range t.items {
			if child.ParentID != nil && *child.ParentID == doomed[cursor] {
				doomed = append(doomed, childID)
			}
		}
	}

	for _, victim := range doomed {
		delete(t.items, victim)
	}

	return nil
}

func (t *memTx) ChildByName(parentID *metadata.ItemID, name string) (*metadata.Item, error) {
	if item := t.findSibling(parentID, name, ""); item != nil {
		return item.Clone(), nil
	}
	return nil, nil
}

func (t *memTx) Children(parentID *metadata.ItemID) ([]*metadata.Item, error) {
	children := t.childrenOf(parentID)
	sort.Slice(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})
	return children, nil
}

func (t *memTx) List(parentID *metadata.ItemID, opts metadata.ListOptions) ([]*metadata.Item, error) {
	field, desc := opts.OrderField()
	if !metadata.ValidOrderField(field) {
		return nil, fmt.Errorf("invalid order field %q", field)
	}

	children := t.childrenOf(parentID)

	if opts.Search != "" {
		term := strings.ToLower(opts.Search)
		filtered := children[:0]
		for _, child := range children {
			if strings.Contains(strings.ToLower(child.Name), term) {
				filtered = append(filtered, child)
			}
		}
		children = filtered
	}

	sort.Slice(children, func(i, j int) bool {
		var less bool
		switch field {
		case "created_at":
			less = children[i].CreatedAt.Before(children[j].CreatedAt)
		case "updated_at":
			less = children[i].UpdatedAt.Before(children[j].UpdatedAt)
		default:
			less = children[i].Name < children[j].Name
		}
		if desc {
			return !less
		}
		return less
	})

	if opts.Offset >= len(children) {
		return nil, nil
	}
	children = children[opts.Offset:]

	if limit := opts.EffectiveLimit(); len(children) > limit {
		children = children[:limit]
	}

	return children, nil
}

func (t *memTx) RewritePathPrefix(oldPrefix, newPrefix string) (int, error) {
	if t.readOnly {
		return 0, errReadOnlyTx
	}

	sep := string(filepath.Separator)
	rewritten := 0

	for _, item := range t.items {
		switch {
		case item.Path == oldPrefix:
			item.Path = newPrefix
			rewritten++
		case strings.HasPrefix(item.Path, oldPrefix+sep):
			item.Path = newPrefix + item.Path[len(oldPrefix):]
			rewritten++
		}
	}

	return rewritten, nil
}

// findSibling returns the child of parentID named name, ignoring excludeID.
func (t *memTx) findSibling(parentID *metadata.ItemID, name string, excludeID metadata.ItemID) *metadata.Item {
	for _, item := range t.items {
		if item.ID == excludeID {
			continue
		}
		if !sameParent(item.ParentID, parentID) {
			continue
		}
		if t.sameName(item.Name, name) {
			return item
		}
	}
	return nil
}

func (t *memTx) childrenOf(parentID *metadata.ItemID) []*metadata.Item {
	var children []*metadata.Item
	for _, item := range t.items {
		if sameParent(item.ParentID, parentID) {
			children = append(children, item.Clone())
		}
	}
	return children
}

func (t *memTx) sameName(a, b string) bool {
	if t.caseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func sameParent(a, b *metadata.ItemID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
