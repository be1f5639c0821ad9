package domain

// LayerItemKind discriminates the two members of the layer-item sum type.
type LayerItemKind string

const (
	// KindLayer is a content-bearing layer of sparse vertex overrides.
	KindLayer LayerItemKind = "layer"
	// KindGroup is a purely organizational container of child items.
	KindGroup LayerItemKind = "group"
)

// LayerItem is one node of the layer forest: either a layer holding sparse
// per-vertex overrides, or a group holding an ordered list of child items.
// Children are owned by their parent; no back-pointers are stored, so the
// structure is acyclic by construction. Paths are computed top-down on demand.
type LayerItem struct {
	Kind       LayerItemKind `json:"kind"`
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	IsVisible  bool          `json:"is_visible"`
	IsExported bool          `json:"is_exported"`
	Order      int           `json:"order"`

	// Layer-only fields.
	IsBase    bool                    `json:"is_base,omitempty"`
	Overrides map[uint32]TerrainEntry `json:"overrides,omitempty"`

	// Group-only field.
	Children []*LayerItem `json:"children,omitempty"`
}

// NewLayer constructs a visible, exported layer with an empty override set.
func NewLayer(id, name string) *LayerItem {
	return &LayerItem{
		Kind:       KindLayer,
		ID:         id,
		Name:       name,
		IsVisible:  true,
		IsExported: true,
		Overrides:  make(map[uint32]TerrainEntry),
	}
}

// NewGroup constructs a visible, exported group with no children.
func NewGroup(id, name string) *LayerItem {
	return &LayerItem{
		Kind:       KindGroup,
		ID:         id,
		Name:       name,
		IsVisible:  true,
		IsExported: true,
	}
}

// Clone returns a deep copy of the item and its subtree.
func (it *LayerItem) Clone() *LayerItem {
	if it == nil {
		return nil
	}
	cp := *it
	if it.Overrides != nil {
		cp.Overrides = make(map[uint32]TerrainEntry, len(it.Overrides))
		for k, v := range it.Overrides {
			cp.Overrides[k] = v.Clone()
		}
	}
	if it.Children != nil {
		cp.Children = make([]*LayerItem, len(it.Children))
		for i, child := range it.Children {
			cp.Children[i] = child.Clone()
		}
	}
	return &cp
}

// OverrideKeys returns every vertex index overridden anywhere in the subtree.
func (it *LayerItem) OverrideKeys() []uint32 {
	var out []uint32
	it.Walk(func(item *LayerItem) {
		for idx := range item.Overrides {
			out = append(out, idx)
		}
	})
	return out
}

// ContainsItem reports whether id names this item or any descendant.
func (it *LayerItem) ContainsItem(id string) bool {
	found := false
	it.Walk(func(item *LayerItem) {
		if item.ID == id {
			found = true
		}
	})
	return found
}

// Walk visits the item and every descendant in document order.
func (it *LayerItem) Walk(fn func(*LayerItem)) {
	fn(it)
	for _, child := range it.Children {
		child.Walk(fn)
	}
}

// Renumber rewrites the Order field of each item to its slice position. Slice
// order is authoritative; Order exists for serialized forms.
func Renumber(items []*LayerItem) {
	for i, item := range items {
		item.Order = i
	}
}

// FindItem locates id anywhere in the forest.
func FindItem(items []*LayerItem, id string) *LayerItem {
	for _, it := range items {
		if it.ID == id {
			return it
		}
		if it.Kind == KindGroup {
			if found := FindItem(it.Children, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// ParentOf returns the id of the group owning the item ("" for a root item)
// and the item's position within its parent.
func ParentOf(items []*LayerItem, id string) (parentID string, index int, ok bool) {
	return parentOf(items, "", id)
}

func parentOf(items []*LayerItem, owner, id string) (string, int, bool) {
	for i, it := range items {
		if it.ID == id {
			return owner, i, true
		}
		if it.Kind == KindGroup {
			if p, idx, ok := parentOf(it.Children, it.ID, id); ok {
				return p, idx, ok
			}
		}
	}
	return "", -1, false
}

// RemoveItem detaches id from the forest, returning the removed subtree along
// with the parent id and index it occupied so it can be restored later.
func RemoveItem(root *[]*LayerItem, id string) (removed *LayerItem, parentID string, index int, ok bool) {
	return removeItem(root, "", id)
}

func removeItem(items *[]*LayerItem, owner, id string) (*LayerItem, string, int, bool) {
	for i, it := range *items {
		if it.ID == id {
			*items = append((*items)[:i], (*items)[i+1:]...)
			Renumber(*items)
			return it, owner, i, true
		}
		if it.Kind == KindGroup {
			if removed, p, idx, ok := removeItem(&it.Children, it.ID, id); ok {
				return removed, p, idx, ok
			}
		}
	}
	return nil, "", -1, false
}

// InsertItem attaches item under the group named by parentID ("" for the
// root) at the given index, clamping the index to the valid range.
func InsertItem(root *[]*LayerItem, item *LayerItem, parentID string, index int) error {
	if FindItem(*root, item.ID) != nil {
		return ConflictError{Entity: "layer item", ID: item.ID}
	}
	target := root
	if parentID != "" {
		parent := FindItem(*root, parentID)
		if parent == nil {
			return NotFoundError{Entity: "layer group", ID: parentID}
		}
		if parent.Kind != KindGroup {
			return ArgumentError{Msg: "parent " + parentID + " is not a group"}
		}
		target = &parent.Children
	}
	if index < 0 {
		index = 0
	}
	if index > len(*target) {
		index = len(*target)
	}
	*target = append(*target, nil)
	copy((*target)[index+1:], (*target)[index:])
	(*target)[index] = item
	Renumber(*target)
	return nil
}
