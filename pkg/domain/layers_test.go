package domain

import "testing"

func buildTree() []*LayerItem {
	base := NewLayer("base", "Base")
	base.IsBase = true
	group := NewGroup("grp", "Roads")
	group.Children = []*LayerItem{NewLayer("road-1", "Main Road")}
	top := NewLayer("top", "Detail")
	items := []*LayerItem{base, group, top}
	Renumber(items)
	return items
}

func TestFindItemRecursesGroups(t *testing.T) {
	items := buildTree()
	if FindItem(items, "road-1") == nil {
		t.Fatal("expected to find nested layer")
	}
	if FindItem(items, "missing") != nil {
		t.Fatal("expected nil for unknown id")
	}
}

func TestParentOf(t *testing.T) {
	items := buildTree()
	parent, index, ok := ParentOf(items, "road-1")
	if !ok || parent != "grp" || index != 0 {
		t.Fatalf("got parent=%q index=%d ok=%v", parent, index, ok)
	}
	parent, index, ok = ParentOf(items, "top")
	if !ok || parent != "" || index != 2 {
		t.Fatalf("root item: got parent=%q index=%d ok=%v", parent, index, ok)
	}
}

func TestRemoveThenInsertRestoresPosition(t *testing.T) {
	items := buildTree()
	removed, parentID, index, ok := RemoveItem(&items, "road-1")
	if !ok || removed.ID != "road-1" || parentID != "grp" || index != 0 {
		t.Fatalf("remove: got %v %q %d %v", removed, parentID, index, ok)
	}
	if FindItem(items, "road-1") != nil {
		t.Fatal("item still present after removal")
	}
	if err := InsertItem(&items, removed, parentID, index); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	parent, idx, _ := ParentOf(items, "road-1")
	if parent != "grp" || idx != 0 {
		t.Fatalf("reinsert landed at parent=%q index=%d", parent, idx)
	}
}

func TestInsertClampsIndex(t *testing.T) {
	items := buildTree()
	if err := InsertItem(&items, NewLayer("extra", "Extra"), "", 99); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if items[len(items)-1].ID != "extra" {
		t.Fatal("out-of-range index should append at the end")
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	items := buildTree()
	err := InsertItem(&items, NewLayer("top", "Dup"), "", 0)
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestInsertIntoLayerFails(t *testing.T) {
	items := buildTree()
	err := InsertItem(&items, NewLayer("x", "X"), "top", 0)
	if !IsArgument(err) {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	items := buildTree()
	group := FindItem(items, "grp")
	cp := group.Clone()
	cp.Children[0].Name = "changed"
	if group.Children[0].Name != "Main Road" {
		t.Fatal("clone shares child nodes with the original")
	}
}

func TestOverrideKeysCoversSubtree(t *testing.T) {
	items := buildTree()
	road := FindItem(items, "road-1")
	road.Overrides = map[uint32]TerrainEntry{4: {Road: Byte(1)}}
	group := FindItem(items, "grp")
	keys := group.OverrideKeys()
	if len(keys) != 1 || keys[0] != 4 {
		t.Fatalf("expected [4], got %v", keys)
	}
}
