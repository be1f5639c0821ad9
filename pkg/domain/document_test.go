package domain

import "testing"

func newDoc() *LandscapeDocument {
	doc := NewLandscapeDocument("doc-1", TerrainInfo{MapWidth: 4, MapHeight: 4, LandblockStride: 8})
	base := NewLayer("base", "Base")
	base.IsBase = true
	doc.Layers = []*LayerItem{base}
	return doc
}

func TestBlobRoundTrip(t *testing.T) {
	doc := newDoc()
	doc.TerrainCache[5] = TerrainEntry{Type: Byte(3)}
	doc.StaticObjects["obj-1"] = StaticObject{ID: "obj-1", WeenieID: 42, Landblock: 0}
	doc.BumpVersion()

	blob, err := doc.MarshalBlob()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalDocumentBlob(blob)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Version != 1 || got.ID != "doc-1" {
		t.Fatalf("header mismatch: %+v", got)
	}
	if !got.TerrainCache[5].Equal(doc.TerrainCache[5]) {
		t.Fatalf("terrain cache entry lost: %+v", got.TerrainCache[5])
	}
	if got.StaticObjects["obj-1"].WeenieID != 42 {
		t.Fatal("static object lost")
	}
	base, ok := got.BaseLayer()
	if !ok || base.ID != "base" {
		t.Fatal("base layer lost")
	}
}

func TestSnapshotBaseOncePerBatch(t *testing.T) {
	doc := newDoc()
	doc.TerrainCache[2] = TerrainEntry{Type: Byte(1)}

	doc.SnapshotBase(2)
	doc.TerrainCache[2] = TerrainEntry{Type: Byte(9)}
	doc.SnapshotBase(2) // same batch: must not overwrite
	if *doc.BaseTerrainCache[2].Type != 1 {
		t.Fatalf("base cache lost pre-batch value: %v", doc.BaseTerrainCache[2])
	}

	doc.CommitEditBatch()
	doc.SnapshotBase(2)
	if *doc.BaseTerrainCache[2].Type != 9 {
		t.Fatalf("new batch should re-snapshot: %v", doc.BaseTerrainCache[2])
	}
}

func TestBaseEntryReadsPreBatchValue(t *testing.T) {
	doc := newDoc()
	doc.TerrainCache[3] = TerrainEntry{Type: Byte(4), Road: Byte(1)}

	doc.SnapshotBase(3)
	doc.TerrainCache[3] = TerrainEntry{Type: Byte(7)}
	got := doc.BaseEntry(3)
	if got.Type == nil || *got.Type != 4 || got.Road == nil || *got.Road != 1 {
		t.Fatalf("expected the pre-batch entry, got %+v", got)
	}

	// The returned entry is a copy; mutating it must not reach the cache.
	got.Type = Byte(0)
	if *doc.BaseTerrainCache[3].Type != 4 {
		t.Fatal("BaseEntry must not alias the cache")
	}

	if !doc.BaseEntry(99).IsZero() {
		t.Fatal("out-of-range index should resolve to the zero entry")
	}
}

func TestFindLayerErrors(t *testing.T) {
	doc := newDoc()
	doc.Layers = append(doc.Layers, NewGroup("grp", "Group"))

	if _, err := doc.FindLayer("missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := doc.FindLayer("grp"); !IsArgument(err) {
		t.Fatalf("expected argument error for group id, got %v", err)
	}
	if layer, err := doc.FindLayer("base"); err != nil || layer.ID != "base" {
		t.Fatalf("expected base layer, got %v %v", layer, err)
	}
}
