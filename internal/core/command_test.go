package core

import (
	"testing"

	"worldbuilder/pkg/domain"
)

func TestCommandCodecRoundTrip(t *testing.T) {
	paint := &PaintTerrainCommand{
		M:       NewMeta("user-1", "doc-1"),
		LayerID: "layer-1",
		CenterX: 3,
		CenterY: 4,
		Radius:  2,
		Texture: 7,
	}
	entry := domain.TerrainEntry{Type: domain.Byte(1)}
	paint.Prev = overridePatch{10: &entry, 11: nil}

	payload, err := EncodeCommand(paint)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeCommand(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(*PaintTerrainCommand)
	if !ok {
		t.Fatalf("decoded wrong type %T", decoded)
	}
	if got.M.ID != paint.M.ID || got.LayerID != "layer-1" || got.Texture != 7 {
		t.Fatalf("fields lost: %+v", got)
	}
	if prev, ok := got.Prev[10]; !ok || prev == nil || *prev.Type != 1 {
		t.Fatalf("snapshot entry lost: %v", got.Prev)
	}
	if prev, ok := got.Prev[11]; !ok || prev != nil {
		t.Fatalf("nil snapshot entry must survive as nil, got %v", prev)
	}
}

func TestDecodeDeleteLayerWithSnapshot(t *testing.T) {
	del := &DeleteLayerCommand{
		M:       NewMeta("user-1", "doc-1"),
		LayerID: "layer-1",
		Removed: &RemovedItemSnapshot{Item: domain.NewLayer("layer-1", "Detail"), ParentID: "grp", Index: 2},
	}
	payload, err := EncodeCommand(del)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeCommand(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(*DeleteLayerCommand)
	if got.Removed == nil || got.Removed.Item.ID != "layer-1" || got.Removed.Index != 2 {
		t.Fatalf("removed snapshot lost: %+v", got.Removed)
	}
	// A decoded delete with its snapshot can derive its inverse immediately.
	if _, err := got.Inverse(); err != nil {
		t.Fatalf("inverse from serialized snapshot: %v", err)
	}
}

func TestDecodeUnknownKindFails(t *testing.T) {
	_, err := DecodeCommand([]byte(`{"kind":"teleport","payload":{}}`))
	if !domain.IsArgument(err) {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestEncodeNilCommandFails(t *testing.T) {
	if _, err := EncodeCommand(nil); !domain.IsArgument(err) {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestRegenerateIDChangesOnlyID(t *testing.T) {
	meta := NewMeta("user-1", "doc-1")
	id := meta.ID
	meta.RegenerateID()
	if meta.ID == id {
		t.Fatal("id should change")
	}
	if meta.UserID != "user-1" || meta.DocumentID != "doc-1" {
		t.Fatal("other fields must be preserved")
	}
}
