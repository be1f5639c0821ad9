package domain

import (
	"encoding/json"
	"fmt"
)

// DocumentTypeName identifies serialized landscape documents in the store.
const DocumentTypeName = "landscape"

// StaticObject is a placed scenery object anchored to a landblock.
type StaticObject struct {
	ID        string  `json:"id"`
	WeenieID  uint32  `json:"weenie_id"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
	RotW      float32 `json:"rot_w"`
	RotX      float32 `json:"rot_x"`
	RotY      float32 `json:"rot_y"`
	RotZ      float32 `json:"rot_z"`
	Landblock uint32  `json:"landblock"`
}

// LandscapeDocument is the aggregate root for one editable landscape: the
// ordered layer forest, the flat resolved terrain cache, the pre-edit base
// cache used to derive command inverses, and the placed static objects.
// Documents are created by CreateLandscapeDocumentCommand and mutated only
// through commands; Version increments on every mutation and backs optimistic
// staleness checks.
type LandscapeDocument struct {
	ID            string                  `json:"id"`
	Version       int64                   `json:"version"`
	Info          TerrainInfo             `json:"info"`
	Layers        []*LayerItem            `json:"layers"`
	StaticObjects map[string]StaticObject `json:"static_objects"`

	// TerrainCache is the post-merge resolved entry per vertex index.
	TerrainCache []TerrainEntry `json:"terrain_cache"`
	// BaseTerrainCache holds each vertex's resolved value as it stood before
	// the current edit batch first touched it. The engine derives command
	// inverses from per-command override snapshots, not from this cache; it
	// is maintained and serialized so renderers and exporters can diff a
	// batch's net effect against its starting point, read through BaseEntry.
	BaseTerrainCache []TerrainEntry `json:"base_terrain_cache"`

	batchTouched map[uint32]struct{}
}

// NewLandscapeDocument constructs an empty document with allocated caches.
// The mandatory base layer is added by the create-document command, not here.
func NewLandscapeDocument(id string, info TerrainInfo) *LandscapeDocument {
	n := info.VertexCount()
	return &LandscapeDocument{
		ID:               id,
		Info:             info,
		StaticObjects:    make(map[string]StaticObject),
		TerrainCache:     make([]TerrainEntry, n),
		BaseTerrainCache: make([]TerrainEntry, n),
	}
}

// BaseLayer returns the document's designated base layer.
func (d *LandscapeDocument) BaseLayer() (*LayerItem, bool) {
	var base *LayerItem
	for _, it := range d.Layers {
		it.Walk(func(item *LayerItem) {
			if item.Kind == KindLayer && item.IsBase {
				base = item
			}
		})
	}
	return base, base != nil
}

// FindLayer resolves id to a content-bearing layer.
func (d *LandscapeDocument) FindLayer(id string) (*LayerItem, error) {
	item := FindItem(d.Layers, id)
	if item == nil {
		return nil, NotFoundError{Entity: "layer", ID: id}
	}
	if item.Kind != KindLayer {
		return nil, ArgumentError{Msg: fmt.Sprintf("item %s is a group, not a layer", id)}
	}
	return item, nil
}

// BumpVersion advances the document's optimistic-concurrency version.
func (d *LandscapeDocument) BumpVersion() int64 {
	d.Version++
	return d.Version
}

// SnapshotBase copies the current resolved value for index into the base
// cache, once per edit batch. Later snapshots within the same batch are
// no-ops so the base cache keeps the true pre-batch value.
func (d *LandscapeDocument) SnapshotBase(index uint32) {
	if int(index) >= len(d.TerrainCache) {
		return
	}
	if d.batchTouched == nil {
		d.batchTouched = make(map[uint32]struct{})
	}
	if _, done := d.batchTouched[index]; done {
		return
	}
	d.batchTouched[index] = struct{}{}
	d.BaseTerrainCache[index] = d.TerrainCache[index].Clone()
}

// CommitEditBatch closes the current edit batch; the next recalculation will
// snapshot fresh pre-edit values.
func (d *LandscapeDocument) CommitEditBatch() {
	d.batchTouched = nil
}

// BaseEntry returns the pre-batch resolved value for index, so consumers can
// diff the current batch's net effect against its starting point. Indices
// outside the map resolve to the zero entry.
func (d *LandscapeDocument) BaseEntry(index uint32) TerrainEntry {
	if int(index) >= len(d.BaseTerrainCache) {
		return TerrainEntry{}
	}
	return d.BaseTerrainCache[index].Clone()
}

// MarshalBlob serializes the document to its opaque persisted form.
func (d *LandscapeDocument) MarshalBlob() ([]byte, error) {
	blob, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", d.ID, err)
	}
	return blob, nil
}

// UnmarshalDocumentBlob reconstructs a document from its persisted form.
func UnmarshalDocumentBlob(blob []byte) (*LandscapeDocument, error) {
	var doc LandscapeDocument
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if doc.StaticObjects == nil {
		doc.StaticObjects = make(map[string]StaticObject)
	}
	if n := int(doc.Info.VertexCount()); len(doc.TerrainCache) < n {
		grown := make([]TerrainEntry, n)
		copy(grown, doc.TerrainCache)
		doc.TerrainCache = grown
	}
	if n := int(doc.Info.VertexCount()); len(doc.BaseTerrainCache) < n {
		grown := make([]TerrainEntry, n)
		copy(grown, doc.BaseTerrainCache)
		doc.BaseTerrainCache = grown
	}
	return &doc, nil
}
