package core

import "worldbuilder/pkg/domain"

// RecalculateTerrain merges the document's layer forest into its flat terrain
// cache for the affected vertex indices only. Layers are applied bottom-to-top
// in document order (base first); hidden items and their subtrees are skipped
// entirely. Each field of a higher layer's override replaces the accumulator
// field only when set, so a nil field reveals the value beneath it. A vertex
// with no override anywhere resolves to the all-nil entry.
//
// Cost is O(len(affected) × layer count); callers pass the minimal affected
// set computed from brush or line geometry, never the whole map.
func RecalculateTerrain(doc *LandscapeDocument, affected []uint32) {
	for _, idx := range affected {
		if int(idx) >= len(doc.TerrainCache) {
			continue
		}
		doc.SnapshotBase(idx)
		var acc TerrainEntry
		mergeInto(&acc, doc.Layers, idx)
		doc.TerrainCache[idx] = acc
	}
}

func mergeInto(acc *TerrainEntry, items []*LayerItem, idx uint32) {
	for _, it := range items {
		if !it.IsVisible {
			continue
		}
		switch it.Kind {
		case domain.KindGroup:
			mergeInto(acc, it.Children, idx)
		case domain.KindLayer:
			if entry, ok := it.Overrides[idx]; ok {
				*acc = acc.Overlay(entry)
			}
		}
	}
}
