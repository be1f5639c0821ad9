package core

import (
	"context"
	"errors"
	"testing"

	"worldbuilder/internal/blob"
	"worldbuilder/pkg/domain"
)

func snapshotDoc() *domain.LandscapeDocument {
	doc := domain.NewLandscapeDocument("doc-1", domain.TerrainInfo{MapWidth: 3, MapHeight: 3})
	base := domain.NewLayer("base", "Base")
	base.IsBase = true
	base.Overrides[4] = domain.TerrainEntry{Type: domain.Byte(2)}
	doc.Layers = []*domain.LayerItem{base}
	doc.Version = 7
	return doc
}

func TestExportImportSnapshot(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	doc := snapshotDoc()

	artifact, err := ExportSnapshot(ctx, doc, store)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if artifact.Key != "snapshots/doc-1/v7" {
		t.Fatalf("unexpected key %q", artifact.Key)
	}
	if artifact.DocumentID != "doc-1" || artifact.Version != 7 {
		t.Fatalf("artifact fields: %+v", artifact)
	}

	restored, err := ImportSnapshot(ctx, store, artifact.Key)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if restored.Version != 7 {
		t.Fatalf("version lost: %d", restored.Version)
	}
	layer, err := restored.FindLayer("base")
	if err != nil {
		t.Fatalf("find base: %v", err)
	}
	if got := layer.Overrides[4]; got.Type == nil || *got.Type != 2 {
		t.Fatalf("override lost: %+v", got)
	}
}

func TestExportSameVersionTwiceFails(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	doc := snapshotDoc()

	if _, err := ExportSnapshot(ctx, doc, store); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if _, err := ExportSnapshot(ctx, doc, store); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	doc.BumpVersion()
	if _, err := ExportSnapshot(ctx, doc, store); err != nil {
		t.Fatalf("export at new version: %v", err)
	}
}

func TestListSnapshotsFiltersByDocument(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	doc := snapshotDoc()
	other := domain.NewLandscapeDocument("doc-2", domain.TerrainInfo{MapWidth: 3, MapHeight: 3})

	if _, err := ExportSnapshot(ctx, doc, store); err != nil {
		t.Fatalf("export: %v", err)
	}
	doc.BumpVersion()
	if _, err := ExportSnapshot(ctx, doc, store); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := ExportSnapshot(ctx, other, store); err != nil {
		t.Fatalf("export other: %v", err)
	}

	artifacts, err := ListSnapshots(ctx, store, "doc-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts for doc-1, got %d", len(artifacts))
	}
}
