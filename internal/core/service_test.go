package core

import (
	"context"
	"strings"
	"sync"
	"testing"

	"worldbuilder/pkg/domain"
)

func TestApplyGroupRollsBackPersistenceOnFailure(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	docID, baseID := createDocument(t, svc, 3, 3)

	before, err := store.GetDocumentBlob(ctx, docID)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}

	good := &RenameLayerCommand{M: svc.NewMeta(docID), ItemID: baseID, Name: "Changed"}
	bad := &DeleteLayerCommand{M: svc.NewMeta(docID), LayerID: "missing"}
	if err := svc.Execute(ctx, good, bad); !domain.IsNotFound(err) {
		t.Fatalf("expected not found from the failing member, got %v", err)
	}

	after, err := store.GetDocumentBlob(ctx, docID)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("failed group must not reach the store")
	}
	if svc.UndoStack().UndoDepth() != 0 {
		t.Fatal("failed group must not be recorded for undo")
	}
}

func TestFailedGroupDoesNotLeakIntoCache(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	docID, baseID := createDocument(t, svc, 3, 3)

	rename := &RenameLayerCommand{M: svc.NewMeta(docID), ItemID: baseID, Name: "Leaked"}
	bad := &DeleteLayerCommand{M: svc.NewMeta(docID), LayerID: "missing"}
	if err := svc.Execute(ctx, rename, bad); !domain.IsNotFound(err) {
		t.Fatalf("expected not found from the failing member, got %v", err)
	}

	// The cached document must serve the committed state, not the partial
	// mutations the rolled-back group left behind.
	if got := domain.FindItem(docState(t, svc, docID).Layers, baseID).Name; got != "Test Map" {
		t.Fatalf("failed group's rename survived in the cache, got %q", got)
	}

	// A later unrelated action must not carry the failed edits to the store.
	paint := &PaintTerrainCommand{M: svc.NewMeta(docID), LayerID: baseID, CenterX: 0, CenterY: 0, Radius: 0, Texture: 1}
	if err := svc.Execute(ctx, paint); err != nil {
		t.Fatalf("paint: %v", err)
	}
	blob, err := store.GetDocumentBlob(ctx, docID)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if strings.Contains(string(blob), "Leaked") {
		t.Fatal("failed group's rename reached the store")
	}
}

func TestConcurrentWritersSerializePerDocument(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	docID, baseID := createDocument(t, svc, 9, 9)

	// Pin the document so the shared instance stays cached for the whole run.
	pin, err := svc.Cache().Rent(ctx, docID)
	if err != nil {
		t.Fatalf("rent: %v", err)
	}
	defer pin.Release()

	v0 := pin.Document().Version
	const writers = 4
	const paints = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < paints; i++ {
				paint := &PaintTerrainCommand{
					M:       svc.NewMeta(docID),
					LayerID: baseID,
					CenterX: uint32(w * 2),
					CenterY: uint32(i % 9),
					Radius:  0,
					Texture: uint8(w + 1),
				}
				if err := svc.ApplyGroup(ctx, []Command{paint}); err != nil {
					errs <- err
					return
				}
			}
			errs <- nil
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent paint: %v", err)
		}
	}
	if v := pin.Document().Version; v != v0+writers*paints {
		t.Fatalf("expected version %d after %d serialized paints, got %d", v0+writers*paints, writers*paints, v)
	}
}

func TestApplyGroupRejectsEmptyAndNil(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if err := svc.ApplyGroup(ctx, nil); !domain.IsArgument(err) {
		t.Fatalf("empty group: expected argument error, got %v", err)
	}
	if err := svc.ApplyGroup(ctx, []Command{nil}); !domain.IsArgument(err) {
		t.Fatalf("nil member: expected argument error, got %v", err)
	}
}

func TestApplyGroupHonorsCancellation(t *testing.T) {
	svc, _ := newTestService(t)
	docID, baseID := createDocument(t, svc, 3, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := &RenameLayerCommand{M: svc.NewMeta(docID), ItemID: baseID, Name: "X"}
	err := svc.ApplyGroup(ctx, []Command{cmd})
	if !domain.IsFailure(err) {
		t.Fatalf("expected failure wrapping cancellation, got %v", err)
	}
}

func TestGroupedUndoSpansDocuments(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	docA, baseA := createDocument(t, svc, 3, 3)
	docB, baseB := createDocument(t, svc, 3, 3)

	paintA := &PaintTerrainCommand{M: svc.NewMeta(docA), LayerID: baseA, CenterX: 0, CenterY: 0, Radius: 0, Texture: 1}
	paintB := &PaintTerrainCommand{M: svc.NewMeta(docB), LayerID: baseB, CenterX: 0, CenterY: 0, Radius: 0, Texture: 2}
	if err := svc.Execute(ctx, paintA, paintB); err != nil {
		t.Fatalf("grouped execute: %v", err)
	}
	if svc.UndoStack().UndoDepth() != 1 {
		t.Fatalf("one action, one undo group; depth=%d", svc.UndoStack().UndoDepth())
	}

	if err := svc.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got := cacheType(t, svc, docA, 0); got != nil {
		t.Fatalf("document A should be reverted, got %d", *got)
	}
	if got := cacheType(t, svc, docB, 0); got != nil {
		t.Fatalf("document B should be reverted, got %d", *got)
	}
}

func TestExecuteBumpsVersionPerCommand(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	docID, baseID := createDocument(t, svc, 3, 3)

	v0 := docState(t, svc, docID).Version
	paint := &PaintTerrainCommand{M: svc.NewMeta(docID), LayerID: baseID, CenterX: 0, CenterY: 0, Radius: 0, Texture: 1}
	if err := svc.Execute(ctx, paint); err != nil {
		t.Fatalf("paint: %v", err)
	}
	if v1 := docState(t, svc, docID).Version; v1 != v0+1 {
		t.Fatalf("expected version %d, got %d", v0+1, v1)
	}
}

func TestRedoInvalidatedByNewEdit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	docID, baseID := createDocument(t, svc, 3, 3)

	first := &PaintTerrainCommand{M: svc.NewMeta(docID), LayerID: baseID, CenterX: 0, CenterY: 0, Radius: 0, Texture: 1}
	if err := svc.Execute(ctx, first); err != nil {
		t.Fatalf("paint: %v", err)
	}
	if err := svc.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if svc.UndoStack().RedoDepth() != 1 {
		t.Fatal("expected a redoable group")
	}
	second := &PaintTerrainCommand{M: svc.NewMeta(docID), LayerID: baseID, CenterX: 1, CenterY: 1, Radius: 0, Texture: 2}
	if err := svc.Execute(ctx, second); err != nil {
		t.Fatalf("paint: %v", err)
	}
	if svc.UndoStack().RedoDepth() != 0 {
		t.Fatal("a new edit must clear the redo stack")
	}
}

func TestHistoryEntryReplayRegeneratesID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	docID, baseID := createDocument(t, svc, 3, 3)

	cmd := &RenameLayerCommand{M: svc.NewMeta(docID), ItemID: baseID, Name: "First"}
	entry := svc.HistoryEntryFor(cmd)
	history := NewCommandHistory(8)
	if err := history.Execute(ctx, entry); err != nil {
		t.Fatalf("execute: %v", err)
	}
	firstID := cmd.M.ID
	if err := history.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if err := history.Redo(ctx); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if cmd.M.ID == firstID {
		t.Fatal("replay must stamp a fresh command id")
	}
	if got := domain.FindItem(docState(t, svc, docID).Layers, baseID).Name; got != "First" {
		t.Fatalf("redo should land on the renamed state, got %q", got)
	}
}
