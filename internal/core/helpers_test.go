package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"worldbuilder/internal/infra/persistence/memory"
	"worldbuilder/pkg/domain"
)

// recordingNotifier collects landblock notifications per document.
type recordingNotifier struct {
	mu    sync.Mutex
	calls map[string][][]uint32
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{calls: make(map[string][][]uint32)}
}

func (n *recordingNotifier) NotifyLandblocks(docID string, landblocks []uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := make([]uint32, len(landblocks))
	copy(cp, landblocks)
	n.calls[docID] = append(n.calls[docID], cp)
}

func (n *recordingNotifier) count(docID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls[docID])
}

func newTestService(t *testing.T, opts ...ServiceOption) (*EditorService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cache := NewDocumentCache(store, CacheConfig{IdleTimeout: time.Minute, SweepInterval: time.Hour}, nil, nil)
	t.Cleanup(cache.Close)
	t.Cleanup(func() { store.Close() })
	return NewEditorService("user-1", cache, store, opts...), store
}

func createDocument(t *testing.T, svc *EditorService, width, height uint32) (docID, baseID string) {
	t.Helper()
	cmd := NewCreateLandscapeDocumentCommand(svc.UserID(), "Test Map", domain.TerrainInfo{
		MapWidth:        width,
		MapHeight:       height,
		LandblockStride: 8,
	})
	if err := svc.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return cmd.M.DocumentID, cmd.BaseLayerID
}

// docState rents the document long enough to hand its pointer to a test for
// read-only inspection.
func docState(t *testing.T, svc *EditorService, docID string) *domain.LandscapeDocument {
	t.Helper()
	rental, err := svc.Cache().Rent(context.Background(), docID)
	if err != nil {
		t.Fatalf("rent %s: %v", docID, err)
	}
	defer rental.Release()
	return rental.Document()
}

func cacheType(t *testing.T, svc *EditorService, docID string, idx uint32) *uint8 {
	t.Helper()
	return docState(t, svc, docID).TerrainCache[idx].Type
}
