// Package memory provides an in-memory DocumentStore with transaction
// semantics, used as the development and test backend.
package memory

import (
	"context"
	"sync"

	"worldbuilder/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.DocumentStore = (*Store)(nil)

type record struct {
	typeName string
	blob     []byte
	version  int64
}

// Store keeps serialized documents in process memory. Transactions buffer
// writes and apply them atomically on Commit.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]record
	closed bool
}

// NewStore returns an empty in-memory document store.
func NewStore() *Store {
	return &Store{docs: make(map[string]record)}
}

// Begin opens a buffered transaction.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.DisposedError{Resource: "document store"}
	}
	return &Tx{store: s, staged: make(map[string]record)}, nil
}

// GetDocumentBlob returns a copy of the committed blob for id.
func (s *Store) GetDocumentBlob(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.DisposedError{Resource: "document store"}
	}
	rec, ok := s.docs[id]
	if !ok {
		return nil, domain.NotFoundError{Entity: "document", ID: id}
	}
	blob := make([]byte, len(rec.blob))
	copy(blob, rec.blob)
	return blob, nil
}

// Close tears the store down; later operations fail with DisposedError.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.docs = make(map[string]record)
	return nil
}

// Len reports the number of committed documents, for tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Tx buffers document writes until Commit. Inserts are checked against both
// committed and staged state so duplicate creates fail early.
type Tx struct {
	store  *Store
	mu     sync.Mutex
	staged map[string]record
	// inserts tracks which staged ids must not already exist at commit.
	inserts map[string]struct{}
	done    bool
}

// InsertDocument stages a create; it fails with ConflictError if the id is
// already committed or staged.
func (t *Tx) InsertDocument(ctx context.Context, id, typeName string, blob []byte, version int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return domain.DisposedError{Resource: "transaction"}
	}
	if _, staged := t.staged[id]; staged {
		return domain.ConflictError{Entity: "document", ID: id}
	}
	t.store.mu.RLock()
	_, committed := t.store.docs[id]
	t.store.mu.RUnlock()
	if committed {
		return domain.ConflictError{Entity: "document", ID: id}
	}
	if t.inserts == nil {
		t.inserts = make(map[string]struct{})
	}
	t.inserts[id] = struct{}{}
	t.staged[id] = record{typeName: typeName, blob: cloneBlob(blob), version: version}
	return nil
}

// UpdateDocument stages an overwrite of an existing or staged document.
func (t *Tx) UpdateDocument(ctx context.Context, id string, blob []byte, version int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return domain.DisposedError{Resource: "transaction"}
	}
	if rec, staged := t.staged[id]; staged {
		rec.blob = cloneBlob(blob)
		rec.version = version
		t.staged[id] = rec
		return nil
	}
	t.store.mu.RLock()
	rec, committed := t.store.docs[id]
	t.store.mu.RUnlock()
	if !committed {
		return domain.NotFoundError{Entity: "document", ID: id}
	}
	rec.blob = cloneBlob(blob)
	rec.version = version
	t.staged[id] = rec
	return nil
}

// Commit applies the staged writes atomically.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return domain.DisposedError{Resource: "transaction"}
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.closed {
		return domain.DisposedError{Resource: "document store"}
	}
	for id := range t.inserts {
		if _, exists := t.store.docs[id]; exists {
			return domain.ConflictError{Entity: "document", ID: id}
		}
	}
	for id, rec := range t.staged {
		t.store.docs[id] = rec
	}
	return nil
}

// Rollback discards the staged writes.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.staged = nil
	return nil
}

func cloneBlob(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
