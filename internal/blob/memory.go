package blob

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	artifact Artifact
	data     []byte
}

// MemoryStore implements Store backed by process memory. Intended for tests.
type MemoryStore struct {
	mu   sync.RWMutex
	objs map[string]memoryEntry
}

// NewMemory returns an in-memory artifact store.
func NewMemory() *MemoryStore {
	return &MemoryStore{objs: make(map[string]memoryEntry)}
}

// Driver returns the backend identifier.
func (s *MemoryStore) Driver() Driver { return DriverMemory }

// Put stores a new artifact; it fails if the key exists.
func (s *MemoryStore) Put(_ context.Context, key string, payload []byte, opts PutOptions) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists {
		return Artifact{}, ErrExists
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	artifact := Artifact{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: opts.ContentType,
		Metadata:    cloneMetadata(opts.Metadata),
		CreatedAt:   time.Now().UTC(),
	}
	s.objs[key] = memoryEntry{artifact: artifact, data: data}
	return artifact, nil
}

// Get returns the artifact and a copy of its payload.
func (s *MemoryStore) Get(_ context.Context, key string) (Artifact, []byte, error) {
	s.mu.RLock()
	entry, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return Artifact{}, nil, ErrNotFound
	}
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	artifact := entry.artifact
	artifact.Metadata = cloneMetadata(artifact.Metadata)
	return artifact, data, nil
}

// Delete removes the artifact, reporting whether it existed.
func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[key]; !ok {
		return false, nil
	}
	delete(s.objs, key)
	return true, nil
}

// List returns artifacts whose keys start with prefix, sorted by key.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Artifact
	for key, entry := range s.objs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		artifact := entry.artifact
		artifact.Metadata = cloneMetadata(artifact.Metadata)
		out = append(out, artifact)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func cloneMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	cp := make(map[string]string, len(md))
	for k, v := range md {
		cp[k] = v
	}
	return cp
}
