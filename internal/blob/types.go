// Package blob stores immutable landscape snapshot artifacts (serialized
// document blobs exported at a specific version) across memory, filesystem,
// and S3-compatible backends.
package blob

import (
	"context"
	"errors"
	"time"
)

// Driver identifies a concrete artifact storage backend.
type Driver string

const (
	// DriverFilesystem is the local filesystem backend (default, dev).
	DriverFilesystem Driver = "fs"
	// DriverS3 is an S3 / MinIO compatible backend.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-memory backend used in tests.
	DriverMemory Driver = "memory"
)

// Artifact describes one stored snapshot.
type Artifact struct {
	Key         string            `json:"key"`
	DocumentID  string            `json:"document_id,omitempty"`
	Version     int64             `json:"version,omitempty"`
	Size        int64             `json:"size_bytes"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// PutOptions carries optional artifact attributes for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Store is the artifact storage abstraction. Artifacts are immutable: Put
// fails on an existing key.
type Store interface {
	Put(ctx context.Context, key string, payload []byte, opts PutOptions) (Artifact, error)
	Get(ctx context.Context, key string) (Artifact, []byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Artifact, error)
	Driver() Driver
}

// ErrExists is returned when a Put collides with a stored artifact.
var ErrExists = errors.New("blob: artifact already exists")

// ErrNotFound is returned when a key resolves to no stored artifact.
var ErrNotFound = errors.New("blob: artifact not found")
