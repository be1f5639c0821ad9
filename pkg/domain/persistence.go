package domain

import (
	"context"
	"time"
)

// Tx is one atomic unit of writes against a document store. Implementations
// must make Commit and Rollback safe to call at most once each.
type Tx interface {
	InsertDocument(ctx context.Context, id, typeName string, blob []byte, version int64) error
	UpdateDocument(ctx context.Context, id string, blob []byte, version int64) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DocumentStore is the persistence collaborator: durable storage of opaque
// serialized document blobs keyed by id.
type DocumentStore interface {
	Begin(ctx context.Context) (Tx, error)
	GetDocumentBlob(ctx context.Context, id string) ([]byte, error)
	Close() error
}

// SyncClient is the transport collaborator that relays serialized commands
// between editing peers. The core only requires that commands arrive as
// fully-formed payloads in arrival order.
type SyncClient interface {
	Connect(ctx context.Context) error
	SendCommand(ctx context.Context, payload []byte) error
	// Incoming streams command payloads pushed by the remote peer.
	Incoming() <-chan []byte
	// GetCommandsSince returns payloads acknowledged after the given server
	// timestamp, ordered by acknowledgment.
	GetCommandsSince(ctx context.Context, since time.Time) ([][]byte, error)
}

// LandblockNotifier receives the set of landblocks whose resolved terrain or
// objects changed, so external renderers can restream them.
type LandblockNotifier interface {
	NotifyLandblocks(docID string, landblocks []uint32)
}

// MetricsRecorder captures operation timings and outcomes. Implementations
// must be safe for concurrent use.
type MetricsRecorder interface {
	RecordDuration(op string, d time.Duration)
	RecordResult(op, outcome string)
	RecordCacheEvent(event string)
}

// Logger records diagnostic events from background loops (cache sweeps, sync
// retries). The core carries no logging framework; hosts plug their own in.
type Logger interface {
	Logf(format string, args ...any)
}

// NoopLogger discards all diagnostics.
type NoopLogger struct{}

// Logf implements Logger.
func (NoopLogger) Logf(string, ...any) {}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

// RecordDuration implements MetricsRecorder.
func (NoopMetrics) RecordDuration(string, time.Duration) {}

// RecordResult implements MetricsRecorder.
func (NoopMetrics) RecordResult(string, string) {}

// RecordCacheEvent implements MetricsRecorder.
func (NoopMetrics) RecordCacheEvent(string) {}
