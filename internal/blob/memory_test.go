package blob

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	artifact, err := store.Put(ctx, "snapshots/doc-1/v1", []byte("payload"), PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"document_id": "doc-1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if artifact.Size != 7 || artifact.ContentType != "application/json" {
		t.Fatalf("artifact: %+v", artifact)
	}

	got, payload, err := store.Get(ctx, "snapshots/doc-1/v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(payload) != "payload" {
		t.Fatalf("payload mismatch: %q", payload)
	}
	if got.Metadata["document_id"] != "doc-1" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}

	ok, err := store.Delete(ctx, "snapshots/doc-1/v1")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, "snapshots/doc-1/v1")
	if err != nil || ok {
		t.Fatalf("second delete should report absence: ok=%v err=%v", ok, err)
	}
}

func TestMemoryPutIsImmutable(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if _, err := store.Put(ctx, "k", []byte("a"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", []byte("b"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	store := NewMemory()
	if _, _, err := store.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryGetCopiesPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if _, err := store.Put(ctx, "k", []byte("abc"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, payload, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload[0] = 'x'
	_, again, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(again) != "abc" {
		t.Fatalf("stored payload mutated: %q", again)
	}
}

func TestMemoryListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	for _, key := range []string{"snapshots/a/v2", "snapshots/a/v1", "snapshots/b/v1"} {
		if _, err := store.Put(ctx, key, []byte("x"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	artifacts, err := store.List(ctx, "snapshots/a/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2, got %d", len(artifacts))
	}
	if artifacts[0].Key != "snapshots/a/v1" || artifacts[1].Key != "snapshots/a/v2" {
		t.Fatalf("keys out of order: %v", artifacts)
	}
}
