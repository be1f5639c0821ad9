package core

import (
	"context"
	"fmt"
	"strconv"

	"worldbuilder/internal/blob"
	"worldbuilder/pkg/domain"
)

// SnapshotKey names the artifact storing a document at a specific version.
func SnapshotKey(docID string, version int64) string {
	return fmt.Sprintf("snapshots/%s/v%d", docID, version)
}

// ExportSnapshot serializes the document at its current version and stores
// it as an immutable artifact. Exporting the same version twice fails with
// blob.ErrExists.
func ExportSnapshot(ctx context.Context, doc *domain.LandscapeDocument, store blob.Store) (blob.Artifact, error) {
	payload, err := doc.MarshalBlob()
	if err != nil {
		return blob.Artifact{}, err
	}
	artifact, err := store.Put(ctx, SnapshotKey(doc.ID, doc.Version), payload, blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"document_id": doc.ID,
			"version":     strconv.FormatInt(doc.Version, 10),
		},
	})
	if err != nil {
		return blob.Artifact{}, err
	}
	artifact.DocumentID = doc.ID
	artifact.Version = doc.Version
	return artifact, nil
}

// ImportSnapshot reconstructs a document from a stored artifact.
func ImportSnapshot(ctx context.Context, store blob.Store, key string) (*domain.LandscapeDocument, error) {
	_, payload, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return domain.UnmarshalDocumentBlob(payload)
}

// ListSnapshots returns the stored artifacts for one document, oldest key
// first.
func ListSnapshots(ctx context.Context, store blob.Store, docID string) ([]blob.Artifact, error) {
	return store.List(ctx, "snapshots/"+docID+"/")
}
