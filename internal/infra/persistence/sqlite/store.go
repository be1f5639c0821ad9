// Package sqlite provides a SQLite-backed DocumentStore for single-machine
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"worldbuilder/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.DocumentStore = (*Store)(nil)

// Store persists serialized documents in a single SQLite table.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at path and ensures the
// documents table exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "worldbuilder.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		type_name TEXT NOT NULL,
		payload BLOB NOT NULL,
		version INTEGER NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Store{db: db}, nil
}

// Begin opens a database transaction.
func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// GetDocumentBlob returns the stored blob for id.
func (s *Store) GetDocumentBlob(ctx context.Context, id string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM documents WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Entity: "document", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", id, err)
	}
	return blob, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx wraps one SQLite transaction.
type Tx struct {
	tx *sql.Tx
}

// InsertDocument creates the document row, failing with ConflictError if the
// id exists.
func (t *Tx) InsertDocument(ctx context.Context, id, typeName string, blob []byte, version int64) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO documents (id, type_name, payload, version) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`, id, typeName, blob, version)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ConflictError{Entity: "document", ID: id}
	}
	return nil
}

// UpdateDocument overwrites the document row, failing with NotFoundError if
// the id is absent.
func (t *Tx) UpdateDocument(ctx context.Context, id string, blob []byte, version int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE documents SET payload = ?, version = ? WHERE id = ?`, blob, version, id)
	if err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFoundError{Entity: "document", ID: id}
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
