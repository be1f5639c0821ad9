// Package postgres provides a Postgres-backed DocumentStore for shared
// deployments where several editors persist into one database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"worldbuilder/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.DocumentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/worldbuilder?sslmode=disable"
)

// Store persists serialized documents in a single Postgres table.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), pings it, and ensures the documents table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		type_name TEXT NOT NULL,
		payload BYTEA NOT NULL,
		version BIGINT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

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
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM documents WHERE id = $1`, id).Scan(&blob)
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

// Tx wraps one Postgres transaction.
type Tx struct {
	tx *sql.Tx
}

// InsertDocument creates the document row, failing with ConflictError if the
// id exists.
func (t *Tx) InsertDocument(ctx context.Context, id, typeName string, blob []byte, version int64) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO documents (id, type_name, payload, version) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`, id, typeName, blob, version)
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
		`UPDATE documents SET payload = $1, version = $2 WHERE id = $3`, blob, version, id)
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
