package store

import (
	"database/sql"
	"fmt"
	"sync"
)

// Store wraps a single-writer, multi-reader SQLite connection. Spec §4.11:
// "embedded columnar database with a single writer" — writes are
// serialized through writeMu; reads use the shared *sql.DB connection
// pool directly, matching the teacher's storage package's locking model.
type Store struct {
	db         *sql.DB
	dimensions int
	writeMu    sync.Mutex
}

// Open opens (creating if absent) a SQLite database at path, tunes
// pragmas, and creates the schema idempotently.
func Open(path string, dimensions int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	// Writes are serialized by writeMu, not by the pool; the pool is
	// capped at 8 connections shared by readers and the one writer.
	db.SetMaxOpenConns(8)

	version, err := SchemaVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if version == "0" {
		if err := CreateSchema(db, dimensions); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{db: db, dimensions: dimensions}, nil
}

// DB exposes the underlying connection for read-only query helpers in
// this package and for providers (C15) that issue their own SELECTs.
func (s *Store) DB() *sql.DB { return s.db }

// Dimensions reports the embedding dimensionality this store was opened
// with.
func (s *Store) Dimensions() int { return s.dimensions }

// WithWriteTx serializes fn behind the single-writer lock and runs it
// inside a transaction, rolling back on error or panic.
func (s *Store) WithWriteTx(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin write transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close issues a WAL checkpoint and closes the connection, per spec
// §4.11's "a checkpoint is issued on shutdown".
func (s *Store) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to checkpoint on shutdown: %w", err)
	}
	return s.db.Close()
}
