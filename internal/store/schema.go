// Package store implements the embedded single-writer database of spec
// §4.11: file_states, chunks, embeddings, symbols, links,
// bootstrap_progress, and usage_metrics tables, a sqlite-vec vector
// column index, and an idempotent schema creation path. Grounded on the
// teacher's internal/storage package (schema.go, vector_index.go,
// chunk_writer.go), with the teacher's code-graph-specific tables (types,
// functions, function_calls, imports, ...) replaced by this spec's §3
// data model.
package store

import (
	"database/sql"
	"fmt"
	"time"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlitevec.Auto()
}

const schemaVersion = "1"

// CreateSchema creates every table, index, and the vector virtual table,
// idempotently. Mirrors the teacher's transaction-then-virtual-table
// sequencing: vec0 must be created outside the DDL transaction.
func CreateSchema(db *sql.DB, dimensions int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"file_states", createFileStatesTable},
		{"chunks", createChunksTable},
		{"embeddings", createEmbeddingsTable},
		{"symbols", createSymbolsTable},
		{"links", createLinksTable},
		{"bootstrap_progress", createBootstrapProgressTable},
		{"usage_metrics", createUsageMetricsTable},
		{"cache_metadata", createCacheMetadataTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range allIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT INTO cache_metadata (key, value, updated_at) VALUES
			('schema_version', ?, ?),
			('embedding_dimensions', ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, schemaVersion, now, fmt.Sprintf("%d", dimensions), now); err != nil {
		return fmt.Errorf("failed to bootstrap cache_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}

	if err := CreateVectorIndex(db, dimensions); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

// SchemaVersion reports the stored schema_version, or "0" for a fresh
// database with no cache_metadata table yet.
func SchemaVersion(db *sql.DB) (string, error) {
	var exists int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='cache_metadata'`).Scan(&exists); err != nil {
		return "", fmt.Errorf("failed to check cache_metadata existence: %w", err)
	}
	if exists == 0 {
		return "0", nil
	}
	var version string
	err := db.QueryRow(`SELECT value FROM cache_metadata WHERE key = 'schema_version'`).Scan(&version)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

const createFileStatesTable = `
CREATE TABLE IF NOT EXISTS file_states (
    id TEXT PRIMARY KEY,
    relative_path TEXT NOT NULL UNIQUE,
    content_hash TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    mtime_ns INTEGER NOT NULL,
    language TEXT,
    kind TEXT,
    fingerprint TEXT,
    indexed_at TEXT NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0
)
`

const createChunksTable = `
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    file_id TEXT NOT NULL REFERENCES file_states(id) ON DELETE CASCADE,
    ordinal INTEGER NOT NULL,
    kind TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    token_estimate INTEGER,
    content TEXT NOT NULL,
    summary TEXT,
    created_at TEXT NOT NULL,
    UNIQUE (file_id, ordinal)
)
`

const createEmbeddingsTable = `
CREATE TABLE IF NOT EXISTS embeddings (
    id TEXT PRIMARY KEY,
    chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    model TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    vector BLOB NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (chunk_id, model)
)
`

const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
    id TEXT PRIMARY KEY,
    file_id TEXT NOT NULL REFERENCES file_states(id) ON DELETE CASCADE,
    chunk_id TEXT REFERENCES chunks(id) ON DELETE SET NULL,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    qualified_name TEXT,
    signature TEXT,
    language TEXT,
    start_line INTEGER,
    end_line INTEGER
)
`

const createLinksTable = `
CREATE TABLE IF NOT EXISTS links (
    id TEXT PRIMARY KEY,
    source_chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    target_file_id TEXT NOT NULL REFERENCES file_states(id) ON DELETE CASCADE,
    target_chunk_id TEXT REFERENCES chunks(id) ON DELETE SET NULL,
    type TEXT NOT NULL,
    label TEXT,
    score REAL
)
`

const createBootstrapProgressTable = `
CREATE TABLE IF NOT EXISTS bootstrap_progress (
    path TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    error TEXT
)
`

const createUsageMetricsTable = `
CREATE TABLE IF NOT EXISTS usage_metrics (
    name TEXT NOT NULL,
    labels TEXT NOT NULL DEFAULT '',
    value REAL NOT NULL,
    recorded_at TEXT NOT NULL,
    PRIMARY KEY (name, labels)
)
`

const createCacheMetadataTable = `
CREATE TABLE IF NOT EXISTS cache_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

var allIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_chunks_file_id ON chunks(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_chunk_id ON embeddings(chunk_id)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_file_id ON symbols(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
	`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_chunk_id)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target_file ON links(target_file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_file_states_deleted ON file_states(is_deleted)`,
}

// CreateVectorIndex creates the vec0 virtual table used for embedding
// similarity search, mirroring the teacher's vector_index.go exactly.
func CreateVectorIndex(db *sql.DB, dimensions int) error {
	createSQL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_vec USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding float[%d]
		)
	`, dimensions)
	if _, err := db.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}
