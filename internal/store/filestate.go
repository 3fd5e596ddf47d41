package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// UpsertFileState inserts or updates a FileState by relative_path,
// assigning a new id on first insert. Must be called inside a write
// transaction (see Store.WithWriteTx).
func UpsertFileState(tx *sql.Tx, fs *FileState) error {
	existing, err := GetFileStateByPath(tx, fs.RelativePath)
	if err != nil {
		return err
	}
	if existing != nil {
		fs.ID = existing.ID
		_, err := psql.Update("file_states").
			Set("content_hash", fs.ContentHash).
			Set("size_bytes", fs.SizeBytes).
			Set("mtime_ns", fs.MtimeNS).
			Set("language", fs.Language).
			Set("kind", fs.Kind).
			Set("fingerprint", fs.Fingerprint).
			Set("indexed_at", fs.IndexedAt).
			Set("is_deleted", boolToInt(fs.IsDeleted)).
			Where(sq.Eq{"id": fs.ID}).
			RunWith(tx).Exec()
		if err != nil {
			return fmt.Errorf("failed to update file_state: %w", err)
		}
		return nil
	}

	if fs.ID == "" {
		fs.ID = uuid.NewString()
	}
	_, err = psql.Insert("file_states").
		Columns("id", "relative_path", "content_hash", "size_bytes", "mtime_ns", "language", "kind", "fingerprint", "indexed_at", "is_deleted").
		Values(fs.ID, fs.RelativePath, fs.ContentHash, fs.SizeBytes, fs.MtimeNS, fs.Language, fs.Kind, fs.Fingerprint, fs.IndexedAt, boolToInt(fs.IsDeleted)).
		RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert file_state: %w", err)
	}
	return nil
}

// GetFileStateByPath looks up a FileState by its unique relative_path,
// returning (nil, nil) when absent.
func GetFileStateByPath(q sq.BaseRunner, relativePath string) (*FileState, error) {
	row := psql.Select("id", "relative_path", "content_hash", "size_bytes", "mtime_ns", "language", "kind", "fingerprint", "indexed_at", "is_deleted").
		From("file_states").
		Where(sq.Eq{"relative_path": relativePath}).
		RunWith(q).QueryRow()

	fs := &FileState{}
	var isDeleted int
	err := row.Scan(&fs.ID, &fs.RelativePath, &fs.ContentHash, &fs.SizeBytes, &fs.MtimeNS, &fs.Language, &fs.Kind, &fs.Fingerprint, &fs.IndexedAt, &isDeleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file_state: %w", err)
	}
	fs.IsDeleted = isDeleted != 0
	return fs, nil
}

// GetFileStateByID looks up a FileState by its primary key, returning
// (nil, nil) when absent. Used by read paths (providers, renderer) that
// only have a chunk's file_id and need the relative_path/language back.
func GetFileStateByID(q sq.BaseRunner, id string) (*FileState, error) {
	row := psql.Select("id", "relative_path", "content_hash", "size_bytes", "mtime_ns", "language", "kind", "fingerprint", "indexed_at", "is_deleted").
		From("file_states").
		Where(sq.Eq{"id": id}).
		RunWith(q).QueryRow()

	fs := &FileState{}
	var isDeleted int
	err := row.Scan(&fs.ID, &fs.RelativePath, &fs.ContentHash, &fs.SizeBytes, &fs.MtimeNS, &fs.Language, &fs.Kind, &fs.Fingerprint, &fs.IndexedAt, &isDeleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file_state: %w", err)
	}
	fs.IsDeleted = isDeleted != 0
	return fs, nil
}

// TouchIndexedAt updates only the indexed_at timestamp, for the
// "unchanged" classification in the incremental indexer (spec §4.12: hash
// equal -> touch indexed_at only).
func TouchIndexedAt(tx *sql.Tx, fileID, indexedAt string) error {
	_, err := psql.Update("file_states").
		Set("indexed_at", indexedAt).
		Where(sq.Eq{"id": fileID}).
		RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("failed to touch indexed_at: %w", err)
	}
	return nil
}

// SoftDeleteFileState marks a FileState deleted and purges its child rows
// (chunks/embeddings/symbols cascade via ON DELETE CASCADE is reserved for
// a hard delete; soft-delete keeps the row but drops its children since
// they are only meaningful for a live file).
func SoftDeleteFileState(tx *sql.Tx, fileID string) error {
	if _, err := psql.Delete("chunks").Where(sq.Eq{"file_id": fileID}).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to purge chunks for deleted file: %w", err)
	}
	if _, err := psql.Delete("symbols").Where(sq.Eq{"file_id": fileID}).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to purge symbols for deleted file: %w", err)
	}
	if _, err := psql.Update("file_states").Set("is_deleted", 1).Where(sq.Eq{"id": fileID}).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to mark file_state deleted: %w", err)
	}
	return nil
}

// ListActiveRelativePaths returns every non-deleted FileState's
// relative_path, for the incremental indexer's implicit-deletion scan.
func ListActiveRelativePaths(q sq.BaseRunner) ([]string, error) {
	rows, err := psql.Select("relative_path").From("file_states").Where(sq.Eq{"is_deleted": 0}).RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list active file paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
