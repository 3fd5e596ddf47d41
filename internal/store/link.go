package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// ReplaceLinksForFile atomically replaces every link whose source chunk
// belongs to fileID, used when the linker (internal/linker) rebuilds one
// file's call/reference edges incrementally.
func ReplaceLinksForFile(tx *sql.Tx, fileID string, links []*Link) error {
	chunkIDs, err := chunkIDsForFile(tx, fileID)
	if err != nil {
		return err
	}
	if len(chunkIDs) > 0 {
		if _, err := psql.Delete("links").Where(sq.Eq{"source_chunk_id": chunkIDs}).RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("failed to clear existing links: %w", err)
		}
	}
	if len(links) == 0 {
		return nil
	}

	insert := psql.Insert("links").Columns("id", "source_chunk_id", "target_file_id", "target_chunk_id", "type", "label", "score")
	for _, l := range links {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		var targetChunk interface{}
		if l.TargetChunkID != "" {
			targetChunk = l.TargetChunkID
		}
		insert = insert.Values(l.ID, l.SourceChunkID, l.TargetFileID, targetChunk, l.Type, nullableString(l.Label), l.Score)
	}
	if _, err := insert.RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to insert links: %w", err)
	}
	return nil
}

// ListAllLinks loads every link row, used to rebuild the in-memory call
// graph (internal/linker) at startup.
func ListAllLinks(q sq.BaseRunner) ([]*Link, error) {
	rows, err := psql.Select("id", "source_chunk_id", "target_file_id", "target_chunk_id", "type", "label", "score").
		From("links").RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var out []*Link
	for rows.Next() {
		l := &Link{}
		var targetChunk, label sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&l.ID, &l.SourceChunkID, &l.TargetFileID, &targetChunk, &l.Type, &label, &score); err != nil {
			return nil, err
		}
		l.TargetChunkID = targetChunk.String
		l.Label = label.String
		l.Score = score.Float64
		out = append(out, l)
	}
	return out, rows.Err()
}
