package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// ReplaceChunks atomically replaces every chunk owned by fileID, per spec
// §3: "All chunks of a file are replaced atomically on reindex." Assigns
// an id to any chunk missing one.
func ReplaceChunks(tx *sql.Tx, fileID string, chunks []*Chunk) error {
	oldIDs, err := chunkIDsForFile(tx, fileID)
	if err != nil {
		return err
	}
	if len(oldIDs) > 0 {
		if err := deleteVectors(tx, oldIDs); err != nil {
			return err
		}
	}
	if _, err := psql.Delete("chunks").Where(sq.Eq{"file_id": fileID}).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear existing chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	insert := psql.Insert("chunks").Columns(
		"id", "file_id", "ordinal", "kind", "start_line", "end_line",
		"token_estimate", "content", "summary", "created_at",
	)
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.FileID = fileID
		insert = insert.Values(c.ID, c.FileID, c.Ordinal, c.Kind, c.StartLine, c.EndLine, c.TokenEstimate, c.Content, c.Summary, c.CreatedAt)
	}
	if _, err := insert.RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// ListChunksByFile returns every chunk owned by fileID, in ordinal order.
func ListChunksByFile(q sq.BaseRunner, fileID string) ([]*Chunk, error) {
	rows, err := psql.Select("id", "file_id", "ordinal", "kind", "start_line", "end_line", "token_estimate", "content", "summary", "created_at").
		From("chunks").
		Where(sq.Eq{"file_id": fileID}).
		OrderBy("ordinal ASC").
		RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c := &Chunk{}
		var tokenEstimate sql.NullInt64
		var summary sql.NullString
		if err := rows.Scan(&c.ID, &c.FileID, &c.Ordinal, &c.Kind, &c.StartLine, &c.EndLine, &tokenEstimate, &c.Content, &summary, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.TokenEstimate = int(tokenEstimate.Int64)
		c.Summary = summary.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChunkByID loads a single chunk, returning (nil, nil) when absent.
func GetChunkByID(q sq.BaseRunner, chunkID string) (*Chunk, error) {
	row := psql.Select("id", "file_id", "ordinal", "kind", "start_line", "end_line", "token_estimate", "content", "summary", "created_at").
		From("chunks").
		Where(sq.Eq{"id": chunkID}).
		RunWith(q).QueryRow()

	c := &Chunk{}
	var tokenEstimate sql.NullInt64
	var summary sql.NullString
	err := row.Scan(&c.ID, &c.FileID, &c.Ordinal, &c.Kind, &c.StartLine, &c.EndLine, &tokenEstimate, &c.Content, &summary, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk: %w", err)
	}
	c.TokenEstimate = int(tokenEstimate.Int64)
	c.Summary = summary.String
	return c, nil
}
