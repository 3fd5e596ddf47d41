package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// ReplaceSymbols atomically replaces every symbol owned by fileID.
func ReplaceSymbols(tx *sql.Tx, fileID string, symbols []*Symbol) error {
	if _, err := psql.Delete("symbols").Where(sq.Eq{"file_id": fileID}).RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear existing symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil
	}

	insert := psql.Insert("symbols").Columns(
		"id", "file_id", "chunk_id", "type", "name", "qualified_name", "signature", "language", "start_line", "end_line",
	)
	for _, s := range symbols {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.FileID = fileID
		var chunkID interface{}
		if s.ChunkID != "" {
			chunkID = s.ChunkID
		}
		insert = insert.Values(s.ID, s.FileID, chunkID, s.Type, s.Name, nullableString(s.QualifiedName), nullableString(s.Signature), nullableString(s.Language), s.StartLine, s.EndLine)
	}
	if _, err := insert.RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to insert symbols: %w", err)
	}
	return nil
}

// FindSymbolsByName performs a LIKE lookup against symbol names (SQLite's
// default ASCII case-insensitivity applies), used by the symbol provider
// for prefix/sub-token matching.
func FindSymbolsByName(q sq.BaseRunner, pattern string) ([]*Symbol, error) {
	rows, err := psql.Select("id", "file_id", "chunk_id", "type", "name", "qualified_name", "signature", "language", "start_line", "end_line").
		From("symbols").
		Where(sq.Like{"name": pattern}).
		RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to search symbols: %w", err)
	}
	defer rows.Close()

	var out []*Symbol
	for rows.Next() {
		s := &Symbol{}
		var chunkID, qualified, signature, language sql.NullString
		if err := rows.Scan(&s.ID, &s.FileID, &chunkID, &s.Type, &s.Name, &qualified, &signature, &language, &s.StartLine, &s.EndLine); err != nil {
			return nil, err
		}
		s.ChunkID = chunkID.String
		s.QualifiedName = qualified.String
		s.Signature = signature.String
		s.Language = language.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSymbolsByFile loads every symbol owned by fileID, used by the
// linker (internal/linker) to rebuild that file's call/reference edges
// after (re)indexing.
func ListSymbolsByFile(q sq.BaseRunner, fileID string) ([]*Symbol, error) {
	rows, err := psql.Select("id", "file_id", "chunk_id", "type", "name", "qualified_name", "signature", "language", "start_line", "end_line").
		From("symbols").
		Where(sq.Eq{"file_id": fileID}).
		RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols for file: %w", err)
	}
	defer rows.Close()

	var out []*Symbol
	for rows.Next() {
		s := &Symbol{}
		var chunkID, qualified, signature, language sql.NullString
		if err := rows.Scan(&s.ID, &s.FileID, &chunkID, &s.Type, &s.Name, &qualified, &signature, &language, &s.StartLine, &s.EndLine); err != nil {
			return nil, err
		}
		s.ChunkID = chunkID.String
		s.QualifiedName = qualified.String
		s.Signature = signature.String
		s.Language = language.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
