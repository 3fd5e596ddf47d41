package store

import (
	"encoding/binary"
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"
)

// ReloadRow is one chunk's full context for rebuilding the in-memory
// semantic (VectorCache) and full-text (bleve) caches after a bootstrap
// sweep or incremental update, since both caches are rebuilt from
// scratch rather than incrementally patched.
type ReloadRow struct {
	ChunkID   string
	FilePath  string
	Kind      string
	Language  string
	Content   string
	StartLine int
	EndLine   int
	Vector    []float32 // nil if the chunk has no embedding yet
}

// ListChunksForReload joins chunks, file_states, and embeddings (any
// model) for every non-deleted file, ordered by file id, then ordinal.
func ListChunksForReload(q sq.BaseRunner) ([]ReloadRow, error) {
	rows, err := psql.Select(
		"c.id", "fs.relative_path", "c.kind", "fs.language", "c.content",
		"c.start_line", "c.end_line", "e.vector",
	).
		From("chunks c").
		Join("file_states fs ON fs.id = c.file_id").
		LeftJoin("embeddings e ON e.chunk_id = c.id").
		Where(sq.Eq{"fs.is_deleted": 0}).
		OrderBy("c.file_id", "c.ordinal").
		RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for reload: %w", err)
	}
	defer rows.Close()

	var out []ReloadRow
	for rows.Next() {
		var r ReloadRow
		var blob []byte
		if err := rows.Scan(&r.ChunkID, &r.FilePath, &r.Kind, &r.Language, &r.Content, &r.StartLine, &r.EndLine, &blob); err != nil {
			return nil, err
		}
		if blob != nil {
			vec, err := deserializeFloat32(blob)
			if err != nil {
				return nil, fmt.Errorf("chunk %s: %w", r.ChunkID, err)
			}
			r.Vector = vec
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// deserializeFloat32 decodes sqlite-vec's raw little-endian float32
// packing, the inverse of sqlitevec.SerializeFloat32.
func deserializeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
