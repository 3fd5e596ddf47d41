package store

import (
	"database/sql"
	"fmt"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// ReplaceEmbeddings replaces every embedding for the chunks belonging to
// fileID and syncs the chunks_vec virtual table, upsert-style (delete
// then insert, since vec0 doesn't support INSERT OR REPLACE — mirrors the
// teacher's UpdateVectorIndex).
func ReplaceEmbeddings(tx *sql.Tx, fileID string, embeddings []*Embedding) error {
	chunkIDs, err := chunkIDsForFile(tx, fileID)
	if err != nil {
		return err
	}
	if len(chunkIDs) > 0 {
		if _, err := psql.Delete("embeddings").Where(sq.Eq{"chunk_id": chunkIDs}).RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("failed to clear existing embeddings: %w", err)
		}
		if err := deleteVectors(tx, chunkIDs); err != nil {
			return err
		}
	}
	if len(embeddings) == 0 {
		return nil
	}

	insert := psql.Insert("embeddings").Columns("id", "chunk_id", "model", "dimensions", "vector", "created_at")
	for _, e := range embeddings {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if len(e.Vector) != e.Dimensions {
			return fmt.Errorf("embedding %s: vector length %d does not match dimensions %d", e.ID, len(e.Vector), e.Dimensions)
		}
		blob, err := sqlitevec.SerializeFloat32(e.Vector)
		if err != nil {
			return fmt.Errorf("failed to serialize embedding %s: %w", e.ID, err)
		}
		insert = insert.Values(e.ID, e.ChunkID, e.Model, e.Dimensions, blob, e.CreatedAt)
	}
	if _, err := insert.RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to insert embeddings: %w", err)
	}

	for _, e := range embeddings {
		if err := upsertVector(tx, e.ChunkID, e.Vector); err != nil {
			return err
		}
	}
	return nil
}

func chunkIDsForFile(q sq.BaseRunner, fileID string) ([]string, error) {
	rows, err := psql.Select("id").From("chunks").Where(sq.Eq{"file_id": fileID}).RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids for file: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func deleteVectors(tx *sql.Tx, chunkIDs []string) error {
	stmt, err := tx.Prepare("DELETE FROM chunks_vec WHERE chunk_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare vector delete: %w", err)
	}
	defer stmt.Close()
	for _, id := range chunkIDs {
		if _, err := stmt.Exec(id); err != nil {
			return fmt.Errorf("failed to delete vector for chunk %s: %w", id, err)
		}
	}
	return nil
}

func upsertVector(tx *sql.Tx, chunkID string, vector []float32) error {
	if _, err := tx.Exec("DELETE FROM chunks_vec WHERE chunk_id = ?", chunkID); err != nil {
		return fmt.Errorf("failed to delete existing vector for chunk %s: %w", chunkID, err)
	}
	blob, err := sqlitevec.SerializeFloat32(vector)
	if err != nil {
		return fmt.Errorf("failed to serialize vector for chunk %s: %w", chunkID, err)
	}
	if _, err := tx.Exec("INSERT INTO chunks_vec (chunk_id, embedding) VALUES (?, ?)", chunkID, blob); err != nil {
		return fmt.Errorf("failed to insert vector for chunk %s: %w", chunkID, err)
	}
	return nil
}

// KNNSearch returns the k nearest chunk_ids to query by the vec0 table's
// default L2 distance (CreateVectorIndex sets no distance_metric), using
// the vec0 virtual table's native KNN query form.
func KNNSearch(q sq.BaseRunner, query []float32, k int) ([]string, []float64, error) {
	blob, err := sqlitevec.SerializeFloat32(query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize query vector: %w", err)
	}
	rows, err := q.Query(`
		SELECT chunk_id, distance FROM chunks_vec
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, blob, k)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to run KNN search: %w", err)
	}
	defer rows.Close()

	var ids []string
	var distances []float64
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		distances = append(distances, dist)
	}
	return ids, distances, rows.Err()
}
