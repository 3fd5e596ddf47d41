package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// UpsertBootstrapProgress records the per-path status used to resume an
// interrupted bootstrap sweep (C13).
func UpsertBootstrapProgress(tx *sql.Tx, p *BootstrapProgress) error {
	_, err := psql.Insert("bootstrap_progress").
		Columns("path", "status", "error").
		Values(p.Path, string(p.Status), nullableString(p.Error)).
		Suffix("ON CONFLICT(path) DO UPDATE SET status = excluded.status, error = excluded.error").
		RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("failed to upsert bootstrap progress: %w", err)
	}
	return nil
}

// PendingBootstrapPaths returns every path not yet COMPLETED, in
// insertion order, for resuming a bootstrap sweep across restarts.
func PendingBootstrapPaths(q sq.BaseRunner) ([]string, error) {
	rows, err := psql.Select("path").From("bootstrap_progress").
		Where(sq.NotEq{"status": string(BootstrapCompleted)}).
		RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending bootstrap paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClearBootstrapProgress removes all rows, called once a full sweep
// completes so the next run starts fresh rather than treating a
// completed repo as "resumable".
func ClearBootstrapProgress(tx *sql.Tx) error {
	if _, err := psql.Delete("bootstrap_progress").RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear bootstrap progress: %w", err)
	}
	return nil
}
