package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// RecordMetric upserts one (name, labels) usage_metrics row, called by
// internal/metrics on its periodic snapshot flush (spec's usage_metrics
// table backs in-process Prometheus counters/histograms, persisted for
// durability across restarts rather than exposed over HTTP).
func RecordMetric(tx *sql.Tx, name, labels string, value float64, recordedAt string) error {
	_, err := psql.Insert("usage_metrics").
		Columns("name", "labels", "value", "recorded_at").
		Values(name, labels, value, recordedAt).
		Suffix("ON CONFLICT(name, labels) DO UPDATE SET value = excluded.value, recorded_at = excluded.recorded_at").
		RunWith(tx).Exec()
	if err != nil {
		return fmt.Errorf("failed to record usage metric %s: %w", name, err)
	}
	return nil
}

// SnapshotMetrics returns every usage_metrics row, for restoring counters
// on process restart.
func SnapshotMetrics(q sq.BaseRunner) (map[string]float64, error) {
	rows, err := psql.Select("name", "labels", "value").From("usage_metrics").RunWith(q).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot usage metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name, labels string
		var value float64
		if err := rows.Scan(&name, &labels, &value); err != nil {
			return nil, err
		}
		key := name
		if labels != "" {
			key = name + "{" + labels + "}"
		}
		out[key] = value
	}
	return out, rows.Err()
}
