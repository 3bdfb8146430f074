package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/shared"
)

// ExecutionMetric records metadata for a single pipeline stage execution.
type ExecutionMetric struct {
	Stage     string
	Model     string
	Outcome   string
	LatencyMS int64
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database and feeds the stage histogram.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	StageDuration.WithLabelValues(m.Stage).Observe(float64(m.LatencyMS) / 1000)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_metrics (stage, model, outcome, latency_ms, timestamp) VALUES (?, ?, ?, ?, ?)`,
		m.Stage, m.Model, m.Outcome, m.LatencyMS, database.FormatTime(ts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution metric: %w", err)
	}
	return nil
}

// RecordMeta records metrics directly from shared.StageMeta. Skipped stages
// carry no latency and are not stored.
func (s *Store) RecordMeta(ctx context.Context, meta shared.StageMeta) error {
	if meta.Outcome == shared.OutcomeSkipped {
		return nil
	}
	return s.Record(ctx, MapMeta(meta))
}

// DailyUsage summarizes stage executions for a single day.
type DailyUsage struct {
	Date           string
	TotalExecution int
	Failures       int
	AvgLatencyMS   float64
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := database.FormatTime(time.Now().AddDate(0, 0, -days))
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'failure' THEN 1 ELSE 0 END),
		       AVG(latency_ms)
		FROM execution_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		var avg sql.NullFloat64
		if err := rows.Scan(&u.Date, &u.TotalExecution, &u.Failures, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		if avg.Valid {
			u.AvgLatencyMS = avg.Float64
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := database.FormatTime(time.Now().AddDate(0, 0, -olderThanDays))
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup execution metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapMeta converts a shared.StageMeta to an ExecutionMetric.
func MapMeta(meta shared.StageMeta) ExecutionMetric {
	return ExecutionMetric{
		Stage:     meta.Stage,
		Model:     meta.Model,
		Outcome:   meta.Outcome,
		LatencyMS: meta.Latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}
