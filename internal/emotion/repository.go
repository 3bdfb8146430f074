package emotion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neuroti/Psi/internal/database"
)

// StoredReading is a persisted classification.
type StoredReading struct {
	UserID      string
	Variability float64
	Rate        float64
	Coherence   float64
	Label       Label
	Score       int
	RecordedAt  time.Time
}

// Repository persists readings in emotion_readings.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const insertReadingQuery = `
INSERT INTO emotion_readings (user_id, hrv, heart_rate, coherence, emotion, score, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (r *Repository) Save(ctx context.Context, s StoredReading) error {
	_, err := r.db.ExecContext(ctx, insertReadingQuery,
		s.UserID, s.Variability, s.Rate, s.Coherence, string(s.Label), s.Score, database.FormatTime(s.RecordedAt))
	if err != nil {
		return fmt.Errorf("failed to save emotion reading: %w", err)
	}
	return nil
}

const selectReadingsQuery = `
SELECT user_id, hrv, heart_rate, coherence, emotion, score, recorded_at
FROM emotion_readings
WHERE user_id = ? AND recorded_at >= ?`

// Latest returns the newest reading at or after since.
func (r *Repository) Latest(ctx context.Context, userID string, since time.Time) (*StoredReading, error) {
	row := r.db.QueryRowContext(ctx, selectReadingsQuery+` ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		userID, database.FormatTime(since))
	s, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest emotion reading: %w", err)
	}
	return &s, nil
}

// History returns readings at or after since, oldest first.
func (r *Repository) History(ctx context.Context, userID string, since time.Time) ([]StoredReading, error) {
	rows, err := r.db.QueryContext(ctx, selectReadingsQuery+` ORDER BY recorded_at ASC, id ASC`,
		userID, database.FormatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query emotion history: %w", err)
	}
	defer rows.Close()

	var out []StoredReading
	for rows.Next() {
		s, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan emotion reading: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(sc scanner) (StoredReading, error) {
	var (
		s          StoredReading
		label      string
		recordedAt string
	)
	if err := sc.Scan(&s.UserID, &s.Variability, &s.Rate, &s.Coherence, &label, &s.Score, &recordedAt); err != nil {
		return StoredReading{}, err
	}
	t, err := database.ParseTime(recordedAt)
	if err != nil {
		return StoredReading{}, err
	}
	s.Label = Label(label)
	s.RecordedAt = t
	return s, nil
}
