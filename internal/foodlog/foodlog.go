// Package foodlog persists analyzed meals.
package foodlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/emotion"
	"github.com/neuroti/Psi/internal/nutrition"
)

// Record is one analyzed meal. EmotionLabel and EmotionScore are nil when
// the analysis had no biometrics.
type Record struct {
	ID            string                    `json:"id"`
	UserID        string                    `json:"user_id"`
	ImageURL      string                    `json:"image_url"`
	Items         []nutrition.ItemNutrition `json:"items"`
	TotalCalories float64                   `json:"total_calories"`
	Nutrition     nutrition.Total           `json:"nutrition"`
	EmotionLabel  *emotion.Label            `json:"emotion,omitempty"`
	EmotionScore  *int                      `json:"emotion_score,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// Repository stores records in food_records.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save inserts rec, assigning an id and timestamp when they are unset, and
// returns the stored id.
func (r *Repository) Save(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	items, err := json.Marshal(rec.Items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal food items: %w", err)
	}
	total, err := json.Marshal(rec.Nutrition)
	if err != nil {
		return "", fmt.Errorf("failed to marshal nutrition: %w", err)
	}

	var label sql.NullString
	if rec.EmotionLabel != nil {
		label = sql.NullString{String: string(*rec.EmotionLabel), Valid: true}
	}
	var score sql.NullInt64
	if rec.EmotionScore != nil {
		score = sql.NullInt64{Int64: int64(*rec.EmotionScore), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO food_records (id, user_id, image_url, items, total_calories, nutrition, emotion, emotion_score, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.ImageURL, string(items), rec.TotalCalories, string(total),
		label, score, database.FormatTime(rec.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("failed to save food record: %w", err)
	}
	return rec.ID, nil
}

// List returns a page of the user's records, newest first.
func (r *Repository) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, image_url, items, total_calories, nutrition, emotion, emotion_score, created_at
FROM food_records
WHERE user_id = ?
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query food records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec              Record
			items, total, ts string
			label            sql.NullString
			score            sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ImageURL, &items, &rec.TotalCalories, &total, &label, &score, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan food record: %w", err)
		}
		if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal food items: %w", err)
		}
		if err := json.Unmarshal([]byte(total), &rec.Nutrition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nutrition: %w", err)
		}
		if label.Valid {
			l := emotion.Label(label.String)
			rec.EmotionLabel = &l
		}
		if score.Valid {
			s := int(score.Int64)
			rec.EmotionScore = &s
		}
		if rec.CreatedAt, err = database.ParseTime(ts); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
