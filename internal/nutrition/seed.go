package nutrition

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/goccy/go-json"
)

//go:embed default_foods.json
var defaultFoods []byte

// Entry is one reference food, per 100 g.
type Entry struct {
	Name      string  `json:"name"`
	Nutrients Profile `json:"nutrients"`
}

// DefaultEntries returns the bundled reference foods.
func DefaultEntries() ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(defaultFoods, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode default foods: %w", err)
	}
	return entries, nil
}

const upsertReferenceQuery = `
INSERT INTO nutrition_reference (name, calories, protein, carbs, fat, fiber, sugar, sodium, calcium, iron, vitamin_a, vitamin_c)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	calories = excluded.calories,
	protein = excluded.protein,
	carbs = excluded.carbs,
	fat = excluded.fat,
	fiber = excluded.fiber,
	sugar = excluded.sugar,
	sodium = excluded.sodium,
	calcium = excluded.calcium,
	iron = excluded.iron,
	vitamin_a = excluded.vitamin_a,
	vitamin_c = excluded.vitamin_c`

// Seed upserts entries in one transaction. New names get ids in slice order,
// which is also their match priority.
func Seed(ctx context.Context, db *sql.DB, entries []Entry) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertReferenceQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		args := make([]any, 0, len(Nutrients)+1)
		args = append(args, e.Name)
		for _, n := range Nutrients {
			args = append(args, e.Nutrients[n])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to seed %q: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}
	return len(entries), nil
}
