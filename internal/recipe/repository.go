package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/neuroti/Psi/internal/database"
)

// ErrNotFound is returned when a recipe id does not exist.
var ErrNotFound = errors.New("recipe not found")

// Repository is a database-backed repository for recipes.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const (
	upsertRecipeQuery = `
INSERT INTO recipes (id, name, ingredients, cooking_time, difficulty, tags, instructions, source_url, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	ingredients = excluded.ingredients,
	cooking_time = excluded.cooking_time,
	difficulty = excluded.difficulty,
	tags = excluded.tags,
	instructions = excluded.instructions,
	source_url = excluded.source_url,
	updated_at = excluded.updated_at`

	selectRecipeColumns = `SELECT id, name, ingredients, cooking_time, difficulty, tags, instructions, source_url FROM recipes`
)

// Save inserts or updates a recipe in the database.
func (r *Repository) Save(ctx context.Context, rec Recipe) error {
	if rec.Difficulty == "" {
		rec.Difficulty = Easy
	}
	if rec.CookingTimeMinutes <= 0 {
		rec.CookingTimeMinutes = DefaultCookingTime
	}

	ingredients, err := json.Marshal(nonNil(rec.Ingredients))
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, upsertRecipeQuery,
		rec.ID, rec.Name, string(ingredients), rec.CookingTimeMinutes, string(rec.Difficulty),
		string(tags), rec.Instructions, rec.SourceURL, database.FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save recipe %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a recipe by its ID.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	rec, err := scanRecipe(r.db.QueryRowContext(ctx, selectRecipeColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}
	return &rec, nil
}

// All lists every recipe in insertion order.
func (r *Repository) All(ctx context.Context) ([]Recipe, error) {
	rows, err := r.db.QueryContext(ctx, selectRecipeColumns+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, rec)
	}
	return recipes, rows.Err()
}

// Count returns the number of recipes in the database.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(sc rowScanner) (Recipe, error) {
	var (
		rec               Recipe
		ingredients, tags string
		difficulty        string
	)
	err := sc.Scan(&rec.ID, &rec.Name, &ingredients, &rec.CookingTimeMinutes, &difficulty, &tags, &rec.Instructions, &rec.SourceURL)
	if err != nil {
		return Recipe{}, err
	}
	if err := json.Unmarshal([]byte(ingredients), &rec.Ingredients); err != nil {
		return Recipe{}, fmt.Errorf("failed to unmarshal ingredients for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return Recipe{}, fmt.Errorf("failed to unmarshal tags for %s: %w", rec.ID, err)
	}
	rec.Difficulty = Difficulty(difficulty)
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// PreferenceRepository stores per-user dietary preferences.
type PreferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns the user's preferences, empty when none are stored.
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (Preferences, error) {
	var restrictions, disliked string
	err := r.db.QueryRowContext(ctx,
		`SELECT dietary_restrictions, disliked_foods FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&restrictions, &disliked)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}

	var p Preferences
	if err := json.Unmarshal([]byte(restrictions), &p.DietaryRestrictions); err != nil {
		return Preferences{}, fmt.Errorf("failed to unmarshal dietary restrictions: %w", err)
	}
	if err := json.Unmarshal([]byte(disliked), &p.DislikedFoods); err != nil {
		return Preferences{}, fmt.Errorf("failed to unmarshal disliked foods: %w", err)
	}
	return p, nil
}

// Save replaces the user's preferences.
func (r *PreferenceRepository) Save(ctx context.Context, userID string, p Preferences) error {
	restrictions, err := json.Marshal(nonNil(p.DietaryRestrictions))
	if err != nil {
		return fmt.Errorf("failed to marshal dietary restrictions: %w", err)
	}
	disliked, err := json.Marshal(nonNil(p.DislikedFoods))
	if err != nil {
		return fmt.Errorf("failed to marshal disliked foods: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO user_preferences (user_id, dietary_restrictions, disliked_foods, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	dietary_restrictions = excluded.dietary_restrictions,
	disliked_foods = excluded.disliked_foods,
	updated_at = excluded.updated_at`,
		userID, string(restrictions), string(disliked), database.FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
