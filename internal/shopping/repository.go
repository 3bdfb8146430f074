package shopping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/neuroti/Psi/internal/database"
)

// Repository handles persistence of shopping lists.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new shopping list repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save creates a new shopping list in the database.
func (r *Repository) Save(ctx context.Context, list *ShoppingList) (int64, error) {
	items := list.Items
	if items == nil {
		items = []string{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal shopping list items: %w", err)
	}

	createdAt := list.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO shopping_lists (user_id, recipe_id, items, created_at) VALUES (?, ?, ?, ?)`,
		list.UserID, list.RecipeID, string(itemsJSON), database.FormatTime(createdAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert shopping list: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read shopping list id: %w", err)
	}
	return id, nil
}

// Latest retrieves the newest shopping list of a user, nil when there is none.
func (r *Repository) Latest(ctx context.Context, userID string) (*ShoppingList, error) {
	var (
		list      ShoppingList
		items     string
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, recipe_id, items, created_at FROM shopping_lists
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, userID,
	).Scan(&list.ID, &list.UserID, &list.RecipeID, &items, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest shopping list: %w", err)
	}

	if err := json.Unmarshal([]byte(items), &list.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shopping list items: %w", err)
	}
	if list.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &list, nil
}
