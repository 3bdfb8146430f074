package shopping

import "time"

// ShoppingList is the set of ingredients missing for a recipe.
type ShoppingList struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	RecipeID  string    `json:"recipe_id"`
	Items     []string  `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}
