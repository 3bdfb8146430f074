// Package recipe matches fridge ingredients to recipes and ranks them by how
// well they suit the cook's current emotional state.
package recipe

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/neuroti/Psi/internal/emotion"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// DefaultCookingTime applies to recipes that do not state a cooking time.
const DefaultCookingTime = 15

// Recipe is a catalog entry. Ingredients have set semantics.
type Recipe struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Ingredients        []string   `json:"ingredients"`
	CookingTimeMinutes int        `json:"cooking_time"`
	Difficulty         Difficulty `json:"difficulty"`
	Tags               []string   `json:"tags"`
	Instructions       string     `json:"instructions,omitempty"`
	SourceURL          string     `json:"source_url,omitempty"`
}

// ScoredRecipe is a recipe ranked against a fridge scan.
type ScoredRecipe struct {
	Recipe
	IngredientMatch float64 `json:"ingredient_match"`
	EmotionFit      float64 `json:"emotion_fit"`
	Available       int     `json:"available_ingredients"`
	Total           int     `json:"total_ingredients"`
}

// Score is the ranking key.
func (s ScoredRecipe) Score() float64 {
	return (s.EmotionFit + s.IngredientMatch) / 2
}

// Catalog supplies the recipes to match against.
type Catalog interface {
	All(ctx context.Context) ([]Recipe, error)
}

// preference is the cooking window and difficulty that suit an emotion.
type preference struct {
	minMinutes, maxMinutes int
	difficulty             Difficulty
}

var preferences = map[emotion.Label]preference{
	emotion.Stress:     {5, 15, Easy},
	emotion.Fatigue:    {10, 20, Easy},
	emotion.Anxiety:    {5, 10, Easy},
	emotion.Happiness:  {20, 40, Medium},
	emotion.Excitement: {15, 30, Medium},
	emotion.Calmness:   {20, 40, Medium},
	emotion.Focus:      {25, 45, Hard},
	emotion.Apathy:     {5, 15, Easy},
}

func preferenceFor(l emotion.Label) preference {
	if p, ok := preferences[l]; ok {
		return p
	}
	return preferences[emotion.Calmness]
}

//go:embed default_recipes.json
var defaultRecipes []byte

// DefaultRecipes returns the bundled starter catalog.
func DefaultRecipes() ([]Recipe, error) {
	var recipes []Recipe
	if err := json.Unmarshal(defaultRecipes, &recipes); err != nil {
		return nil, fmt.Errorf("failed to decode default recipes: %w", err)
	}
	return recipes, nil
}

// StaticCatalog serves a fixed recipe list.
type StaticCatalog []Recipe

func (c StaticCatalog) All(ctx context.Context) ([]Recipe, error) {
	return c, nil
}
