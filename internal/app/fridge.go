package app

import (
	"context"
	"fmt"

	"github.com/neuroti/Psi/internal/emotion"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/recipe"
	"github.com/neuroti/Psi/internal/shopping"
	"github.com/neuroti/Psi/internal/usage"
)

const (
	candidateRecipes = 10
	returnedRecipes  = 5
)

// FridgeRequest is up to MaxFridgeImages photos of a fridge's contents.
type FridgeRequest struct {
	UserID      string   `validate:"required"`
	Images      [][]byte `validate:"-"`
	Variability *float64 `validate:"omitnil,gte=10,lte=200"`
	Rate        *float64 `validate:"omitnil,gte=30,lte=220"`
}

// Ingredient is a deduplicated detection across all fridge images.
type Ingredient struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// FridgeScan is the result of DetectFridgeIngredients.
type FridgeScan struct {
	Ingredients    []Ingredient          `json:"ingredients"`
	Recipes        []recipe.ScoredRecipe `json:"recipes"`
	ShoppingList   []string              `json:"shopping_list"`
	EmotionLabel   emotion.Label         `json:"emotion"`
	QuotaRemaining int                   `json:"quota_remaining"`
}

// DetectFridgeIngredients detects ingredients across the images and suggests
// recipes that use them, filtered by the user's preferences.
func (a *App) DetectFridgeIngredients(ctx context.Context, req FridgeRequest) (*FridgeScan, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	maxImages := a.cfg.Limits.MaxFridgeImages
	if len(req.Images) < 1 || len(req.Images) > maxImages {
		return nil, newError(CategoryValidation, CodeTooManyFiles,
			fmt.Sprintf("Please upload between 1 and %d images.", maxImages), nil)
	}
	for _, img := range req.Images {
		if err := validateImage(img, a.cfg.Limits); err != nil {
			return nil, err
		}
	}

	remaining, err := a.allow(ctx, req.UserID, usage.FridgeScan)
	if err != nil {
		return nil, err
	}

	ingredients, err := a.detectIngredients(ctx, req.Images)
	if err != nil {
		return nil, newError(CategoryUpstream, CodeClassifierFailed,
			"We couldn't analyze your images right now. Please try again.", err)
	}
	if len(ingredients) == 0 {
		return nil, newError(CategoryNotFound, CodeNoFoodDetected,
			"We couldn't detect any ingredients. Please upload clearer photos of your fridge.", nil)
	}
	names := make([]string, len(ingredients))
	for i, ing := range ingredients {
		names[i] = ing.Name
	}

	mood := emotion.Calmness
	if hrv, hr, ok := resolveBiometrics(req.Variability, req.Rate); ok {
		mood = emotion.Classify(hrv, hr, emotion.DefaultCoherence).Label
	}

	matched, err := a.matcher.Match(ctx, names, mood, candidateRecipes)
	if err != nil {
		return nil, storageError(err)
	}
	prefs, err := a.preferences.Get(ctx, req.UserID)
	if err != nil {
		return nil, storageError(err)
	}
	recipes := filterScored(matched, prefs)
	if len(recipes) > returnedRecipes {
		recipes = recipes[:returnedRecipes]
	}

	result := &FridgeScan{
		Ingredients:    ingredients,
		Recipes:        recipes,
		ShoppingList:   []string{},
		EmotionLabel:   mood,
		QuotaRemaining: afterUse(remaining),
	}
	if len(recipes) > 0 {
		first := recipes[0]
		result.ShoppingList = recipe.ShoppingList(first.Ingredients, names)
		list := &shopping.ShoppingList{UserID: req.UserID, RecipeID: first.ID, Items: result.ShoppingList, CreatedAt: a.now()}
		if _, err := a.shopping.Save(ctx, list); err != nil {
			return nil, storageError(err)
		}
	}

	if err := a.record(ctx, req.UserID, usage.FridgeScan); err != nil {
		logging.Error().Err(err).
			Str("user_id", req.UserID).
			Int("ingredients", len(ingredients)).
			Int("recipes", len(recipes)).
			Msg("fridge scan completed but usage was not recorded")
		return nil, err
	}

	logging.Info().Str("user_id", req.UserID).Int("ingredients", len(ingredients)).Int("recipes", len(recipes)).Msg("fridge scan completed")
	return result, nil
}

// detectIngredients runs every image and merges detections by name, keeping
// the highest confidence. Failed images are skipped; an error is returned
// only when every image failed.
func (a *App) detectIngredients(ctx context.Context, images [][]byte) ([]Ingredient, error) {
	var out []Ingredient
	index := make(map[string]int)

	var lastErr error
	failed := 0
	for i, res := range a.detector.DetectMany(ctx, images) {
		if res.Err != nil {
			logging.Warn().Err(res.Err).Int("image", i).Msg("fridge image detection failed, skipping")
			failed++
			lastErr = res.Err
			continue
		}
		for _, it := range res.Items {
			if j, ok := index[it.Label]; ok {
				if it.Confidence > out[j].Confidence {
					out[j].Confidence = it.Confidence
				}
				continue
			}
			index[it.Label] = len(out)
			out = append(out, Ingredient{Name: it.Label, Confidence: it.Confidence})
		}
	}
	if failed > 0 && failed == len(images) {
		return nil, lastErr
	}
	return out, nil
}

func filterScored(scored []recipe.ScoredRecipe, prefs recipe.Preferences) []recipe.ScoredRecipe {
	plain := make([]recipe.Recipe, len(scored))
	for i, s := range scored {
		plain[i] = s.Recipe
	}
	keep := make(map[string]bool)
	for _, r := range recipe.FilterByPreferences(plain, prefs) {
		keep[r.ID] = true
	}

	out := make([]recipe.ScoredRecipe, 0, len(scored))
	for _, s := range scored {
		if keep[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
