package recipe

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/neuroti/Psi/internal/emotion"
)

// MinIngredientMatch is the share of required ingredients a recipe needs to
// be suggested at all.
const MinIngredientMatch = 0.70

// Matcher ranks catalog recipes against available ingredients.
type Matcher struct {
	catalog Catalog
}

func NewMatcher(catalog Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// Match returns up to topK recipes, best first. topK <= 0 returns every
// feasible recipe.
func (m *Matcher) Match(ctx context.Context, available []string, mood emotion.Label, topK int) ([]ScoredRecipe, error) {
	recipes, err := m.catalog.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}

	have := toSet(available)
	var scored []ScoredRecipe
	for _, r := range recipes {
		need := toSet(r.Ingredients)
		matched := 0
		for ing := range need {
			if have[ing] {
				matched++
			}
		}
		ratio := 0.0
		if len(need) > 0 {
			ratio = float64(matched) / float64(len(need))
		}
		if ratio < MinIngredientMatch {
			continue
		}
		scored = append(scored, ScoredRecipe{
			Recipe:          r,
			IngredientMatch: ratio,
			EmotionFit:      emotionFit(r, mood),
			Available:       matched,
			Total:           len(need),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score() > scored[j].Score()
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func emotionFit(r Recipe, mood emotion.Label) float64 {
	p := preferenceFor(mood)

	t := r.CookingTimeMinutes
	if t <= 0 {
		t = DefaultCookingTime
	}
	mid := float64(p.minMinutes+p.maxMinutes) / 2

	fit := 0.5
	fit += 0.25 * math.Max(0, 1-math.Abs(float64(t)-mid)/30)
	if r.Difficulty == p.difficulty {
		fit += 0.25
	}
	return math.Max(0, math.Min(1, fit))
}

// ShoppingList returns the required ingredients not in available, sorted.
func ShoppingList(required, available []string) []string {
	have := toSet(available)
	missing := make([]string, 0)
	for ing := range toSet(required) {
		if !have[ing] {
			missing = append(missing, ing)
		}
	}
	sort.Strings(missing)
	return missing
}

// Preferences are a user's standing dietary constraints.
type Preferences struct {
	DietaryRestrictions []string `json:"dietary_restrictions"`
	DislikedFoods       []string `json:"disliked_foods"`
}

// FilterByPreferences drops recipes tagged with a restriction or containing a
// disliked food. Both tests are substring matches, so a restriction "vegan"
// also excludes a "non-vegan" tag.
func FilterByPreferences(recipes []Recipe, prefs Preferences) []Recipe {
	restrictions := lowerAll(prefs.DietaryRestrictions)
	dislikes := lowerAll(prefs.DislikedFoods)

	out := make([]Recipe, 0, len(recipes))
outer:
	for _, r := range recipes {
		tags := lowerAll(r.Tags)
		for _, res := range restrictions {
			for _, tag := range tags {
				if strings.Contains(tag, res) {
					continue outer
				}
			}
		}
		joined := strings.Join(lowerAll(r.Ingredients), " ")
		for _, d := range dislikes {
			if strings.Contains(joined, d) {
				continue outer
			}
		}
		out = append(out, r)
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		if s := strings.ToLower(strings.TrimSpace(it)); s != "" {
			set[s] = true
		}
	}
	return set
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.ToLower(strings.TrimSpace(it)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
