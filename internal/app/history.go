package app

import (
	"context"
	"errors"
	"time"

	"github.com/neuroti/Psi/internal/foodlog"
	"github.com/neuroti/Psi/internal/recipe"
	"github.com/neuroti/Psi/internal/wellness"
)

const defaultHistoryLimit = 10

var periodDays = map[string]int{
	"week":  7,
	"month": 30,
	"year":  365,
}

type foodHistoryQuery struct {
	UserID string `validate:"required"`
	Limit  int    `validate:"gte=1,lte=100"`
	Offset int    `validate:"gte=0"`
}

type wellnessHistoryQuery struct {
	UserID string `validate:"required"`
	Days   int    `validate:"gte=1,lte=90"`
}

type trendsQuery struct {
	UserID string `validate:"required"`
	Period string `validate:"oneof=week month year"`
}

type recipeQuery struct {
	ID string `validate:"required"`
}

// GetRecipe returns a recipe by id.
func (a *App) GetRecipe(ctx context.Context, id string) (*recipe.Recipe, error) {
	if err := validateStruct(recipeQuery{ID: id}); err != nil {
		return nil, err
	}
	rec, err := a.recipes.Get(ctx, id)
	if errors.Is(err, recipe.ErrNotFound) {
		return nil, newError(CategoryNotFound, CodeRecipeNotFound,
			"The recipe you're looking for doesn't exist or has been removed.", err)
	}
	if err != nil {
		return nil, storageError(err)
	}
	return rec, nil
}

// FoodHistory pages through the user's analyzed meals, newest first. A zero
// limit uses the default page size.
func (a *App) FoodHistory(ctx context.Context, userID string, limit, offset int) ([]foodlog.Record, error) {
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	if err := validateStruct(foodHistoryQuery{UserID: userID, Limit: limit, Offset: offset}); err != nil {
		return nil, err
	}
	records, err := a.foods.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, storageError(err)
	}
	return records, nil
}

// WellnessHistory summarizes the last days of readings per day, newest first.
func (a *App) WellnessHistory(ctx context.Context, userID string, days int) ([]wellness.DailySummary, error) {
	if err := validateStruct(wellnessHistoryQuery{UserID: userID, Days: days}); err != nil {
		return nil, err
	}
	readings, err := a.readings.History(ctx, userID, a.now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return nil, storageError(err)
	}
	return wellness.DailySummaries(readings), nil
}

// EmotionTrends analyzes readings over a week, month or year.
func (a *App) EmotionTrends(ctx context.Context, userID, period string) (*wellness.Trends, error) {
	if err := validateStruct(trendsQuery{UserID: userID, Period: period}); err != nil {
		return nil, err
	}
	days := periodDays[period]
	readings, err := a.readings.History(ctx, userID, a.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, storageError(err)
	}
	trends := wellness.AnalyzeTrends(readings, days)
	return &trends, nil
}
