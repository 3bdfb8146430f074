package app

import (
	"context"
	"time"

	"github.com/neuroti/Psi/internal/emotion"
	"github.com/neuroti/Psi/internal/foodlog"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/nutrition"
	"github.com/neuroti/Psi/internal/shared"
	"github.com/neuroti/Psi/internal/usage"
)

// PlaceholderImageURL is stored when the image archive is unavailable.
const PlaceholderImageURL = "local://placeholder"

const (
	baseXP    = 15
	xpPerItem = 5
)

// FoodRequest is a single meal photo, optionally with wearable readings.
type FoodRequest struct {
	UserID      string   `validate:"required"`
	Image       []byte   `validate:"-"`
	Filename    string   `validate:"-"`
	Variability *float64 `validate:"omitnil,gte=10,lte=200"`
	Rate        *float64 `validate:"omitnil,gte=30,lte=220"`
}

// FoodAnalysis is the result of AnalyzeFoodImage. QuotaRemaining is -1 when
// the quota is unlimited.
type FoodAnalysis struct {
	RecordID       string                    `json:"record_id"`
	Items          []nutrition.ItemNutrition `json:"items"`
	TotalCalories  float64                   `json:"total_calories"`
	Nutrition      nutrition.Total           `json:"nutrition"`
	Emotion        *emotion.Reading          `json:"emotion,omitempty"`
	Recommendation string                    `json:"recommendation"`
	QuotaRemaining int                       `json:"quota_remaining"`
	XPGained       int                       `json:"xp_gained"`
	ImageURL       string                    `json:"image_url"`
}

// AnalyzeFoodImage detects the foods in a meal photo, totals their nutrition
// and, when biometrics are supplied, tailors the recommendation to the
// user's emotional state.
func (a *App) AnalyzeFoodImage(ctx context.Context, req FoodRequest) (*FoodAnalysis, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := validateImage(req.Image, a.cfg.Limits); err != nil {
		return nil, err
	}

	remaining, err := a.allow(ctx, req.UserID, usage.FoodAnalysis)
	if err != nil {
		return nil, err
	}

	imageURL := a.archive(ctx, req.UserID, req.Filename, req.Image)

	items, metas, err := a.detector.DetectWithMeta(ctx, req.Image)
	a.recordMetas(ctx, metas)
	if err != nil {
		return nil, newError(CategoryUpstream, CodeClassifierFailed,
			"We couldn't analyze your image right now. Please try again.", err)
	}
	if len(items) == 0 {
		return nil, newError(CategoryNotFound, CodeNoFoodDetected,
			"We couldn't detect any food in your image. Please upload a clearer photo of your meal.", nil)
	}

	start := time.Now()
	perItem, total, err := a.aggregator.Analyze(ctx, items)
	a.recordMetas(ctx, []shared.StageMeta{stageMeta("nutrition", start, err)})
	if err != nil {
		return nil, storageError(err)
	}

	var reading *emotion.Reading
	if hrv, hr, ok := resolveBiometrics(req.Variability, req.Rate); ok {
		r := emotion.Classify(hrv, hr, emotion.DefaultCoherence)
		reading = &r
	}

	result := &FoodAnalysis{
		Items:          perItem,
		TotalCalories:  total.Calories(),
		Nutrition:      total,
		Emotion:        reading,
		Recommendation: emotion.Compose(reading, total),
		QuotaRemaining: afterUse(remaining),
		XPGained:       baseXP + xpPerItem*len(items),
		ImageURL:       imageURL,
	}

	rec := foodlog.Record{
		UserID:        req.UserID,
		ImageURL:      imageURL,
		Items:         perItem,
		TotalCalories: result.TotalCalories,
		Nutrition:     total,
		CreatedAt:     a.now(),
	}
	if reading != nil {
		rec.EmotionLabel = &reading.Label
		rec.EmotionScore = &reading.Score
	}
	if result.RecordID, err = a.foods.Save(ctx, rec); err != nil {
		return nil, storageError(err)
	}

	if err := a.record(ctx, req.UserID, usage.FoodAnalysis); err != nil {
		logging.Error().Err(err).
			Str("user_id", req.UserID).
			Str("record_id", result.RecordID).
			Int("items", len(perItem)).
			Float64("total_calories", result.TotalCalories).
			Msg("food analysis completed but usage was not recorded")
		return nil, err
	}

	logging.Info().Str("user_id", req.UserID).Int("items", len(perItem)).Msg("food analysis completed")
	return result, nil
}

// archive stores the raw image. A failure is logged and the placeholder URL
// is used instead.
func (a *App) archive(ctx context.Context, userID, filename string, data []byte) string {
	if a.images == nil {
		return PlaceholderImageURL
	}
	start := time.Now()
	url, err := a.images.Put(ctx, userID, filename, data)
	a.recordMetas(ctx, []shared.StageMeta{stageMeta("archive", start, err)})
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("image archive failed, using placeholder")
		return PlaceholderImageURL
	}
	return url
}

func stageMeta(stage string, start time.Time, err error) shared.StageMeta {
	m := shared.StageMeta{Stage: stage, Outcome: shared.OutcomeSuccess, Latency: time.Since(start)}
	if err != nil {
		m.Outcome = shared.OutcomeFailure
	}
	return m
}

// afterUse converts the remaining count before a request into the count
// after it. Unlimited stays -1.
func afterUse(remaining int) int {
	if remaining < 0 {
		return -1
	}
	return remaining - 1
}
