package nutrition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neuroti/Psi/internal/cache"
	"github.com/neuroti/Psi/internal/detection"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/metrics"
)

const DefaultCacheTTL = 24 * time.Hour

// Aggregator scales reference profiles to portion sizes, with a result cache
// in front of the store.
type Aggregator struct {
	store Store
	cache cache.Cache
	ttl   time.Duration
}

func NewAggregator(store Store, c cache.Cache, ttl time.Duration) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Aggregator{store: store, cache: c, ttl: ttl}
}

func lookupKey(name string, grams float64) string {
	return fmt.Sprintf("nutrition:%s:%g", strings.ToLower(strings.TrimSpace(name)), grams)
}

// Lookup returns the profile of name scaled to grams. Unknown foods return
// false without an error and are not cached.
func (a *Aggregator) Lookup(ctx context.Context, name string, grams float64) (Profile, bool, error) {
	key := lookupKey(name, grams)

	if a.cache != nil {
		var cached Profile
		hit, err := cache.GetJSON(ctx, a.cache, key, &cached)
		if err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("nutrition cache read failed")
		}
		if hit {
			metrics.NutritionLookups.WithLabelValues("cache_hit").Inc()
			return cached, true, nil
		}
	}

	ref, found, err := a.store.FindByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if !found {
		metrics.NutritionLookups.WithLabelValues("not_found").Inc()
		return nil, false, nil
	}
	metrics.NutritionLookups.WithLabelValues("found").Inc()

	scaled := ref.Scale(grams)
	if a.cache != nil {
		if err := cache.SetJSON(ctx, a.cache, key, scaled, a.ttl); err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("nutrition cache write failed")
		}
	}
	return scaled, true, nil
}

// ItemNutrition is the nutrition of one detected item.
type ItemNutrition struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Grams      float64 `json:"grams"`
	Calories   float64 `json:"calories"`
	Nutrition  Profile `json:"nutrition"`
	Found      bool    `json:"found"`
}

// Analyze looks up every item and sums the results. Items missing from the
// reference data contribute nothing to the total and are reported with
// Found=false.
func (a *Aggregator) Analyze(ctx context.Context, items []detection.DetectedItem) ([]ItemNutrition, Total, error) {
	out := make([]ItemNutrition, 0, len(items))
	profiles := make([]Profile, 0, len(items))

	for _, it := range items {
		p, found, err := a.Lookup(ctx, it.Label, it.EstimatedMassGrams)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up nutrition: %w", err)
		}
		if !found {
			logging.Info().Str("food", it.Label).Msg("no nutrition reference for detected food")
			p = Profile{}
		}
		out = append(out, ItemNutrition{
			Name:       it.Label,
			Confidence: it.Confidence,
			Grams:      it.EstimatedMassGrams,
			Calories:   p["calories"],
			Nutrition:  p,
			Found:      found,
		})
		profiles = append(profiles, p)
	}

	return out, Sum(profiles...), nil
}
