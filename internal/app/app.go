package app

import (
	"context"
	"time"

	"github.com/neuroti/Psi/internal/config"
	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/detection"
	"github.com/neuroti/Psi/internal/emotion"
	"github.com/neuroti/Psi/internal/foodlog"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/metrics"
	"github.com/neuroti/Psi/internal/nutrition"
	"github.com/neuroti/Psi/internal/recipe"
	"github.com/neuroti/Psi/internal/shared"
	"github.com/neuroti/Psi/internal/shopping"
	"github.com/neuroti/Psi/internal/storage"
	"github.com/neuroti/Psi/internal/usage"
)

// App holds the application's dependencies.
type App struct {
	cfg          *config.Config
	detector     *detection.HybridDetector
	aggregator   *nutrition.Aggregator
	images       storage.ImageStore
	metricsStore *metrics.Store

	ledger      *usage.Ledger
	readings    *emotion.Repository
	foods       *foodlog.Repository
	recipes     *recipe.Repository
	preferences *recipe.PreferenceRepository
	shopping    *shopping.Repository
	matcher     *recipe.Matcher

	now func() time.Time
}

// NewApp creates and initializes a new App instance. The repositories are
// built on db.
func NewApp(
	cfg *config.Config,
	db *database.DB,
	detector *detection.HybridDetector,
	aggregator *nutrition.Aggregator,
	images storage.ImageStore,
	metricsStore *metrics.Store,
) *App {
	a := &App{
		cfg:          cfg,
		detector:     detector,
		aggregator:   aggregator,
		images:       images,
		metricsStore: metricsStore,
		readings:     emotion.NewRepository(db.SQL),
		foods:        foodlog.NewRepository(db.SQL),
		recipes:      recipe.NewRepository(db.SQL),
		preferences:  recipe.NewPreferenceRepository(db.SQL),
		shopping:     shopping.NewRepository(db.SQL),
		now:          time.Now,
	}
	a.ledger = usage.NewLedger(db.SQL, func() time.Time { return a.now() })
	a.matcher = recipe.NewMatcher(a.recipes)
	return a
}

// Recipes exposes the recipe repository for seeding and import.
func (a *App) Recipes() *recipe.Repository {
	return a.recipes
}

// SavePreferences stores the dietary preferences used by fridge scans.
func (a *App) SavePreferences(ctx context.Context, userID string, p recipe.Preferences) error {
	if err := a.preferences.Save(ctx, userID, p); err != nil {
		return storageError(err)
	}
	return nil
}

// allow checks the daily quota before any work runs.
func (a *App) allow(ctx context.Context, userID string, f usage.Feature) (int, error) {
	remaining, err := a.ledger.Allow(ctx, userID, f, a.cfg.Limits.FreeTierDailyLimit)
	if err != nil {
		return 0, quotaError(err, a.cfg.Limits.FreeTierDailyLimit)
	}
	return remaining, nil
}

// record increments the daily counter once work has been performed.
func (a *App) record(ctx context.Context, userID string, f usage.Feature) error {
	if _, err := a.ledger.IncrementDailyUsage(ctx, userID, f); err != nil {
		return notRecordedError(err)
	}
	return nil
}

func (a *App) recordMetas(ctx context.Context, metas []shared.StageMeta) {
	if a.metricsStore == nil {
		return
	}
	for _, m := range metas {
		if err := a.metricsStore.RecordMeta(ctx, m); err != nil {
			logging.Warn().Err(err).Str("stage", m.Stage).Msg("failed to record stage metrics")
		}
	}
}

// resolveBiometrics returns classifier inputs when both values are present.
func resolveBiometrics(variability, rate *float64) (float64, float64, bool) {
	if variability == nil || rate == nil {
		return 0, 0, false
	}
	return *variability, *rate, true
}
