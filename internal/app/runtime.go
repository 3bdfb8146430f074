package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neuroti/Psi/internal/cache"
	"github.com/neuroti/Psi/internal/config"
	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/detection"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/metrics"
	"github.com/neuroti/Psi/internal/nutrition"
	"github.com/neuroti/Psi/internal/recipe"
	"github.com/neuroti/Psi/internal/storage"
	"github.com/neuroti/Psi/internal/vision"
)

// Runtime is a fully wired App together with the resources it owns.
type Runtime struct {
	App     *App
	DB      *database.DB
	Cache   *cache.BadgerCache
	Metrics *metrics.Store

	gemini *vision.Gemini
}

// Bootstrap opens storage, builds the classifiers and seeds empty reference
// tables. Callers must Close the returned Runtime.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	rt := &Runtime{DB: db, Metrics: metrics.NewStore(db.SQL)}

	if err := SeedDefaults(ctx, db.SQL, true); err != nil {
		rt.Close()
		return nil, err
	}

	rt.Cache, err = cache.Open(cfg.Cache.Dir)
	if err != nil {
		rt.Close()
		return nil, err
	}

	primary, err := vision.NewRekognition(ctx, cfg.AWS.Region, vision.RekognitionOptions{
		MaxLabels:     cfg.AWS.MaxLabels,
		MinConfidence: cfg.Detection.MinConfidence,
		Timeout:       cfg.Detection.PrimaryTimeout,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create primary classifier: %w", err)
	}

	var fallback detection.FallbackClassifier
	if cfg.Gemini.Enabled && cfg.Gemini.APIKey != "" {
		rt.gemini, err = vision.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create fallback classifier: %w", err)
		}
		fallback = vision.NewBreakerFallback(rt.gemini, vision.BreakerSettings{})
	} else {
		logging.Warn().Msg("fallback classifier disabled, low-confidence detections are returned as they are")
	}

	detector := detection.NewHybridDetector(primary, fallback, rt.Cache, detection.Options{
		HighConfidenceThreshold: cfg.Detection.HighConfidenceThreshold,
		FallbackTimeout:         cfg.Detection.FallbackTimeout,
		CacheTTL:                cfg.Cache.TTL,
		MaxConcurrency:          cfg.Detection.MaxConcurrency,
		PrimaryModel:            "rekognition",
		FallbackModel:           cfg.Gemini.Model,
	})
	aggregator := nutrition.NewAggregator(nutrition.NewSQLiteStore(db.SQL), rt.Cache, cfg.Cache.TTL)

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.App = NewApp(cfg, db, detector, aggregator, images, rt.Metrics)
	return rt, nil
}

func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	if cfg.Storage.Bucket != "" {
		s, err := storage.NewS3Store(ctx, cfg.Storage.Bucket, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 image store: %w", err)
		}
		return s, nil
	}
	s, err := storage.NewLocalStore(cfg.Storage.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create local image store: %w", err)
	}
	return s, nil
}

// Close releases everything the runtime opened.
func (r *Runtime) Close() {
	if r.gemini != nil {
		r.gemini.Close()
	}
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close cache")
		}
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close database")
		}
	}
}

// SeedDefaults loads the bundled nutrition table and recipe catalog. With
// onlyEmpty set, a table that already has rows is left untouched.
func SeedDefaults(ctx context.Context, db *sql.DB, onlyEmpty bool) error {
	if _, err := SeedNutrition(ctx, db, onlyEmpty); err != nil {
		return err
	}
	if _, err := SeedRecipes(ctx, recipe.NewRepository(db), onlyEmpty); err != nil {
		return err
	}
	return nil
}

// SeedNutrition upserts the bundled reference foods and returns how many
// were written.
func SeedNutrition(ctx context.Context, db *sql.DB, onlyEmpty bool) (int, error) {
	if onlyEmpty {
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nutrition_reference`).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count nutrition entries: %w", err)
		}
		if n > 0 {
			return 0, nil
		}
	}
	entries, err := nutrition.DefaultEntries()
	if err != nil {
		return 0, err
	}
	n, err := nutrition.Seed(ctx, db, entries)
	if err != nil {
		return 0, err
	}
	logging.Info().Int("entries", n).Msg("seeded nutrition reference")
	return n, nil
}

// SeedRecipes saves the bundled recipe catalog and returns how many recipes
// were written.
func SeedRecipes(ctx context.Context, repo *recipe.Repository, onlyEmpty bool) (int, error) {
	if onlyEmpty {
		n, err := repo.Count(ctx)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, nil
		}
	}
	recipes, err := recipe.DefaultRecipes()
	if err != nil {
		return 0, err
	}
	for _, r := range recipes {
		if err := repo.Save(ctx, r); err != nil {
			return 0, err
		}
	}
	logging.Info().Int("recipes", len(recipes)).Msg("seeded recipe catalog")
	return len(recipes), nil
}
