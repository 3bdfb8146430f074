package foodlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/emotion"
	"github.com/neuroti/Psi/internal/nutrition"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "foodlog.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.SQL)
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	label := emotion.Stress
	score := 88
	withEmotion := Record{
		UserID:        "u1",
		ImageURL:      "local://placeholder",
		Items:         []nutrition.ItemNutrition{{Name: "apple", Confidence: 0.95, Grams: 100, Calories: 52, Found: true, Nutrition: nutrition.Profile{"calories": 52}}},
		TotalCalories: 52,
		Nutrition:     nutrition.Total{"calories": 52},
		EmotionLabel:  &label,
		EmotionScore:  &score,
		CreatedAt:     base,
	}

	id, err := repo.Save(ctx, withEmotion)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("Expected generated uuid, got %q", id)
	}

	for i := 1; i <= 3; i++ {
		if _, err := repo.Save(ctx, Record{UserID: "u1", ImageURL: "x", CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if _, err := repo.Save(ctx, Record{UserID: "u2", ImageURL: "y", CreatedAt: base}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Run("NewestFirst", func(t *testing.T) {
		page, err := repo.List(ctx, "u1", 2, 0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(page))
		}
		if !page[0].CreatedAt.Equal(base.Add(3*time.Hour)) || page[0].EmotionLabel != nil {
			t.Errorf("Unexpected first record %+v", page[0])
		}
	})

	t.Run("Offset", func(t *testing.T) {
		page, err := repo.List(ctx, "u1", 10, 3)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page) != 1 || page[0].ID != id {
			t.Fatalf("Expected the oldest record, got %+v", page)
		}
		rec := page[0]
		if rec.EmotionLabel == nil || *rec.EmotionLabel != emotion.Stress || *rec.EmotionScore != 88 {
			t.Errorf("Expected stored emotion, got %+v", rec)
		}
		if len(rec.Items) != 1 || rec.Items[0].Name != "apple" || rec.Nutrition.Calories() != 52 {
			t.Errorf("Expected stored items and totals, got %+v", rec)
		}
	})

	t.Run("EmptyPage", func(t *testing.T) {
		page, err := repo.List(ctx, "nobody", 10, 0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if page == nil || len(page) != 0 {
			t.Errorf("Expected empty non-nil page, got %#v", page)
		}
	})
}
