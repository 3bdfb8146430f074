package nutrition

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/neuroti/Psi/internal/cache"
	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/detection"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "psi.db"))
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSum(t *testing.T) {
	a := Profile{"calories": 60, "protein": 1.25}
	b := Profile{"calories": 40, "fat": 0.5}

	total := Sum(a, b)
	if total.Calories() != 100 {
		t.Errorf("Expected 100 kcal, got %v", total.Calories())
	}
	if total["protein"] != 1.3 {
		t.Errorf("Expected protein rounded to 1.3, got %v", total["protein"])
	}
	for _, n := range Nutrients {
		if _, ok := total[n]; !ok {
			t.Errorf("Expected %s in total", n)
		}
	}

	empty := Sum()
	if empty.Calories() != 0 || len(empty) != len(Nutrients) {
		t.Errorf("Expected zeroed total, got %+v", empty)
	}
}

func TestProfileScale(t *testing.T) {
	p := Profile{"calories": 52, "vitamin_c": 4.6}
	got := p.Scale(150)
	if got["calories"] != 78 {
		t.Errorf("Expected 78 kcal for 150g, got %v", got["calories"])
	}
	if got["vitamin_c"] != 6.9 {
		t.Errorf("Expected 6.9 mg vitamin C, got %v", got["vitamin_c"])
	}
	if p["calories"] != 52 {
		t.Error("Scale must not modify the reference profile")
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := Seed(ctx, db.SQL, []Entry{
		{Name: "rice cake", Nutrients: Profile{"calories": 387}},
		{Name: "White Rice", Nutrients: Profile{"calories": 130}},
		{Name: "100% juice", Nutrients: Profile{"calories": 45}},
	})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	store := NewSQLiteStore(db.SQL)

	t.Run("FirstMatchWins", func(t *testing.T) {
		p, found, err := store.FindByName(ctx, "rice")
		if err != nil || !found {
			t.Fatalf("Expected match, got found=%v err=%v", found, err)
		}
		if p["calories"] != 387 {
			t.Errorf("Expected the lowest id to win, got %v kcal", p["calories"])
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		p, found, _ := store.FindByName(ctx, "WHITE rice")
		if !found || p["calories"] != 130 {
			t.Errorf("Expected white rice, got %+v", p)
		}
	})

	t.Run("WildcardsAreEscaped", func(t *testing.T) {
		if _, found, _ := store.FindByName(ctx, "_"); found {
			t.Error("Expected underscore to match literally")
		}
		if _, found, _ := store.FindByName(ctx, "100%"); !found {
			t.Error("Expected literal percent to match")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, found, err := store.FindByName(ctx, "dragonfruit")
		if err != nil || found {
			t.Errorf("Expected clean miss, got found=%v err=%v", found, err)
		}
	})

	t.Run("SeedUpserts", func(t *testing.T) {
		if _, err := Seed(ctx, db.SQL, []Entry{{Name: "White Rice", Nutrients: Profile{"calories": 131}}}); err != nil {
			t.Fatalf("Seed failed: %v", err)
		}
		p, _, _ := store.FindByName(ctx, "white rice")
		if p["calories"] != 131 {
			t.Errorf("Expected updated value, got %v", p["calories"])
		}
	})
}

func TestDefaultEntries(t *testing.T) {
	entries, err := DefaultEntries()
	if err != nil {
		t.Fatalf("DefaultEntries failed: %v", err)
	}
	if len(entries) < 20 {
		t.Errorf("Expected bundled foods, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Name == "" || e.Nutrients["calories"] < 0 {
			t.Errorf("Invalid entry %+v", e)
		}
	}
}

type countingStore struct {
	Store
	calls int
}

func (c *countingStore) FindByName(ctx context.Context, name string) (Profile, bool, error) {
	c.calls++
	return c.Store.FindByName(ctx, name)
}

func TestAggregator(t *testing.T) {
	ctx := context.Background()
	c, err := cache.Open("")
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer c.Close()

	store := &countingStore{Store: NewStaticStore(map[string]Profile{
		"food a": {"calories": 60},
		"food b": {"calories": 40},
	})}
	agg := NewAggregator(store, c, 0)

	t.Run("CaloriesAddUp", func(t *testing.T) {
		items := []detection.DetectedItem{
			{Label: "food a", Confidence: 0.9, EstimatedMassGrams: 100},
			{Label: "food b", Confidence: 0.9, EstimatedMassGrams: 100},
		}
		per, total, err := agg.Analyze(ctx, items)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if total.Calories() != 100 {
			t.Errorf("Expected 100 kcal, got %v", total.Calories())
		}
		if len(per) != 2 || per[0].Calories != 60 || per[1].Calories != 40 {
			t.Errorf("Unexpected per-item nutrition %+v", per)
		}
	})

	t.Run("LookupIsCached", func(t *testing.T) {
		before := store.calls
		if _, _, err := agg.Lookup(ctx, "Food A", 100); err != nil {
			t.Fatal(err)
		}
		if store.calls != before {
			t.Errorf("Expected cache hit, store called %d more times", store.calls-before)
		}
	})

	t.Run("UnknownFoodContributesNothing", func(t *testing.T) {
		items := []detection.DetectedItem{
			{Label: "food a", EstimatedMassGrams: 200},
			{Label: "mystery stew", EstimatedMassGrams: 300},
		}
		per, total, err := agg.Analyze(ctx, items)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if total.Calories() != 120 {
			t.Errorf("Expected 120 kcal, got %v", total.Calories())
		}
		if per[1].Found || per[1].Calories != 0 {
			t.Errorf("Expected not-found item, got %+v", per[1])
		}
	})

	t.Run("MissesAreNotCached", func(t *testing.T) {
		before := store.calls
		agg.Lookup(ctx, "mystery stew", 50)
		agg.Lookup(ctx, "mystery stew", 50)
		if store.calls-before != 2 {
			t.Errorf("Expected both misses to reach the store, got %d", store.calls-before)
		}
	})

	t.Run("NilCache", func(t *testing.T) {
		plain := NewAggregator(store, nil, 0)
		p, found, err := plain.Lookup(ctx, "food b", 50)
		if err != nil || !found || p["calories"] != 20 {
			t.Errorf("Expected 20 kcal, got %+v found=%v err=%v", p, found, err)
		}
	})
}
