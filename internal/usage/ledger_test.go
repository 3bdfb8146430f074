package usage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/neuroti/Psi/internal/database"
)

func newTestLedger(t *testing.T, clock func() time.Time) (*Ledger, *database.DB) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "psi.db"))
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLedger(db.SQL, clock), db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLedger_CheckAndIncrement(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 5, 10, 23, 30, 0, 0, time.UTC)
	now := day
	ledger, _ := newTestLedger(t, func() time.Time { return now })

	count, err := ledger.CheckDailyUsage(ctx, "u1", FoodAnalysis)
	if err != nil || count != 0 {
		t.Fatalf("Expected 0 for a new user, got %d, %v", count, err)
	}

	for want := 1; want <= 3; want++ {
		got, err := ledger.IncrementDailyUsage(ctx, "u1", FoodAnalysis)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got != want {
			t.Errorf("Expected count %d, got %d", want, got)
		}
	}

	t.Run("FeaturesAreIndependent", func(t *testing.T) {
		n, _ := ledger.CheckDailyUsage(ctx, "u1", FridgeScan)
		if n != 0 {
			t.Errorf("Expected fridge usage 0, got %d", n)
		}
	})

	t.Run("UsersAreIndependent", func(t *testing.T) {
		n, _ := ledger.CheckDailyUsage(ctx, "u2", FoodAnalysis)
		if n != 0 {
			t.Errorf("Expected u2 usage 0, got %d", n)
		}
	})

	t.Run("NewDayResets", func(t *testing.T) {
		now = day.Add(time.Hour)
		n, _ := ledger.CheckDailyUsage(ctx, "u1", FoodAnalysis)
		if n != 0 {
			t.Errorf("Expected reset on the next UTC day, got %d", n)
		}
	})
}

func TestLedger_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, fixedClock(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)))

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.IncrementDailyUsage(ctx, "u1", WellnessCheck); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Increment failed: %v", err)
	}
	count, err := ledger.CheckDailyUsage(ctx, "u1", WellnessCheck)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if count != n {
		t.Errorf("Expected %d, got %d", n, count)
	}
}

func TestLedger_Allow(t *testing.T) {
	ctx := context.Background()
	ledger, db := newTestLedger(t, fixedClock(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)))

	remaining, err := ledger.Allow(ctx, "u1", FoodAnalysis, 3)
	if err != nil || remaining != 3 {
		t.Fatalf("Expected 3 remaining, got %d, %v", remaining, err)
	}

	for i := 0; i < 3; i++ {
		ledger.IncrementDailyUsage(ctx, "u1", FoodAnalysis)
	}
	if _, err := ledger.Allow(ctx, "u1", FoodAnalysis, 3); !errors.Is(err, ErrLimitReached) {
		t.Errorf("Expected ErrLimitReached, got %v", err)
	}

	if remaining, err := ledger.Allow(ctx, "u1", FoodAnalysis, 0); err != nil || remaining != -1 {
		t.Errorf("Expected unlimited, got %d, %v", remaining, err)
	}

	t.Run("FailsClosed", func(t *testing.T) {
		db.Close()
		_, err := ledger.Allow(ctx, "u1", FridgeScan, 3)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("Expected ErrUnavailable, got %v", err)
		}
		_, err = ledger.IncrementDailyUsage(ctx, "u1", FridgeScan)
		if !errors.Is(err, ErrNotRecorded) {
			t.Errorf("Expected ErrNotRecorded, got %v", err)
		}
	})
}

func TestFeatureKeys(t *testing.T) {
	want := []string{"food_analyses", "fridge_analyses", "wellness_checks"}
	for i, f := range Features {
		if f.String() != want[i] {
			t.Errorf("Expected %s, got %s", want[i], f)
		}
	}
}
