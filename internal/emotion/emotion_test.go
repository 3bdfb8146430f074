package emotion

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/nutrition"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		variability float64
		rate        float64
		coherence   float64
		want        Label
		wantScore   int
	}{
		{"Stress", 35, 100, 0.2, Stress, 100},
		{"Fatigue", 30, 60, 0.2, Fatigue, 100},
		{"Anxiety", 90, 100, 0.1, Anxiety, 100},
		{"Happiness", 80, 75, 0.9, Happiness, 100},
		{"Excitement", 50, 100, 0.7, Excitement, 100},
		{"Calmness", 85, 60, 0.9, Calmness, 100},
		{"Focus", 60, 88, 0.95, Focus, 100},
		{"Apathy", 40, 55, 0.45, Apathy, 100},
		{"DefaultCoherence", 65, 72, DefaultCoherence, Happiness, 94},
		{"PartialMatch", 100, 130, 0, Anxiety, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Classify(tt.variability, tt.rate, tt.coherence)
			if r.Label != tt.want {
				t.Errorf("Expected %s, got %s (distribution %v)", tt.want, r.Label, r.Distribution)
			}
			if r.Score != tt.wantScore {
				t.Errorf("Expected score %d, got %d", tt.wantScore, r.Score)
			}
		})
	}
}

func TestClassify_TieGoesToEarlierLabel(t *testing.T) {
	// Stress and anxiety both score 100 here.
	r := Classify(35, 100, 0.2)
	if r.Distribution[Stress] != r.Distribution[Anxiety] {
		t.Fatalf("Expected a tie, got %v", r.Distribution)
	}
	if r.Label != Stress {
		t.Errorf("Expected stress to win the tie, got %s", r.Label)
	}
}

func TestClassify_UnstableAxis(t *testing.T) {
	p := Profiles[2]
	if p.Label != Anxiety {
		t.Fatalf("Expected anxiety profile, got %s", p.Label)
	}
	if got := axisScore(p.Variability, 0, 0.3, axisWeight, axisFalloff); got != 40 {
		t.Errorf("Expected full weight at instability 0.7, got %v", got)
	}
	if got := axisScore(p.Variability, 0, 1, axisWeight, axisFalloff); got != 0 {
		t.Errorf("Expected zero at full coherence, got %v", got)
	}
	half := axisScore(p.Variability, 0, 0.65, axisWeight, axisFalloff)
	if half <= 19 || half >= 21 {
		t.Errorf("Expected about half weight at instability 0.35, got %v", half)
	}
}

func TestClassify_DomainSweep(t *testing.T) {
	for v := 10.0; v <= 200; v += 10 {
		for r := 30.0; r <= 220; r += 10 {
			for _, c := range []float64{0, 0.25, 0.5, 0.75, 1} {
				reading := Classify(v, r, c)
				if reading.Score < 0 || reading.Score > 100 {
					t.Fatalf("Score out of range for (%v,%v,%v): %d", v, r, c, reading.Score)
				}
				if len(reading.Distribution) != len(Labels) {
					t.Fatalf("Expected all labels in the distribution, got %d", len(reading.Distribution))
				}
				for l, s := range reading.Distribution {
					if s > reading.Score {
						t.Fatalf("Label %s scored %d above the winner %d", l, s, reading.Score)
					}
				}
			}
		}
	}
}

func TestParseLabel(t *testing.T) {
	if l, ok := ParseLabel(" Calmness "); !ok || l != Calmness {
		t.Errorf("Expected calmness, got %q %v", l, ok)
	}
	if _, ok := ParseLabel("joy"); ok {
		t.Error("Expected unknown label to be rejected")
	}
}

func TestCompose(t *testing.T) {
	if got := Compose(nil, nil); got != "Enjoy your meal mindfully!" {
		t.Errorf("Unexpected default advice %q", got)
	}

	r := Classify(35, 100, 0.2)
	got := Compose(&r, nutrition.Total{"calories": 449.6})
	if !strings.HasPrefix(got, "Consider foods rich in magnesium") {
		t.Errorf("Expected stress advice, got %q", got)
	}
	if !strings.HasSuffix(got, "This meal provides about 450 kcal.") {
		t.Errorf("Expected calorie note, got %q", got)
	}

	for _, l := range Labels {
		if _, ok := mealAdvice[l]; !ok {
			t.Errorf("Missing advice for %s", l)
		}
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "psi.db"))
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	defer db.Close()
	repo := NewRepository(db.SQL)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, l := range []Label{Stress, Calmness, Focus} {
		err := repo.Save(ctx, StoredReading{
			UserID: "u1", Variability: 40, Rate: 90, Coherence: 0.5,
			Label: l, Score: 80 + i, RecordedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	repo.Save(ctx, StoredReading{UserID: "u2", Label: Apathy, RecordedAt: base})

	t.Run("History", func(t *testing.T) {
		got, err := repo.History(ctx, "u1", base.Add(30*time.Minute))
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(got) != 2 || got[0].Label != Calmness || got[1].Label != Focus {
			t.Errorf("Unexpected history %+v", got)
		}
		if !got[1].RecordedAt.Equal(base.Add(2 * time.Hour)) {
			t.Errorf("Expected timestamp to round-trip, got %v", got[1].RecordedAt)
		}
	})

	t.Run("Latest", func(t *testing.T) {
		got, err := repo.Latest(ctx, "u1", base)
		if err != nil || got == nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if got.Label != Focus || got.Score != 82 {
			t.Errorf("Expected newest reading, got %+v", got)
		}
	})

	t.Run("LatestNone", func(t *testing.T) {
		got, err := repo.Latest(ctx, "u1", base.Add(24*time.Hour))
		if err != nil || got != nil {
			t.Errorf("Expected no reading, got %+v, %v", got, err)
		}
	})
}
