package wellness

import (
	"reflect"
	"testing"
	"time"

	"github.com/neuroti/Psi/internal/emotion"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name                string
		hrv, hr, emotionPct float64
		want                int
	}{
		{"Ideal", 100, 70, 100, 100},
		{"CapsVariability", 250, 70, 100, 100},
		{"Typical", 60, 75, 80, 77},
		{"Truncates", 55, 71, 90, 79},
		{"Floor", 0, 220, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.hrv, tt.hr, tt.emotionPct); got != tt.want {
				t.Errorf("Score(%v, %v, %v) = %d, want %d", tt.hrv, tt.hr, tt.emotionPct, got, tt.want)
			}
		})
	}
}

func TestRecommend(t *testing.T) {
	for _, l := range emotion.Labels {
		r := Recommend(l, 80)
		if len(r.Food) != 5 || len(r.Exercise) != 5 || len(r.Content) != 5 {
			t.Errorf("Expected 5 suggestions per kind for %s, got %+v", l, r)
		}
	}

	low := Recommend(emotion.Stress, 40)
	if low.Food[0] != "Prioritize hydration and rest" || len(low.Food) != 6 {
		t.Errorf("Expected hydration advice first, got %v", low.Food)
	}
	if low.Exercise[0] != "Light movement only - listen to your body" {
		t.Errorf("Expected light movement advice first, got %v", low.Exercise)
	}

	again := Recommend(emotion.Stress, 80)
	if len(again.Food) != 5 {
		t.Error("Low-score advice must not leak into later recommendations")
	}

	unknown := Recommend(emotion.Label("joy"), 80)
	if !reflect.DeepEqual(unknown, Recommend(emotion.Calmness, 80)) {
		t.Error("Expected unknown emotions to use calmness content")
	}
}

func TestDailyTip(t *testing.T) {
	first := DailyTip(emotion.Focus, 1)
	if first != "You're in the flow state. Minimize distractions and dive deep." {
		t.Errorf("Unexpected first tip %q", first)
	}
	if DailyTip(emotion.Focus, 6) != first {
		t.Error("Expected tips to rotate every 5 days")
	}
	if DailyTip(emotion.Focus, 2) == first {
		t.Error("Expected a different tip the next day")
	}
	for _, l := range emotion.Labels {
		for day := 1; day <= 31; day++ {
			if DailyTip(l, day) == "" {
				t.Fatalf("Missing tip for %s on day %d", l, day)
			}
		}
	}
}

func reading(label emotion.Label, at time.Time, hrv, hr float64, score int) emotion.StoredReading {
	return emotion.StoredReading{UserID: "u1", Label: label, RecordedAt: at, Variability: hrv, Rate: hr, Score: score}
}

func TestAnalyzeTrends(t *testing.T) {
	t.Run("NoData", func(t *testing.T) {
		got := AnalyzeTrends(nil, 7)
		if got.Message != "Not enough data for trend analysis" {
			t.Errorf("Unexpected message %q", got.Message)
		}
		if len(got.Recommendations) != 1 || got.Recommendations[0] != "Keep tracking your emotions for personalized insights" {
			t.Errorf("Unexpected recommendations %v", got.Recommendations)
		}
	})

	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	readings := []emotion.StoredReading{
		reading(emotion.Calmness, day.Add(8*time.Hour), 80, 60, 90),
		reading(emotion.Stress, day.Add(14*time.Hour), 30, 100, 80),
		reading(emotion.Anxiety, day.Add(15*time.Hour), 40, 110, 70),
		reading(emotion.Stress, day.Add(24*time.Hour+14*time.Hour), 30, 95, 60),
		reading(emotion.Focus, day.Add(24*time.Hour+19*time.Hour), 60, 85, 100),
	}

	got := AnalyzeTrends(readings, 7)

	if got.TotalReadings != 5 || got.PeriodDays != 7 {
		t.Errorf("Unexpected totals %+v", got)
	}
	if got.Dominant.Label != emotion.Stress || got.Dominant.Percentage != 40 {
		t.Errorf("Expected stress at 40%%, got %+v", got.Dominant)
	}
	if got.Distribution[emotion.Stress] != 2 || got.Distribution[emotion.Focus] != 1 {
		t.Errorf("Unexpected distribution %v", got.Distribution)
	}
	if got.Averages.Variability != 48 || got.Averages.Rate != 90 || got.Averages.EmotionScore != 80 {
		t.Errorf("Unexpected averages %+v", got.Averages)
	}
	if !reflect.DeepEqual(got.HighStressHours, []int{14, 15}) {
		t.Errorf("Expected stress hours 14-15, got %v", got.HighStressHours)
	}
	if got.BestTimeOfDay != "Morning (8:00)" {
		t.Errorf("Expected earliest fully positive hour, got %q", got.BestTimeOfDay)
	}
	want := []string{
		"Consider scheduling regular breaks and stress-reduction activities",
		"Your dominant emotion is stress. Explore stress management techniques.",
		"High stress typically occurs around 14:00-15:00. Schedule relaxation activities before these times.",
	}
	if !reflect.DeepEqual(got.Recommendations, want) {
		t.Errorf("Expected %v, got %v", want, got.Recommendations)
	}

	t.Run("FatigueAndEvening", func(t *testing.T) {
		got := AnalyzeTrends([]emotion.StoredReading{
			reading(emotion.Fatigue, day.Add(7*time.Hour), 30, 60, 80),
			reading(emotion.Fatigue, day.Add(9*time.Hour), 30, 60, 80),
			reading(emotion.Happiness, day.Add(20*time.Hour), 80, 75, 90),
		}, 30)
		if got.BestTimeOfDay != "Evening (20:00)" {
			t.Errorf("Unexpected best time %q", got.BestTimeOfDay)
		}
		if len(got.Recommendations) != 1 || got.Recommendations[0] != "Consistent fatigue detected. Consider improving sleep hygiene and nutrition." {
			t.Errorf("Unexpected recommendations %v", got.Recommendations)
		}
	})

	t.Run("NoPositiveHours", func(t *testing.T) {
		got := AnalyzeTrends([]emotion.StoredReading{reading(emotion.Apathy, day, 40, 55, 90)}, 7)
		if got.BestTimeOfDay != "No clear pattern yet" {
			t.Errorf("Unexpected best time %q", got.BestTimeOfDay)
		}
	})
}

func TestDailySummaries(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	readings := []emotion.StoredReading{
		reading(emotion.Calmness, day.Add(8*time.Hour), 80, 60, 90),
		reading(emotion.Stress, day.Add(14*time.Hour), 40, 100, 70),
		reading(emotion.Focus, day.Add(30*time.Hour), 60, 85, 100),
	}

	got := DailySummaries(readings)
	if len(got) != 2 {
		t.Fatalf("Expected 2 days, got %d", len(got))
	}
	if got[0].Date != "2026-04-02" || got[1].Date != "2026-04-01" {
		t.Errorf("Expected newest day first, got %s, %s", got[0].Date, got[1].Date)
	}

	first := got[1]
	if first.Readings != 2 || first.Dominant != emotion.Calmness {
		t.Errorf("Expected 2 readings with calmness first-seen dominant, got %+v", first)
	}
	if first.Variability != 60 || first.Rate != 80 {
		t.Errorf("Unexpected averages %+v", first)
	}
	if want := Score(60, 80, 80); first.WellnessScore != want {
		t.Errorf("Expected score %d from daily averages, got %d", want, first.WellnessScore)
	}

	if len(DailySummaries(nil)) != 0 {
		t.Error("Expected no summaries without readings")
	}
}
