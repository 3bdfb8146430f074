package wellness

import (
	"fmt"
	"math"
	"sort"

	"github.com/neuroti/Psi/internal/emotion"
)

// Averages are mean biometrics over a set of readings, rounded to one decimal.
type Averages struct {
	Variability  float64 `json:"hrv"`
	Rate         float64 `json:"heart_rate"`
	EmotionScore float64 `json:"emotion_confidence"`
}

// Dominant is the most frequent emotion and its share in percent.
type Dominant struct {
	Label      emotion.Label `json:"type"`
	Percentage float64       `json:"percentage"`
}

// Trends summarize emotion history over a period.
type Trends struct {
	PeriodDays      int                   `json:"period_days"`
	TotalReadings   int                   `json:"total_readings"`
	Message         string                `json:"message,omitempty"`
	Dominant        *Dominant             `json:"dominant_emotion,omitempty"`
	Distribution    map[emotion.Label]int `json:"emotion_distribution,omitempty"`
	Averages        *Averages             `json:"average_metrics,omitempty"`
	HighStressHours []int                 `json:"high_stress_hours,omitempty"`
	BestTimeOfDay   string                `json:"best_time_of_day,omitempty"`
	Recommendations []string              `json:"recommendations"`
}

var positiveLabels = map[emotion.Label]bool{
	emotion.Happiness:  true,
	emotion.Excitement: true,
	emotion.Calmness:   true,
	emotion.Focus:      true,
}

// AnalyzeTrends computes trends from readings in chronological order.
func AnalyzeTrends(readings []emotion.StoredReading, periodDays int) Trends {
	if len(readings) == 0 {
		return Trends{
			PeriodDays:      periodDays,
			Message:         "Not enough data for trend analysis",
			Recommendations: []string{"Keep tracking your emotions for personalized insights"},
		}
	}

	dist, dominant := distribution(readings)
	avg := averages(readings)

	byHour := make(map[int][]emotion.Label)
	for _, r := range readings {
		h := r.RecordedAt.UTC().Hour()
		byHour[h] = append(byHour[h], r.Label)
	}
	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	var stressHours []int
	for _, h := range hours {
		if share(byHour[h], func(l emotion.Label) bool { return l == emotion.Stress || l == emotion.Anxiety }) > 0.5 {
			stressHours = append(stressHours, h)
		}
	}

	return Trends{
		PeriodDays:    periodDays,
		TotalReadings: len(readings),
		Dominant: &Dominant{
			Label:      dominant,
			Percentage: round1(float64(dist[dominant]) / float64(len(readings)) * 100),
		},
		Distribution:    dist,
		Averages:        &avg.Averages,
		HighStressHours: stressHours,
		BestTimeOfDay:   bestTime(hours, byHour),
		Recommendations: trendRecommendations(dominant, stressHours),
	}
}

func bestTime(hours []int, byHour map[int][]emotion.Label) string {
	best, bestShare := -1, 0.0
	for _, h := range hours {
		if s := share(byHour[h], func(l emotion.Label) bool { return positiveLabels[l] }); s > bestShare {
			best, bestShare = h, s
		}
	}
	switch {
	case best < 0:
		return "No clear pattern yet"
	case best < 12:
		return fmt.Sprintf("Morning (%d:00)", best)
	case best < 18:
		return fmt.Sprintf("Afternoon (%d:00)", best)
	default:
		return fmt.Sprintf("Evening (%d:00)", best)
	}
}

func trendRecommendations(dominant emotion.Label, stressHours []int) []string {
	recs := []string{}
	if dominant == emotion.Stress || dominant == emotion.Anxiety {
		recs = append(recs,
			"Consider scheduling regular breaks and stress-reduction activities",
			fmt.Sprintf("Your dominant emotion is %s. Explore stress management techniques.", dominant),
		)
	}
	if len(stressHours) > 0 {
		recs = append(recs, fmt.Sprintf(
			"High stress typically occurs around %d:00-%d:00. Schedule relaxation activities before these times.",
			stressHours[0], stressHours[len(stressHours)-1]))
	}
	if dominant == emotion.Fatigue {
		recs = append(recs, "Consistent fatigue detected. Consider improving sleep hygiene and nutrition.")
	}
	return recs
}

// DailySummary is one day of readings.
type DailySummary struct {
	Date          string                `json:"date"`
	WellnessScore int                   `json:"wellness_score"`
	Dominant      emotion.Label         `json:"dominant_emotion"`
	Distribution  map[emotion.Label]int `json:"emotion_distribution"`
	Readings      int                   `json:"readings_count"`
	Variability   float64               `json:"avg_hrv"`
	Rate          float64               `json:"avg_heart_rate"`
}

// DailySummaries groups readings by UTC date, newest day first.
func DailySummaries(readings []emotion.StoredReading) []DailySummary {
	byDate := make(map[string][]emotion.StoredReading)
	for _, r := range readings {
		d := r.RecordedAt.UTC().Format("2006-01-02")
		byDate[d] = append(byDate[d], r)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	out := make([]DailySummary, 0, len(dates))
	for _, d := range dates {
		day := byDate[d]
		dist, dominant := distribution(day)
		avg := averages(day)
		out = append(out, DailySummary{
			Date:          d,
			WellnessScore: Score(avg.raw.Variability, avg.raw.Rate, avg.raw.EmotionScore),
			Dominant:      dominant,
			Distribution:  dist,
			Readings:      len(day),
			Variability:   avg.Variability,
			Rate:          avg.Rate,
		})
	}
	return out
}

// distribution counts labels. Ties for the most frequent label go to the one
// seen first.
func distribution(readings []emotion.StoredReading) (map[emotion.Label]int, emotion.Label) {
	dist := make(map[emotion.Label]int)
	var order []emotion.Label
	for _, r := range readings {
		if dist[r.Label] == 0 {
			order = append(order, r.Label)
		}
		dist[r.Label]++
	}
	var dominant emotion.Label
	for _, l := range order {
		if dominant == "" || dist[l] > dist[dominant] {
			dominant = l
		}
	}
	return dist, dominant
}

type averagesWithRaw struct {
	Averages
	raw Averages
}

func averages(readings []emotion.StoredReading) averagesWithRaw {
	var raw Averages
	for _, r := range readings {
		raw.Variability += r.Variability
		raw.Rate += r.Rate
		raw.EmotionScore += float64(r.Score)
	}
	n := float64(len(readings))
	raw.Variability /= n
	raw.Rate /= n
	raw.EmotionScore /= n

	return averagesWithRaw{
		Averages: Averages{
			Variability:  round1(raw.Variability),
			Rate:         round1(raw.Rate),
			EmotionScore: round1(raw.EmotionScore),
		},
		raw: raw,
	}
}

func share(labels []emotion.Label, match func(emotion.Label) bool) float64 {
	if len(labels) == 0 {
		return 0
	}
	n := 0
	for _, l := range labels {
		if match(l) {
			n++
		}
	}
	return float64(n) / float64(len(labels))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
