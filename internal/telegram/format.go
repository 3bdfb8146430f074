package telegram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/neuroti/Psi/internal/app"
	"github.com/neuroti/Psi/internal/emotion"
	"github.com/neuroti/Psi/internal/metrics"
	"github.com/neuroti/Psi/internal/recipe"
	"github.com/neuroti/Psi/internal/wellness"
)

var emotionEmoji = map[emotion.Label]string{
	emotion.Stress:     "😣",
	emotion.Fatigue:    "😴",
	emotion.Anxiety:    "😰",
	emotion.Happiness:  "😊",
	emotion.Excitement: "🤩",
	emotion.Calmness:   "😌",
	emotion.Focus:      "🎯",
	emotion.Apathy:     "😶",
}

func emoji(l emotion.Label) string {
	if e, ok := emotionEmoji[l]; ok {
		return e
	}
	return "🙂"
}

func formatFoodAnalysis(r *app.FoodAnalysis) string {
	var sb strings.Builder
	sb.WriteString("🍽 *Meal Analysis*\n\n")
	for _, it := range r.Items {
		if it.Found {
			sb.WriteString(fmt.Sprintf("• %s (%.0fg): %.0f kcal\n", it.Name, it.Grams, it.Calories))
		} else {
			sb.WriteString(fmt.Sprintf("• %s (%.0fg): _no nutrition data_\n", it.Name, it.Grams))
		}
	}
	sb.WriteString(fmt.Sprintf("\n🔥 *Total*: %.0f kcal\n", r.TotalCalories))

	keys := make([]string, 0, len(r.Nutrition))
	for k := range r.Nutrition {
		if k != "calories" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %s: %.1f\n", k, r.Nutrition[k]))
	}

	if r.Emotion != nil {
		sb.WriteString(fmt.Sprintf("\n%s *Mood*: %s (%d%%)\n", emoji(r.Emotion.Label), r.Emotion.Label, r.Emotion.Score))
	}
	if r.Recommendation != "" {
		sb.WriteString(fmt.Sprintf("\n💡 _%s_\n", r.Recommendation))
	}
	sb.WriteString(fmt.Sprintf("\n⭐ +%d XP", r.XPGained))
	sb.WriteString(quotaLine(r.QuotaRemaining))
	return sb.String()
}

func formatFridgeScan(s *app.FridgeScan) string {
	var sb strings.Builder
	sb.WriteString("🧊 *Fridge Scan*\n\n*Ingredients*\n")
	for _, ing := range s.Ingredients {
		sb.WriteString(fmt.Sprintf("• %s\n", ing.Name))
	}

	sb.WriteString(fmt.Sprintf("\n%s *Recipes for your %s mood*\n", emoji(s.EmotionLabel), s.EmotionLabel))
	if len(s.Recipes) == 0 {
		sb.WriteString("_No matching recipes yet._\n")
	}
	for i, r := range s.Recipes {
		sb.WriteString(fmt.Sprintf("%d. *%s* (%d mins, %s) %d/%d ingredients\n",
			i+1, r.Name, r.CookingTimeMinutes, r.Difficulty, r.Available, r.Total))
	}

	if len(s.ShoppingList) > 0 {
		sb.WriteString("\n🛒 *Shopping List*\n")
		for _, item := range s.ShoppingList {
			sb.WriteString(fmt.Sprintf("• %s\n", item))
		}
	}
	sb.WriteString(quotaLine(s.QuotaRemaining))
	return sb.String()
}

func formatWellness(r *app.WellnessReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *Wellness Check*\n\n", emoji(r.Emotion.Label)))
	sb.WriteString(fmt.Sprintf("Mood: *%s* (%d%%)\n", r.Emotion.Label, r.Emotion.Score))
	sb.WriteString(fmt.Sprintf("Wellness score: *%d*/100\n", r.WellnessScore))
	sb.WriteString(fmt.Sprintf("HRV %.0f ms, HR %.0f bpm\n", r.Emotion.Variability, r.Emotion.Rate))

	writeList(&sb, "🥗 *Eat*", r.Recommendations.Food)
	writeList(&sb, "🏃 *Move*", r.Recommendations.Exercise)
	writeList(&sb, "🎧 *Enjoy*", r.Recommendations.Content)

	if r.Tip != "" {
		sb.WriteString(fmt.Sprintf("\n💡 _%s_\n", r.Tip))
	}
	sb.WriteString(quotaLine(r.QuotaRemaining))
	return sb.String()
}

func formatTrends(t *wellness.Trends) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📈 *Emotion Trends* (last %d days)\n\n", t.PeriodDays))
	if t.TotalReadings == 0 {
		sb.WriteString(t.Message)
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Readings: %d\n", t.TotalReadings))
	if t.Dominant != nil {
		sb.WriteString(fmt.Sprintf("Dominant: %s *%s* (%.1f%%)\n", emoji(t.Dominant.Label), t.Dominant.Label, t.Dominant.Percentage))
	}
	if t.Averages != nil {
		sb.WriteString(fmt.Sprintf("Average HRV %.1f ms, HR %.1f bpm\n", t.Averages.Variability, t.Averages.Rate))
	}
	if len(t.HighStressHours) > 0 {
		hours := make([]string, len(t.HighStressHours))
		for i, h := range t.HighStressHours {
			hours[i] = fmt.Sprintf("%d:00", h)
		}
		sb.WriteString(fmt.Sprintf("High stress hours: %s\n", strings.Join(hours, ", ")))
	}
	if t.BestTimeOfDay != "" {
		sb.WriteString(fmt.Sprintf("Best time of day: %s\n", t.BestTimeOfDay))
	}
	writeList(&sb, "💡 *Recommendations*", t.Recommendations)
	return sb.String()
}

func formatRecipe(r *recipe.Recipe) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📖 *%s*\n", r.Name))
	sb.WriteString(fmt.Sprintf("⏱ %d mins, %s\n", r.CookingTimeMinutes, r.Difficulty))
	writeList(&sb, "*Ingredients*", r.Ingredients)
	if r.Instructions != "" {
		sb.WriteString("\n*Instructions*\n")
		sb.WriteString(r.Instructions)
		sb.WriteString("\n")
	}
	if r.SourceURL != "" {
		sb.WriteString(fmt.Sprintf("\n🔗 %s\n", r.SourceURL))
	}
	return sb.String()
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *System Metrics (Last 7 Days)*\n\n")
	if len(usage) == 0 {
		sb.WriteString("_No executions recorded._\n")
	}
	for _, u := range usage {
		sb.WriteString(fmt.Sprintf("*%s*: %d runs, %d failed, %.0fms avg\n", u.Date, u.TotalExecution, u.Failures, u.AvgLatencyMS))
	}

	sb.WriteString("\n🖥 *Health*\n")
	sb.WriteString(fmt.Sprintf("Memory: %d MB alloc / %d MB sys\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("GC runs: %d, goroutines: %d\n", health.NumGC, health.Goroutines))
	sb.WriteString(fmt.Sprintf("Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("Database: %s, cache: %s\n", health.DatabaseSize, health.CacheSize))
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n" + title + "\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("• %s\n", item))
	}
}

func quotaLine(remaining int) string {
	if remaining < 0 {
		return ""
	}
	return fmt.Sprintf("\n\n_%d free analyses left today._", remaining)
}
