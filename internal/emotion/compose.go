package emotion

import (
	"fmt"
	"math"

	"github.com/neuroti/Psi/internal/nutrition"
)

const defaultMealAdvice = "Enjoy your meal mindfully!"

var mealAdvice = map[Label]string{
	Stress:     "Consider foods rich in magnesium and B vitamins to help manage stress.",
	Fatigue:    "Your meal is good, but consider adding iron-rich foods for energy.",
	Anxiety:    "Foods with omega-3 and tryptophan can help promote calmness.",
	Happiness:  "Great choice! This meal aligns well with your positive state.",
	Excitement: "Good energy! Consider balancing with some protein.",
	Calmness:   "Perfect meal for maintaining your peaceful state.",
	Focus:      "Excellent choice for sustained concentration.",
	Apathy:     "Try adding colorful vegetables to boost motivation.",
}

// Compose writes the meal recommendation for a reading. reading may be nil
// when no wearable data was supplied.
func Compose(reading *Reading, total nutrition.Total) string {
	advice := defaultMealAdvice
	if reading != nil {
		if s, ok := mealAdvice[reading.Label]; ok {
			advice = s
		}
	}
	if kcal := total.Calories(); kcal > 0 {
		advice += fmt.Sprintf(" This meal provides about %d kcal.", int(math.Round(kcal)))
	}
	return advice
}
