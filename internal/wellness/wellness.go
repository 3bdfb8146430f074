// Package wellness scores readings and turns emotion history into
// recommendations, daily summaries and trends.
package wellness

import (
	_ "embed"
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/neuroti/Psi/internal/emotion"
)

// Fallback biometrics when neither the request nor recent history has any.
const (
	DefaultVariability = 60.0
	DefaultRate        = 75.0
)

const (
	optimalRate = 70.0
	// Scores below this get the recovery advice prepended.
	lowScoreThreshold = 50
)

// Score combines variability, heart rate and classification confidence into
// a 0..100 wellness score.
func Score(variability, rate, emotionScore float64) int {
	hrvPart := math.Min(40, variability/100*40)
	ratePart := math.Max(0, 40-math.Abs(rate-optimalRate)*0.5)
	emotionPart := emotionScore / 100 * 20

	total := int(hrvPart + ratePart + emotionPart)
	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

// Recommendations are suggestions grouped by kind.
type Recommendations struct {
	Food     []string `json:"food"`
	Exercise []string `json:"exercise"`
	Content  []string `json:"content"`
}

type emotionContent struct {
	Food     []string `json:"food"`
	Exercise []string `json:"exercise"`
	Content  []string `json:"content"`
	Tips     []string `json:"tips"`
}

//go:embed content.json
var contentJSON []byte

var content = mustLoadContent()

func mustLoadContent() map[emotion.Label]emotionContent {
	var c map[emotion.Label]emotionContent
	if err := json.Unmarshal(contentJSON, &c); err != nil {
		panic(fmt.Sprintf("wellness: failed to decode content.json: %v", err))
	}
	return c
}

func contentFor(l emotion.Label) emotionContent {
	if c, ok := content[l]; ok {
		return c
	}
	return content[emotion.Calmness]
}

// Recommend returns suggestions for the emotion. The returned slices are
// fresh copies and safe to modify.
func Recommend(l emotion.Label, score int) Recommendations {
	c := contentFor(l)
	r := Recommendations{
		Food:     append([]string(nil), c.Food...),
		Exercise: append([]string(nil), c.Exercise...),
		Content:  append([]string(nil), c.Content...),
	}
	if score < lowScoreThreshold {
		r.Food = append([]string{"Prioritize hydration and rest"}, r.Food...)
		r.Exercise = append([]string{"Light movement only - listen to your body"}, r.Exercise...)
	}
	return r
}

// DailyTip picks the tip for the given day of month. The same emotion gets
// the same tip all day.
func DailyTip(l emotion.Label, dayOfMonth int) string {
	tips := contentFor(l).Tips
	if len(tips) == 0 {
		return ""
	}
	i := (dayOfMonth - 1) % len(tips)
	if i < 0 {
		i += len(tips)
	}
	return tips[i]
}
