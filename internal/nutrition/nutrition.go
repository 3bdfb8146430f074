// Package nutrition resolves detected food items to nutrient profiles and
// aggregates them into meal totals.
package nutrition

import (
	"math"
)

// Nutrients is the fixed nutrient vocabulary, in display order.
var Nutrients = []string{
	"calories",
	"protein",
	"carbs",
	"fat",
	"fiber",
	"sugar",
	"sodium",
	"calcium",
	"iron",
	"vitamin_a",
	"vitamin_c",
}

// Profile maps nutrient name to amount. Reference profiles are per 100 g.
type Profile map[string]float64

// Total is the element-wise sum of scaled profiles.
type Total map[string]float64

// Scale returns a copy of p for grams, each value rounded to one decimal.
func (p Profile) Scale(grams float64) Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = round1(v * grams / 100)
	}
	return out
}

// Calories is a shorthand for the calories entry.
func (t Total) Calories() float64 {
	return t["calories"]
}

// Sum adds profiles nutrient by nutrient. Every vocabulary nutrient is
// present in the result, zero when no profile carries it.
func Sum(profiles ...Profile) Total {
	total := make(Total, len(Nutrients))
	for _, n := range Nutrients {
		total[n] = 0
	}
	for _, p := range profiles {
		for k, v := range p {
			total[k] += v
		}
	}
	for k, v := range total {
		total[k] = round1(v)
	}
	return total
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
