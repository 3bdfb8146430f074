// Package emotion classifies physiological readings (heart-rate variability,
// heart rate and coherence) into one of eight emotional states.
package emotion

import (
	"math"
	"strings"
)

// Label is an emotional state.
type Label string

const (
	Stress     Label = "stress"
	Fatigue    Label = "fatigue"
	Anxiety    Label = "anxiety"
	Happiness  Label = "happiness"
	Excitement Label = "excitement"
	Calmness   Label = "calmness"
	Focus      Label = "focus"
	Apathy     Label = "apathy"
)

// Labels lists every label in classification priority order. Ties go to the
// earlier label.
var Labels = []Label{Stress, Fatigue, Anxiety, Happiness, Excitement, Calmness, Focus, Apathy}

// ParseLabel accepts a label name in any case.
func ParseLabel(s string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Labels {
		if l == known {
			return l, true
		}
	}
	return "", false
}

// DefaultCoherence is used when the wearable does not report coherence.
const DefaultCoherence = 0.5

// Range is a constraint on one axis of a profile.
type Range interface {
	isRange()
}

// Interval is a closed range.
type Interval struct {
	Min, Max float64
}

// Unstable matches readings whose rhythm lacks coherence, regardless of the
// axis value itself.
type Unstable struct{}

func (Interval) isRange() {}
func (Unstable) isRange() {}

// Profile describes the typical reading of an emotion.
type Profile struct {
	Label       Label
	Variability Range
	Rate        Range
	Coherence   Range
}

// Profiles are in the same order as Labels.
var Profiles = []Profile{
	{Stress, Interval{20, 50}, Interval{85, 120}, Interval{0, 0.5}},
	{Fatigue, Interval{20, 40}, Interval{50, 70}, Interval{0, 0.3}},
	{Anxiety, Unstable{}, Interval{85, 120}, Interval{0, 0.3}},
	{Happiness, Interval{60, 100}, Interval{70, 85}, Interval{0.8, 1.0}},
	{Excitement, Interval{40, 60}, Interval{90, 110}, Interval{0.6, 0.9}},
	{Calmness, Interval{70, 100}, Interval{55, 70}, Interval{0.8, 1.0}},
	{Focus, Interval{50, 70}, Interval{80, 95}, Interval{0.9, 1.0}},
	{Apathy, Interval{30, 50}, Interval{50, 65}, Interval{0.3, 0.6}},
}

// Reading is the classification of one measurement. Score is the winning
// profile's match in [0,100].
type Reading struct {
	Label        Label         `json:"label"`
	Score        int           `json:"score"`
	Distribution map[Label]int `json:"distribution"`
	Variability  float64       `json:"variability"`
	Rate         float64       `json:"rate"`
	Coherence    float64       `json:"coherence"`
}

const (
	axisWeight       = 40.0
	coherenceWeight  = 20.0
	axisFalloff      = 0.5
	coherenceFalloff = 20.0
	// instability at which an Unstable axis scores the full weight.
	fullInstability = 0.7
)

// Classify scores every profile and picks the best match. It never fails:
// out-of-range inputs simply score lower everywhere.
func Classify(variability, rate, coherence float64) Reading {
	r := Reading{
		Distribution: make(map[Label]int, len(Profiles)),
		Variability:  variability,
		Rate:         rate,
		Coherence:    coherence,
	}

	best := -1
	for _, p := range Profiles {
		s := score(p, variability, rate, coherence)
		r.Distribution[p.Label] = s
		if s > best {
			best = s
			r.Label = p.Label
		}
	}
	r.Score = best
	return r
}

func score(p Profile, variability, rate, coherence float64) int {
	total := axisScore(p.Variability, variability, coherence, axisWeight, axisFalloff) +
		axisScore(p.Rate, rate, coherence, axisWeight, axisFalloff) +
		axisScore(p.Coherence, coherence, coherence, coherenceWeight, coherenceFalloff)

	s := int(math.Round(total))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func axisScore(r Range, v, coherence, weight, falloff float64) float64 {
	switch r := r.(type) {
	case Interval:
		if v >= r.Min && v <= r.Max {
			return weight
		}
		d := math.Min(math.Abs(v-r.Min), math.Abs(v-r.Max))
		return math.Max(0, weight-falloff*d)
	case Unstable:
		instability := math.Max(0, 1-coherence)
		return weight * math.Min(1, instability/fullInstability)
	default:
		return 0
	}
}
