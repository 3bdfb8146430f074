package detection

import (
	"context"
)

// Box is an axis-aligned region normalized to the frame, all values in [0,1].
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FullFrame covers the whole image. Items without a region use it.
var FullFrame = Box{Left: 0, Top: 0, Width: 1, Height: 1}

// Area is the fraction of the frame covered by the box.
func (b Box) Area() float64 {
	return b.Width * b.Height
}

func (b Box) clamped() Box {
	b.Left = clamp01(b.Left)
	b.Top = clamp01(b.Top)
	b.Width = clamp(b.Width, 0, 1-b.Left)
	b.Height = clamp(b.Height, 0, 1-b.Top)
	return b
}

// DetectedItem is one recognized item in an image.
type DetectedItem struct {
	Label              string  `json:"label"`
	Confidence         float64 `json:"confidence"`
	Region             Box     `json:"region"`
	EstimatedMassGrams float64 `json:"estimated_mass_grams"`
}

// Candidate is a raw primary classifier detection.
type Candidate struct {
	Label      string
	Confidence float64
	Region     Box
}

// FallbackItem is a raw fallback classifier detection. The fallback path
// estimates mass itself and reports no region.
type FallbackItem struct {
	Label              string
	Confidence         float64
	EstimatedMassGrams float64
}

// PrimaryClassifier is the fast first-pass detector.
type PrimaryClassifier interface {
	Detect(ctx context.Context, image []byte) ([]Candidate, error)
}

// FallbackClassifier is the slow high-precision detector.
type FallbackClassifier interface {
	Detect(ctx context.Context, image []byte) ([]FallbackItem, error)
}

// MeanConfidence is the arithmetic mean confidence, 0 for an empty list.
func MeanConfidence(items []DetectedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.Confidence
	}
	return sum / float64(len(items))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
