package detection

const (
	// A region covering half of the frame is calibrated to referenceGrams.
	referenceRatio = 0.5
	referenceGrams = 200.0

	MinMassGrams = 50.0
	MaxMassGrams = 500.0

	// DefaultMassGrams is used when the fallback reports no usable mass.
	DefaultMassGrams = 200.0
)

// EstimateMass maps the share of the frame a region covers to grams. It is a
// crude linear heuristic, not a measurement: it knows nothing about depth,
// density or camera distance.
func EstimateMass(regionArea, imageArea float64) float64 {
	if imageArea <= 0 {
		return MinMassGrams
	}
	ratio := regionArea / imageArea
	grams := ratio / referenceRatio * referenceGrams
	return clamp(grams, MinMassGrams, MaxMassGrams)
}
