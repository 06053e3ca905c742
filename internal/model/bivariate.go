package model

// Tercile is one of three equal-sized rank-based bins of a continuous metric.
type Tercile int

// Tercile tiers, ordered.
const (
	TercileLow    Tercile = 1
	TercileMedium Tercile = 2
	TercileHigh   Tercile = 3
)

// String returns the tier label used in output datasets.
func (t Tercile) String() string {
	switch t {
	case TercileLow:
		return "Low"
	case TercileMedium:
		return "Medium"
	case TercileHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Valid reports whether the tier is in the expected 1..3 range.
func (t Tercile) Valid() bool { return t >= TercileLow && t <= TercileHigh }

// MarshalText serializes the tier label for CSV/GeoJSON snapshots.
func (t Tercile) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText parses a tier label from a snapshot.
func (t *Tercile) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Low":
		*t = TercileLow
	case "Medium":
		*t = TercileMedium
	case "High":
		*t = TercileHigh
	default:
		*t = 0
	}
	return nil
}

// BivariateClass computes the 1..9 class from the two tiers:
// class = (density_tier - 1) * 3 + time_tier. The mapping is a bijection
// from {1,2,3}×{1,2,3} onto 1..9; class 9 (High, High) is the trauma desert
// category. Downstream label and threshold constants depend on this exact
// formula.
func BivariateClass(densityTier, timeTier Tercile) int {
	return (int(densityTier)-1)*3 + int(timeTier)
}

// TraumaDesertClass is the distinguished highest-priority class.
const TraumaDesertClass = 9

// DefaultBivariateClass is the safety-valve class assigned to tier pairs
// outside the expected matrix. Assigning it masks an upstream bug, so every
// use is logged and counted; validation asserts the count is zero.
const DefaultBivariateClass = 5

// ClassLabels maps each bivariate class to its human label. Versioned data:
// consumers must read this table, not recompute it.
var ClassLabels = map[int]string{
	1: "Low burden, Good access",
	2: "Low burden, Moderate access",
	3: "Low burden, Poor access",
	4: "Moderate burden, Good access",
	5: "Moderate burden, Moderate access",
	6: "Moderate burden, Poor access",
	7: "High burden, Good access",
	8: "High burden, Moderate access",
	9: "TRAUMA DESERT",
}

// PriorityCategories maps each bivariate class to its policy priority bucket.
var PriorityCategories = map[int]string{
	9: "Trauma Desert",
	8: "High Burden",
	7: "High Burden",
	6: "Access Gap",
	3: "Access Gap",
	5: "Moderate",
	4: "Moderate",
	2: "Low Priority",
	1: "Low Priority",
}

// ClassColors is the Stevens blue-green bivariate palette keyed by class.
var ClassColors = map[int]string{
	1: "#e8e8e8",
	2: "#b5c0da",
	3: "#6c83b5",
	4: "#b8d6be",
	5: "#90b2b3",
	6: "#567994",
	7: "#73ae80",
	8: "#5a9178",
	9: "#2a5a5b",
}
