package features

import "fmt"

// TrafficLevel classifies overall congestion along a route
type TrafficLevel string

const (
	TrafficUnknown  TrafficLevel = "unknown"
	TrafficLow      TrafficLevel = "low"
	TrafficModerate TrafficLevel = "moderate"
	TrafficHeavy    TrafficLevel = "heavy"
)

// RouteFeatures is the derived per-route record shown alongside each route
// choice. Keyed by route identity ("primary", "alternate-<n>") in the map
// returned by the Analyzer.
type RouteFeatures struct {
	HasHighways       bool         `json:"has_highways"`
	HasTolls          bool         `json:"has_tolls"`
	HasUnpavedRoads   bool         `json:"has_unpaved_roads"`
	TrafficLevel      TrafficLevel `json:"traffic_level"`
	FormattedDuration string       `json:"formatted_duration"`
	FormattedDistance string       `json:"formatted_distance"`
}

// PrimaryKey is the features-map key for the selected route
const PrimaryKey = "primary"

// AlternateKey returns the features-map key for the n-th alternate
func AlternateKey(n int) string {
	return fmt.Sprintf("alternate-%d", n)
}

// FormatDuration renders seconds as "4 min" or "1 h 05 min"
func FormatDuration(seconds float64) string {
	minutes := int(seconds/60 + 0.5)
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h %02d min", minutes/60, minutes%60)
}

// FormatDistance renders meters as "850 m" or "12.4 km"
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}
