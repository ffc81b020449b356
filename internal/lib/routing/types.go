package routing

import (
	"context"
	"errors"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
)

// Sentinel errors surfaced by route calculation. Provider clients wrap these
// so callers can branch with errors.Is.
var (
	// ErrNoRouteFound indicates the provider answered but returned zero routes
	ErrNoRouteFound = errors.New("no route found")

	// ErrProviderUnavailable indicates a transport or parse failure talking to
	// the directions provider
	ErrProviderUnavailable = errors.New("routing provider unavailable")
)

// VoiceInstruction is a pre-authored announcement tied to a trigger distance
// along its step's geometry.
type VoiceInstruction struct {
	DistanceAlongGeometry float64 `json:"distance_along_geometry"`
	Announcement          string  `json:"announcement"`
}

// Maneuver is the turn/merge/exit instruction attached to a step's start
type Maneuver struct {
	Type        string    `json:"type"`
	Modifier    string    `json:"modifier,omitempty"`
	Instruction string    `json:"instruction"`
	Location    geo.Point `json:"location"`
}

// Step is a single maneuver-bounded segment within a leg
type Step struct {
	Maneuver          Maneuver           `json:"maneuver"`
	Geometry          []geo.Point        `json:"geometry"`
	DistanceMeters    float64            `json:"distance_meters"`
	DurationSeconds   float64            `json:"duration_seconds"`
	VoiceInstructions []VoiceInstruction `json:"voice_instructions,omitempty"`
	Congestion        []string           `json:"congestion,omitempty"`
}

// Leg is the portion of a route between two consecutive waypoints
type Leg struct {
	Steps           []Step  `json:"steps"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Route is the immutable result of a single provider routing call
type Route struct {
	Legs            []Leg       `json:"legs"`
	Geometry        []geo.Point `json:"geometry"`
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds"`
	WeightName      string      `json:"weight_name"`
	Excludes        []string    `json:"excludes,omitempty"`
	IsPreferred     bool        `json:"is_preferred"`
}

// Steps flattens the route's legs into a single ordered step sequence
func (r *Route) Steps() []Step {
	var steps []Step
	for _, leg := range r.Legs {
		steps = append(steps, leg.Steps...)
	}
	return steps
}

// RouteSet holds the currently selected route plus its alternates
type RouteSet struct {
	Primary    *Route   `json:"primary"`
	Alternates []*Route `json:"alternates"`
}

// DirectionsRequest describes a single provider routing call
type DirectionsRequest struct {
	Origin       geo.Point
	Destination  geo.Point
	Alternatives bool
	Excludes     []string
}

// Provider issues directions requests against the external routing service
type Provider interface {
	Directions(ctx context.Context, req DirectionsRequest) ([]*Route, error)
}
