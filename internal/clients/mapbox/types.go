package mapbox

// Wire types for the Mapbox Directions API v5 response

// DirectionsResponse represents the API response structure
type DirectionsResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Routes  []WireRoute `json:"routes"`
}

// WireRoute represents a single route in the response
type WireRoute struct {
	WeightName string    `json:"weight_name"`
	Weight     float64   `json:"weight"`
	Duration   float64   `json:"duration"`
	Distance   float64   `json:"distance"`
	Geometry   string    `json:"geometry"`
	Legs       []WireLeg `json:"legs"`
}

// WireLeg represents one leg of a route
type WireLeg struct {
	Duration   float64         `json:"duration"`
	Distance   float64         `json:"distance"`
	Steps      []WireStep      `json:"steps"`
	Annotation *WireAnnotation `json:"annotation,omitempty"`
}

// WireStep represents a maneuver-bounded segment of a leg
type WireStep struct {
	Maneuver          WireManeuver           `json:"maneuver"`
	Name              string                 `json:"name"`
	Duration          float64                `json:"duration"`
	Distance          float64                `json:"distance"`
	Geometry          string                 `json:"geometry"`
	VoiceInstructions []WireVoiceInstruction `json:"voiceInstructions,omitempty"`
}

// WireManeuver represents the maneuver at a step's start
type WireManeuver struct {
	Type        string    `json:"type"`
	Modifier    string    `json:"modifier,omitempty"`
	Instruction string    `json:"instruction"`
	Location    []float64 `json:"location"` // [lon, lat]
}

// WireVoiceInstruction represents a pre-authored spoken instruction
type WireVoiceInstruction struct {
	DistanceAlongGeometry float64 `json:"distanceAlongGeometry"`
	Announcement          string  `json:"announcement"`
	SSMLAnnouncement      string  `json:"ssmlAnnouncement,omitempty"`
}

// WireAnnotation carries per-segment metadata along a leg's geometry
type WireAnnotation struct {
	Congestion []string `json:"congestion,omitempty"`
}
