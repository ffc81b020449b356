package geo

// Point represents a geographic coordinate, ordered longitude-first to match
// the directions provider's wire format.
type Point struct {
	Longitude float64 `json:"lng"`
	Latitude  float64 `json:"lat"`
}

// Projection is the result of snapping a point onto a path: the snapped
// point itself, its distance from the path, and the arc-length from the
// path's start up to the snapped point.
type Projection struct {
	Point             Point   `json:"point"`
	DistanceFromPath  float64 `json:"distance_from_path_meters"`
	DistanceAlongPath float64 `json:"distance_along_path_meters"`
	SegmentIndex      int     `json:"segment_index"`
}

// BoundingBox is an axis-aligned lon/lat box around a path
type BoundingBox struct {
	MinLongitude float64 `json:"min_lng"`
	MinLatitude  float64 `json:"min_lat"`
	MaxLongitude float64 `json:"max_lng"`
	MaxLatitude  float64 `json:"max_lat"`
}
