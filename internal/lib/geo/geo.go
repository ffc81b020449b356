package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// Earth's mean radius in meters
const earthRadius = 6371000

// NewPoint creates a Point from longitude and latitude values with validation
func NewPoint(longitude, latitude float64) (Point, error) {
	point := Point{Longitude: longitude, Latitude: latitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// Distance calculates great-circle distance between two points in meters
// using the Haversine formula.
func Distance(p1, p2 Point) float64 {
	if p1 == p2 {
		return 0
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// PathLength calculates the total arc-length of a path in meters
func PathLength(path []Point) float64 {
	total := 0.0
	for i := 0; i < len(path)-1; i++ {
		total += Distance(path[i], path[i+1])
	}
	return total
}

// ProjectOntoPath snaps a point to the nearest location on a path and
// reports both the offset from the path and the arc-length from the path's
// start up to the snapped location.
func ProjectOntoPath(point Point, path []Point) (Projection, error) {
	if !isValidCoordinate(point) {
		return Projection{}, errors.New("invalid point coordinates")
	}
	if len(path) == 0 {
		return Projection{}, errors.New("path has no points")
	}

	if len(path) == 1 {
		return Projection{
			Point:            path[0],
			DistanceFromPath: Distance(point, path[0]),
		}, nil
	}

	best := Projection{DistanceFromPath: math.Inf(1)}
	traveled := 0.0

	for i := 0; i < len(path)-1; i++ {
		segStart := path[i]
		segEnd := path[i+1]

		snapped, t := projectOntoSegment(point, segStart, segEnd)
		offset := Distance(point, snapped)

		if offset < best.DistanceFromPath {
			segLength := Distance(segStart, segEnd)
			best = Projection{
				Point:             snapped,
				DistanceFromPath:  offset,
				DistanceAlongPath: traveled + t*segLength,
				SegmentIndex:      i,
			}
		}

		traveled += Distance(segStart, segEnd)
	}

	return best, nil
}

// projectOntoSegment projects a point onto a segment using a local planar
// approximation (longitude scaled by cos of the segment's mid-latitude).
// Adequate for road-scale segments; returns the snapped point and the
// clamped parameter t in [0, 1].
func projectOntoSegment(point, segStart, segEnd Point) (Point, float64) {
	if segStart == segEnd {
		return segStart, 0
	}

	cosLat := math.Cos((segStart.Latitude + segEnd.Latitude) / 2 * math.Pi / 180)

	ax := (segEnd.Longitude - segStart.Longitude) * cosLat
	ay := segEnd.Latitude - segStart.Latitude
	bx := (point.Longitude - segStart.Longitude) * cosLat
	by := point.Latitude - segStart.Latitude

	lenSq := ax*ax + ay*ay
	if lenSq == 0 {
		return segStart, 0
	}

	t := (ax*bx + ay*by) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return Interpolate(segStart, segEnd, t), t
}

// Interpolate calculates a point along the segment between two points.
// t=0 returns start, t=1 returns end. Linear interpolation is sufficient for
// road segments.
func Interpolate(start, end Point, t float64) Point {
	return Point{
		Longitude: start.Longitude + t*(end.Longitude-start.Longitude),
		Latitude:  start.Latitude + t*(end.Latitude-start.Latitude),
	}
}

// SlicePath returns the contiguous prefix of a path up to the given
// arc-length from its start. The final vertex is interpolated so the slice
// ends exactly at the requested distance. Distances at or beyond the path's
// length return a copy of the whole path.
func SlicePath(path []Point, distanceAlong float64) []Point {
	if len(path) == 0 {
		return nil
	}
	if distanceAlong <= 0 {
		return []Point{path[0]}
	}

	sliced := []Point{path[0]}
	remaining := distanceAlong

	for i := 0; i < len(path)-1; i++ {
		segLength := Distance(path[i], path[i+1])
		if segLength >= remaining && segLength > 0 {
			sliced = append(sliced, Interpolate(path[i], path[i+1], remaining/segLength))
			return sliced
		}
		remaining -= segLength
		sliced = append(sliced, path[i+1])
	}

	return sliced
}

// ComputeBoundingBox calculates the axis-aligned bounding box of a path
func ComputeBoundingBox(path []Point) (BoundingBox, error) {
	if len(path) == 0 {
		return BoundingBox{}, errors.New("path has no points")
	}

	box := BoundingBox{
		MinLongitude: path[0].Longitude,
		MinLatitude:  path[0].Latitude,
		MaxLongitude: path[0].Longitude,
		MaxLatitude:  path[0].Latitude,
	}
	for _, p := range path[1:] {
		box.MinLongitude = math.Min(box.MinLongitude, p.Longitude)
		box.MinLatitude = math.Min(box.MinLatitude, p.Latitude)
		box.MaxLongitude = math.Max(box.MaxLongitude, p.Longitude)
		box.MaxLatitude = math.Max(box.MaxLatitude, p.Latitude)
	}
	return box, nil
}

// Area returns the box's area in squared degrees. Degrees are fine here
// since areas are only ever compared against each other.
func (b BoundingBox) Area() float64 {
	return (b.MaxLongitude - b.MinLongitude) * (b.MaxLatitude - b.MinLatitude)
}

// IntersectionArea returns the overlapping area of two boxes in squared degrees
func (b BoundingBox) IntersectionArea(other BoundingBox) float64 {
	overlapLon := math.Min(b.MaxLongitude, other.MaxLongitude) - math.Max(b.MinLongitude, other.MinLongitude)
	overlapLat := math.Min(b.MaxLatitude, other.MaxLatitude) - math.Max(b.MinLatitude, other.MinLatitude)
	if overlapLon <= 0 || overlapLat <= 0 {
		return 0
	}
	return overlapLon * overlapLat
}

// Weights for PathSimilarity. Bounding-box overlap dominates because two
// routes through the same corridor can differ in length while still covering
// the same area.
const (
	similarityBoxWeight    = 0.7
	similarityLengthWeight = 0.3
)

// PathSimilarity scores how alike two paths are, in [0, 1]. Combines the
// overlap of the paths' bounding boxes relative to the larger box with the
// ratio of the shorter to the longer path length.
func PathSimilarity(a, b []Point) (float64, error) {
	if len(a) < 2 || len(b) < 2 {
		return 0, errors.New("both paths must have at least 2 points")
	}

	boxA, err := ComputeBoundingBox(a)
	if err != nil {
		return 0, err
	}
	boxB, err := ComputeBoundingBox(b)
	if err != nil {
		return 0, err
	}

	largerArea := math.Max(boxA.Area(), boxB.Area())
	boxScore := 1.0
	if largerArea > 0 {
		boxScore = boxA.IntersectionArea(boxB) / largerArea
	}

	lengthA := PathLength(a)
	lengthB := PathLength(b)
	lengthScore := 1.0
	if longer := math.Max(lengthA, lengthB); longer > 0 {
		lengthScore = math.Min(lengthA, lengthB) / longer
	}

	return similarityBoxWeight*boxScore + similarityLengthWeight*lengthScore, nil
}

// DecodePolyline decodes a polyline6-encoded geometry to a point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	codec := polyline.Codec{Dim: 2, Scale: 1e6}
	coords, _, err := codec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
