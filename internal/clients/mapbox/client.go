package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/routing"
)

// HTTPDoer abstracts the HTTP client for testability
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the Mapbox Directions API v5
type Client struct {
	accessToken string
	profile     string
	baseURL     string
	httpClient  HTTPDoer
}

// NewClient creates a new Mapbox Directions client for the driving-traffic profile
func NewClient(accessToken string) *Client {
	return NewClientWithHTTPDoer(accessToken, "https://api.mapbox.com", &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewClientWithHTTPDoer creates a client with an injected HTTP implementation
func NewClientWithHTTPDoer(accessToken, baseURL string, httpClient HTTPDoer) *Client {
	return &Client{
		accessToken: accessToken,
		profile:     "mapbox/driving-traffic",
		baseURL:     baseURL,
		httpClient:  httpClient,
	}
}

// Directions requests routes between the given origin and destination.
// Always asks for full polyline6 geometry, turn-by-turn steps, voice
// instructions and congestion annotations; the alternatives flag and the
// exclusion set come from the request.
func (c *Client) Directions(ctx context.Context, req routing.DirectionsRequest) ([]*routing.Route, error) {
	query := url.Values{}
	query.Set("access_token", c.accessToken)
	query.Set("alternatives", fmt.Sprintf("%t", req.Alternatives))
	query.Set("geometries", "polyline6")
	query.Set("overview", "full")
	query.Set("steps", "true")
	query.Set("voice_instructions", "true")
	query.Set("annotations", "congestion")
	if len(req.Excludes) > 0 {
		query.Set("exclude", strings.Join(req.Excludes, ","))
	}

	endpoint := fmt.Sprintf("%s/directions/v5/%s/%.6f,%.6f;%.6f,%.6f?%s",
		c.baseURL, c.profile,
		req.Origin.Longitude, req.Origin.Latitude,
		req.Destination.Longitude, req.Destination.Latitude,
		query.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", routing.ErrProviderUnavailable, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", routing.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: rate limit exceeded", routing.ErrProviderUnavailable)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: API error %d: %s", routing.ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var response DirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", routing.ErrProviderUnavailable, err)
	}

	if response.Code != "Ok" || len(response.Routes) == 0 {
		return nil, fmt.Errorf("%w: provider code %q", routing.ErrNoRouteFound, response.Code)
	}

	routes := make([]*routing.Route, 0, len(response.Routes))
	for i, wire := range response.Routes {
		route, err := parseRoute(wire, req.Excludes, i == 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", routing.ErrProviderUnavailable, err)
		}
		routes = append(routes, route)
	}

	return routes, nil
}

// parseRoute converts a wire route into the domain model
func parseRoute(wire WireRoute, excludes []string, preferred bool) (*routing.Route, error) {
	geometry, err := geo.DecodePolyline(wire.Geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to decode route geometry: %v", err)
	}

	route := &routing.Route{
		Geometry:        geometry,
		DistanceMeters:  wire.Distance,
		DurationSeconds: wire.Duration,
		WeightName:      wire.WeightName,
		Excludes:        append([]string(nil), excludes...),
		IsPreferred:     preferred,
	}

	for _, wireLeg := range wire.Legs {
		leg, err := parseLeg(wireLeg)
		if err != nil {
			return nil, err
		}
		route.Legs = append(route.Legs, leg)
	}

	return route, nil
}

func parseLeg(wire WireLeg) (routing.Leg, error) {
	leg := routing.Leg{
		DistanceMeters:  wire.Distance,
		DurationSeconds: wire.Duration,
	}

	for _, wireStep := range wire.Steps {
		step, err := parseStep(wireStep)
		if err != nil {
			return routing.Leg{}, err
		}
		leg.Steps = append(leg.Steps, step)
	}

	// Congestion arrives per leg-geometry segment; hand each step the slice
	// covering its own segments so per-step counts stay disjoint.
	if wire.Annotation != nil && len(wire.Annotation.Congestion) > 0 {
		distributeCongestion(leg.Steps, wire.Annotation.Congestion)
	}

	return leg, nil
}

func parseStep(wire WireStep) (routing.Step, error) {
	geometry, err := geo.DecodePolyline(wire.Geometry)
	if err != nil {
		return routing.Step{}, fmt.Errorf("failed to decode step geometry: %v", err)
	}

	var location geo.Point
	if len(wire.Maneuver.Location) >= 2 {
		location = geo.Point{Longitude: wire.Maneuver.Location[0], Latitude: wire.Maneuver.Location[1]}
	}

	step := routing.Step{
		Maneuver: routing.Maneuver{
			Type:        wire.Maneuver.Type,
			Modifier:    wire.Maneuver.Modifier,
			Instruction: wire.Maneuver.Instruction,
			Location:    location,
		},
		Geometry:        geometry,
		DistanceMeters:  wire.Distance,
		DurationSeconds: wire.Duration,
	}

	for _, vi := range wire.VoiceInstructions {
		step.VoiceInstructions = append(step.VoiceInstructions, routing.VoiceInstruction{
			DistanceAlongGeometry: vi.DistanceAlongGeometry,
			Announcement:          vi.Announcement,
		})
	}

	return step, nil
}

// distributeCongestion splits a leg's per-segment congestion labels across
// its steps in proportion to each step's geometry segment count.
func distributeCongestion(steps []routing.Step, congestion []string) {
	idx := 0
	for i := range steps {
		if idx >= len(congestion) {
			return
		}
		segments := len(steps[i].Geometry) - 1
		if segments <= 0 {
			continue
		}
		end := idx + segments
		if end > len(congestion) {
			end = len(congestion)
		}
		steps[i].Congestion = congestion[idx:end]
		idx = end
	}
}
