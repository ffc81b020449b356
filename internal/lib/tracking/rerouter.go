package tracking

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/routing"
)

const recalculatingAnnouncement = "Recalculating route"

// RerouteConfig holds the reroute throttle thresholds
type RerouteConfig struct {
	MinInterval       time.Duration
	MinDistanceMeters float64
}

// DefaultRerouteConfig returns the standard throttle thresholds
func DefaultRerouteConfig() RerouteConfig {
	return RerouteConfig{
		MinInterval:       30 * time.Second,
		MinDistanceMeters: 50,
	}
}

// Rerouter performs throttled route recalculation when the tracker confirms
// sustained deviation. At most one reroute request is in flight at a time.
type Rerouter struct {
	log       *zap.Logger
	cfg       RerouteConfig
	provider  routing.Provider
	announcer Announcer
	now       func() time.Time

	mu           sync.Mutex
	isRerouting  bool
	lastLocation *geo.Point
	lastTime     time.Time
}

// NewRerouter creates a Rerouter backed by the given directions provider
func NewRerouter(log *zap.Logger, cfg RerouteConfig, provider routing.Provider, announcer Announcer) *Rerouter {
	return &Rerouter{
		log:       log,
		cfg:       cfg,
		provider:  provider,
		announcer: announcer,
		now:       time.Now,
	}
}

// IsRerouting reports whether a reroute request is currently in flight
func (r *Rerouter) IsRerouting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRerouting
}

// ShouldRecalculate applies the reroute throttle: a reroute already in
// flight, too little time since the last reroute, or too little distance
// moved since the last reroute's location all suppress recalculation.
func (r *Rerouter) ShouldRecalculate(location geo.Point) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shouldRecalculateLocked(location)
}

func (r *Rerouter) shouldRecalculateLocked(location geo.Point) bool {
	if r.isRerouting {
		return false
	}
	if !r.lastTime.IsZero() && r.now().Sub(r.lastTime) < r.cfg.MinInterval {
		return false
	}
	if r.lastLocation != nil && geo.Distance(*r.lastLocation, location) < r.cfg.MinDistanceMeters {
		return false
	}
	return true
}

// HandleOffRoute requests a replacement route from the user's current
// location, guarded by the throttle. Returns (nil, nil) when suppressed.
// The in-flight flag clears on every exit path; on failure the caller keeps
// its existing route and a later qualifying off-route event retries.
func (r *Rerouter) HandleOffRoute(ctx context.Context, location, destination geo.Point, excludes []string) (*routing.Route, error) {
	r.mu.Lock()
	if !r.shouldRecalculateLocked(location) {
		r.mu.Unlock()
		r.log.Debug("reroute suppressed by throttle")
		return nil, nil
	}
	r.begin(location)
	r.mu.Unlock()

	return r.recalculate(ctx, location, destination, excludes)
}

// Recalculate is the manual trigger: it skips the time/distance throttle but
// still refuses to overlap an in-flight reroute.
func (r *Rerouter) Recalculate(ctx context.Context, location, destination geo.Point, excludes []string) (*routing.Route, error) {
	r.mu.Lock()
	if r.isRerouting {
		r.mu.Unlock()
		return nil, nil
	}
	r.begin(location)
	r.mu.Unlock()

	return r.recalculate(ctx, location, destination, excludes)
}

// begin marks a reroute in flight and records its origin. Callers hold r.mu.
func (r *Rerouter) begin(location geo.Point) {
	r.isRerouting = true
	loc := location
	r.lastLocation = &loc
	r.lastTime = r.now()
}

func (r *Rerouter) recalculate(ctx context.Context, location, destination geo.Point, excludes []string) (*routing.Route, error) {
	defer func() {
		r.mu.Lock()
		r.isRerouting = false
		r.mu.Unlock()
	}()

	r.announcer.Speak(recalculatingAnnouncement, true)

	routes, err := r.provider.Directions(ctx, routing.DirectionsRequest{
		Origin:       location,
		Destination:  destination,
		Alternatives: false,
		Excludes:     excludes,
	})
	if err != nil {
		r.log.Warn("reroute failed, keeping current route", zap.Error(err))
		return nil, err
	}
	if len(routes) == 0 {
		r.log.Warn("reroute returned no routes, keeping current route")
		return nil, routing.ErrNoRouteFound
	}

	r.log.Info("reroute succeeded",
		zap.Float64("distance_m", routes[0].DistanceMeters),
		zap.Float64("duration_s", routes[0].DurationSeconds))
	return routes[0], nil
}
