package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/features"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/routing"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/tracking"
	"github.com/YoannChhang/4proj-nav-engine/internal/metrics"
)

// LocationStream is the device location subscription consumed by an active
// session. Start delivers fixes to the handler in arrival order until Stop.
type LocationStream interface {
	Start(handler func(fix geo.Point)) error
	Stop()
}

// ResponseCache lets the session drop the provider's cached responses when
// its routes are discarded.
type ResponseCache interface {
	Purge()
}

// NavigationState is the coherent state object exposed to the presentation
// layer. It is a snapshot; mutating it has no effect on the session.
type NavigationState struct {
	SelectedRoute          *routing.Route
	AlternateRoutes        []*routing.Route
	RouteFeatures          map[string]*features.RouteFeatures
	IsNavigating           bool
	IsRerouting            bool
	IsCalculating          bool
	DisplayedInstruction   string
	DistanceToNextManeuver float64
	RemainingDistance      float64
	RemainingDuration      float64
	EstimatedArrival       time.Time
	TraveledPath           []geo.Point
	LastError              error
}

// NavigationSession wires the route calculator, feature analyzer, progress
// tracker and rerouter together behind one mutex. Every event (UI command,
// location fix, completed provider call) is handled to completion under
// that mutex, giving the run-to-completion semantics the tracker relies on.
type NavigationSession struct {
	log        *zap.Logger
	calculator *routing.Calculator
	analyzer   *features.Analyzer
	tracker    *tracking.Tracker
	rerouter   *tracking.Rerouter
	stream     LocationStream
	collector  *metrics.Collector
	cache      ResponseCache

	mu sync.Mutex
	// generation invalidates in-flight provider responses: a response
	// captured under an older generation is discarded instead of applied.
	generation    uint64
	excludes      []string
	origin        geo.Point
	destination   geo.Point
	hasTrip       bool
	isNavigating  bool
	isCalculating bool
	lastFix       geo.Point
	hasFix        bool
	routeFeatures map[string]*features.RouteFeatures
	lastError     error
}

// NewNavigationSession creates the session and hooks the tracker's
// off-route and arrival signals into it.
func NewNavigationSession(
	log *zap.Logger,
	calculator *routing.Calculator,
	analyzer *features.Analyzer,
	tracker *tracking.Tracker,
	rerouter *tracking.Rerouter,
	stream LocationStream,
	collector *metrics.Collector,
) *NavigationSession {
	s := &NavigationSession{
		log:           log,
		calculator:    calculator,
		analyzer:      analyzer,
		tracker:       tracker,
		rerouter:      rerouter,
		stream:        stream,
		collector:     collector,
		routeFeatures: make(map[string]*features.RouteFeatures),
	}

	tracker.SetOffRouteHandler(s.handleOffRoute)
	tracker.SetArrivalHandler(s.handleArrival)
	return s
}

// SetResponseCache registers the provider's response cache so StopNavigation
// can purge it along with the routes it produced.
func (s *NavigationSession) SetResponseCache(cache ResponseCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cache
}

// SetLocationStream replaces the location source. Only valid while not
// navigating.
func (s *NavigationSession) SetLocationStream(stream LocationStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isNavigating {
		s.stream = stream
	}
}

// SetExcludes replaces the active exclusion set used by subsequent
// calculations and reroutes.
func (s *NavigationSession) SetExcludes(excludes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.excludes = append([]string(nil), excludes...)
}

// CalculateRoutes obtains a primary route plus alternates for the trip and
// recomputes every route's features. Errors surface to the caller and in
// the snapshot's LastError alongside a cleared calculating flag.
func (s *NavigationSession) CalculateRoutes(ctx context.Context, origin, destination geo.Point) error {
	s.mu.Lock()
	s.isCalculating = true
	s.lastError = nil
	gen := s.generation
	excludes := append([]string(nil), s.excludes...)
	s.mu.Unlock()

	set, err := s.calculator.CalculateRoutes(ctx, origin, destination, excludes)

	var featureMap map[string]*features.RouteFeatures
	if err == nil {
		featureMap = s.analyzer.Analyze(ctx, set, origin, destination)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.log.Info("discarding stale route calculation")
		return nil
	}

	s.isCalculating = false
	if err != nil {
		s.lastError = err
		s.collector.CalculationErrors.Inc()
		return err
	}

	s.calculator.Install(set)
	s.origin = origin
	s.destination = destination
	s.hasTrip = true
	s.routeFeatures = featureMap
	s.collector.RoutesCalculated.Inc()
	return nil
}

// ChooseRoute makes target the selected route. Choosing the already
// selected route is a no-op. During navigation the tracker is atomically
// reset against the new selection with re-based estimates.
func (s *NavigationSession) ChooseRoute(ctx context.Context, target *routing.Route) {
	s.mu.Lock()

	current := s.calculator.RouteSet().Primary
	if target == nil || target == current {
		s.mu.Unlock()
		return
	}

	s.calculator.ChooseRoute(target)

	if s.isNavigating {
		s.tracker.Restart(target, s.progressOnCurrentRouteLocked())
	}

	origin, destination := s.origin, s.destination
	gen := s.generation
	s.mu.Unlock()

	// Keys shift when the selection changes; recompute rather than re-map.
	s.refreshFeatures(ctx, gen, origin, destination)
}

// StartNavigation begins turn-by-turn guidance on the selected route and
// subscribes to the location stream.
func (s *NavigationSession) StartNavigation() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isNavigating {
		return nil
	}

	set := s.calculator.RouteSet()
	if set.Primary == nil {
		return routing.ErrNoRouteFound
	}
	if s.stream == nil {
		return errNoLocationStream
	}

	s.tracker.Start(set.Primary)
	if err := s.stream.Start(s.handleFix); err != nil {
		s.tracker.Stop()
		return err
	}

	s.isNavigating = true
	s.hasFix = false
	s.collector.ActiveSessions.Set(1)
	s.log.Info("navigation started")
	return nil
}

// StopNavigation ends the session: unsubscribes from the location stream,
// resets the tracker, discards the held routes and their features, and
// invalidates any in-flight provider response.
func (s *NavigationSession) StopNavigation() {
	s.mu.Lock()
	wasNavigating := s.isNavigating
	s.generation++
	s.isNavigating = false
	s.isCalculating = false
	s.hasTrip = false
	s.tracker.Stop()
	s.calculator.Clear()
	s.routeFeatures = make(map[string]*features.RouteFeatures)
	stream := s.stream
	cache := s.cache
	s.mu.Unlock()

	if wasNavigating && stream != nil {
		stream.Stop()
	}
	if cache != nil {
		cache.Purge()
	}

	s.collector.ActiveSessions.Set(0)
	s.log.Info("navigation stopped")
}

// RecalculateRoute is the manual reroute trigger: it skips the off-route
// throttle but still refuses to overlap an in-flight reroute.
func (s *NavigationSession) RecalculateRoute(ctx context.Context) {
	s.mu.Lock()
	if !s.isNavigating || !s.hasTrip {
		s.mu.Unlock()
		return
	}
	location := s.lastFix
	if !s.hasFix {
		location = s.origin
	}
	destination := s.destination
	excludes := append([]string(nil), s.excludes...)
	gen := s.generation
	s.mu.Unlock()

	route, err := s.rerouter.Recalculate(ctx, location, destination, excludes)
	s.applyReroute(gen, location, route, err)
}

// Snapshot returns the presentation layer's view of the session
func (s *NavigationSession) Snapshot() NavigationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.calculator.RouteSet()
	status := s.tracker.Status()

	featureMap := make(map[string]*features.RouteFeatures, len(s.routeFeatures))
	for k, v := range s.routeFeatures {
		featureMap[k] = v
	}

	return NavigationState{
		SelectedRoute:          set.Primary,
		AlternateRoutes:        set.Alternates,
		RouteFeatures:          featureMap,
		IsNavigating:           s.isNavigating,
		IsRerouting:            s.rerouter.IsRerouting(),
		IsCalculating:          s.isCalculating,
		DisplayedInstruction:   status.DisplayedInstruction,
		DistanceToNextManeuver: status.DistanceToNextManeuver,
		RemainingDistance:      status.RemainingDistance,
		RemainingDuration:      status.RemainingDuration,
		EstimatedArrival:       status.EstimatedArrival,
		TraveledPath:           status.TraveledPath,
		LastError:              s.lastError,
	}
}

// handleFix processes one location update. Fixes arriving after the session
// stopped are ignored.
func (s *NavigationSession) handleFix(fix geo.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isNavigating {
		return
	}
	s.lastFix = fix
	s.hasFix = true
	s.tracker.Update(fix)
}

// handleOffRoute runs inside tracker.Update with the session mutex held, so
// the blocking reroute call moves to its own goroutine.
func (s *NavigationSession) handleOffRoute(fix geo.Point) {
	s.collector.OffRouteEvents.Inc()

	destination := s.destination
	excludes := append([]string(nil), s.excludes...)
	gen := s.generation

	go func() {
		route, err := s.rerouter.HandleOffRoute(context.Background(), fix, destination, excludes)
		s.applyReroute(gen, fix, route, err)
	}()
}

// handleArrival runs inside tracker.Update with the session mutex held
func (s *NavigationSession) handleArrival() {
	s.isNavigating = false
	s.collector.ActiveSessions.Set(0)
	s.collector.Arrivals.Inc()

	// Stop may wait for the stream goroutine, which may be blocked on the
	// session mutex; detach it.
	if stream := s.stream; stream != nil {
		go stream.Stop()
	}
}

// applyReroute installs a replacement route obtained off-route or manually.
// A nil route with a nil error means the reroute was suppressed.
func (s *NavigationSession) applyReroute(gen uint64, fix geo.Point, route *routing.Route, err error) {
	if err != nil {
		s.collector.ReroutesFailed.Inc()
		return
	}
	if route == nil {
		s.collector.ReroutesSuppressed.Inc()
		return
	}

	s.mu.Lock()

	if s.generation != gen || !s.isNavigating {
		s.mu.Unlock()
		s.log.Info("discarding stale reroute response")
		return
	}

	// Progress fraction against the old route at the moment of the fix
	fraction := 0.0
	if old := s.tracker.Route(); old != nil && old.DistanceMeters > 0 {
		if proj, perr := geo.ProjectOntoPath(fix, old.Geometry); perr == nil {
			fraction = proj.DistanceAlongPath / old.DistanceMeters
		}
	}

	s.calculator.Replace(route)
	s.tracker.Restart(route, fraction)
	s.collector.ReroutesPerformed.Inc()

	origin, destination := s.origin, s.destination
	s.mu.Unlock()

	s.refreshFeatures(context.Background(), gen, origin, destination)
}

// refreshFeatures recomputes the features map for the calculator's current
// route set, discarding the result if the session moved on meanwhile.
func (s *NavigationSession) refreshFeatures(ctx context.Context, gen uint64, origin, destination geo.Point) {
	set := s.calculator.RouteSet()
	if set.Primary == nil {
		return
	}
	featureMap := s.analyzer.Analyze(ctx, set, origin, destination)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	s.routeFeatures = featureMap
}

// progressOnCurrentRouteLocked derives the progress fraction from the last
// fix against the route being replaced. Callers hold s.mu.
func (s *NavigationSession) progressOnCurrentRouteLocked() float64 {
	if !s.hasFix {
		return 0
	}
	old := s.tracker.Route()
	if old == nil || old.DistanceMeters <= 0 {
		return 0
	}
	proj, err := geo.ProjectOntoPath(s.lastFix, old.Geometry)
	if err != nil {
		return 0
	}
	return proj.DistanceAlongPath / old.DistanceMeters
}
