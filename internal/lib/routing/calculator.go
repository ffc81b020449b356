package routing

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
)

// Calculator orchestrates provider calls to obtain a primary route plus
// alternates, and tracks which route is currently selected.
type Calculator struct {
	log      *zap.Logger
	provider Provider

	mu  sync.RWMutex
	set RouteSet
}

// NewCalculator creates a Calculator backed by the given directions provider
func NewCalculator(log *zap.Logger, provider Provider) *Calculator {
	return &Calculator{
		log:      log,
		provider: provider,
	}
}

// CalculateRoutes requests a primary route plus alternates for the given
// origin/destination under the given exclusion set. The provider's first
// route becomes primary; the rest become alternates in provider order.
// The result is returned without being held: a response can outlive the
// session that asked for it, so the caller decides whether it still
// applies and installs it with Install.
func (c *Calculator) CalculateRoutes(ctx context.Context, origin, destination geo.Point, excludes []string) (RouteSet, error) {
	routes, err := c.provider.Directions(ctx, DirectionsRequest{
		Origin:       origin,
		Destination:  destination,
		Alternatives: true,
		Excludes:     excludes,
	})
	if err != nil {
		c.log.Warn("route calculation failed", zap.Error(err))
		return RouteSet{}, err
	}
	if len(routes) == 0 {
		return RouteSet{}, ErrNoRouteFound
	}

	set := RouteSet{Primary: routes[0], Alternates: routes[1:]}

	c.log.Info("routes calculated",
		zap.Int("alternates", len(set.Alternates)),
		zap.Float64("distance_m", set.Primary.DistanceMeters),
		zap.Float64("duration_s", set.Primary.DurationSeconds),
		zap.Strings("excludes", excludes))

	return set, nil
}

// Install makes the set the held routes
func (c *Calculator) Install(set RouteSet) {
	c.mu.Lock()
	c.set = set
	c.mu.Unlock()
}

// RouteSet returns the currently held primary route and alternates
func (c *Calculator) RouteSet() RouteSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

// ChooseRoute makes target the selected (primary) route. Choosing the route
// that is already selected is a no-op. A previous selection folds back into
// the alternates, which are re-sorted ascending by duration; otherwise the
// target is simply removed from the alternates it came from.
func (c *Calculator) ChooseRoute(target *Route) RouteSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	if target == nil || target == c.set.Primary {
		return c.set
	}

	previous := c.set.Primary

	alternates := make([]*Route, 0, len(c.set.Alternates))
	for _, alt := range c.set.Alternates {
		if alt != target {
			alternates = append(alternates, alt)
		}
	}

	if previous != nil {
		alternates = append(alternates, previous)
		sort.SliceStable(alternates, func(i, j int) bool {
			return alternates[i].DurationSeconds < alternates[j].DurationSeconds
		})
	}

	c.set = RouteSet{Primary: target, Alternates: alternates}
	c.log.Info("route selection changed",
		zap.Float64("duration_s", target.DurationSeconds),
		zap.Int("alternates", len(alternates)))

	return c.set
}

// Replace installs a freshly recalculated route as the sole selection.
// Alternates computed against the old position are stale, so they are
// dropped rather than carried over.
func (c *Calculator) Replace(route *Route) {
	c.mu.Lock()
	c.set = RouteSet{Primary: route}
	c.mu.Unlock()

	c.log.Info("route replaced",
		zap.Float64("distance_m", route.DistanceMeters),
		zap.Float64("duration_s", route.DurationSeconds))
}

// Clear drops the held route set
func (c *Calculator) Clear() {
	c.mu.Lock()
	c.set = RouteSet{}
	c.mu.Unlock()
}
