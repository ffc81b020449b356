package features

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/routing"
)

// Exclusion kinds probed by the analyzer, mapped to the feature each reveals
const (
	excludeMotorway = "motorway"
	excludeToll     = "toll"
	excludeUnpaved  = "unpaved"
)

// Analyzer infers boolean route characteristics by diffing route outcomes
// under single-exclusion constraints, and classifies traffic density from
// congestion annotations.
type Analyzer struct {
	log      *zap.Logger
	provider routing.Provider

	// Feature-presence thresholds. Empirically chosen; configurable rather
	// than hard invariants.
	durationDeltaPct float64
	similarityFloor  float64
}

// NewAnalyzer creates an Analyzer with the given detection thresholds. A
// feature is considered present when the single-exclusion variant differs
// from the baseline by more than durationDeltaPct percent in duration, or
// scores below similarityFloor in path similarity.
func NewAnalyzer(log *zap.Logger, provider routing.Provider, durationDeltaPct, similarityFloor float64) *Analyzer {
	return &Analyzer{
		log:              log,
		provider:         provider,
		durationDeltaPct: durationDeltaPct,
		similarityFloor:  similarityFloor,
	}
}

// Analyze computes RouteFeatures for every route in the set, keyed
// "primary" / "alternate-<n>". The three exclusion probes run concurrently;
// any probe failure degrades to the seeded basic features for that kind
// rather than failing the analysis.
func (a *Analyzer) Analyze(ctx context.Context, set routing.RouteSet, origin, destination geo.Point) map[string]*RouteFeatures {
	result := make(map[string]*RouteFeatures)
	if set.Primary == nil {
		return result
	}

	routes := map[string]*routing.Route{PrimaryKey: set.Primary}
	for i, alt := range set.Alternates {
		routes[AlternateKey(i)] = alt
	}

	for key, route := range routes {
		result[key] = &RouteFeatures{
			TrafficLevel:      ClassifyTraffic(route),
			FormattedDuration: FormatDuration(route.DurationSeconds),
			FormattedDistance: FormatDistance(route.DistanceMeters),
		}
	}

	probes := a.runProbes(ctx, origin, destination)

	for key, route := range routes {
		feats := result[key]
		if variant, ok := probes[excludeMotorway]; ok {
			feats.HasHighways = a.featurePresent(route, variant)
		}
		if variant, ok := probes[excludeToll]; ok {
			feats.HasTolls = a.featurePresent(route, variant)
		}
		if variant, ok := probes[excludeUnpaved]; ok {
			feats.HasUnpavedRoads = a.featurePresent(route, variant)
		}
	}

	return result
}

// runProbes issues the three single-exclusion directions calls concurrently
// and joins them all, keeping only the successful variants.
func (a *Analyzer) runProbes(ctx context.Context, origin, destination geo.Point) map[string]*routing.Route {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*routing.Route)
	)

	for _, kind := range []string{excludeMotorway, excludeToll, excludeUnpaved} {
		wg.Add(1)
		go func(kind string) {
			defer wg.Done()

			routes, err := a.provider.Directions(ctx, routing.DirectionsRequest{
				Origin:       origin,
				Destination:  destination,
				Alternatives: false,
				Excludes:     []string{kind},
			})
			if err != nil || len(routes) == 0 {
				a.log.Warn("feature probe failed, keeping basic features",
					zap.String("exclude", kind), zap.Error(err))
				return
			}

			mu.Lock()
			results[kind] = routes[0]
			mu.Unlock()
		}(kind)
	}

	wg.Wait()
	return results
}

// featurePresent decides whether excluding a road kind meaningfully changed
// the route: a large duration delta or a low path similarity means the
// baseline was using that kind.
func (a *Analyzer) featurePresent(baseline, variant *routing.Route) bool {
	if baseline.DurationSeconds > 0 {
		deltaPct := math.Abs(variant.DurationSeconds-baseline.DurationSeconds) / baseline.DurationSeconds * 100
		if deltaPct > a.durationDeltaPct {
			return true
		}
	}

	similarity, err := geo.PathSimilarity(baseline.Geometry, variant.Geometry)
	if err != nil {
		a.log.Warn("path similarity unavailable", zap.Error(err))
		return false
	}
	return similarity < a.similarityFloor
}

// ClassifyTraffic counts per-segment congestion labels across all steps.
// Labels the provider marks "unknown" do not count as annotated segments.
func ClassifyTraffic(route *routing.Route) TrafficLevel {
	var low, moderate, heavy, severe int
	for _, step := range route.Steps() {
		for _, label := range step.Congestion {
			switch label {
			case "low":
				low++
			case "moderate":
				moderate++
			case "heavy":
				heavy++
			case "severe":
				severe++
			}
		}
	}

	total := low + moderate + heavy + severe
	if total == 0 {
		return TrafficUnknown
	}

	heavyShare := float64(heavy+severe) / float64(total)
	moderateShare := float64(moderate) / float64(total)

	switch {
	case heavyShare > 0.20:
		return TrafficHeavy
	case moderateShare > 0.30 || heavyShare > 0.10:
		return TrafficModerate
	default:
		return TrafficLow
	}
}
