package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/routing"
)

// InstrumentedProvider wraps a directions provider with request counters
// by outcome and a latency histogram.
type InstrumentedProvider struct {
	inner     routing.Provider
	collector *Collector
}

func NewInstrumentedProvider(inner routing.Provider, collector *Collector) *InstrumentedProvider {
	return &InstrumentedProvider{inner: inner, collector: collector}
}

func (p *InstrumentedProvider) Directions(ctx context.Context, req routing.DirectionsRequest) ([]*routing.Route, error) {
	start := time.Now()
	routes, err := p.inner.Directions(ctx, req)
	p.collector.ProviderRequestDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		p.collector.ProviderRequests.WithLabelValues("ok").Inc()
	case errors.Is(err, routing.ErrNoRouteFound):
		p.collector.ProviderRequests.WithLabelValues("no_route").Inc()
	case errors.Is(err, routing.ErrProviderUnavailable):
		p.collector.ProviderRequests.WithLabelValues("unavailable").Inc()
	default:
		p.collector.ProviderRequests.WithLabelValues("error").Inc()
	}

	return routes, err
}
