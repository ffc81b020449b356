package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector holds the engine's Prometheus instruments on a private registry
type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	RoutesCalculated  prometheus.Counter
	CalculationErrors prometheus.Counter

	OffRouteEvents     prometheus.Counter
	ReroutesPerformed  prometheus.Counter
	ReroutesSuppressed prometheus.Counter
	ReroutesFailed     prometheus.Counter

	Announcements prometheus.Counter
	Arrivals      prometheus.Counter

	ProviderRequests        *prometheus.CounterVec
	ProviderRequestDuration prometheus.Histogram
}

// NewCollector creates and registers the engine's instruments
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nav_active_sessions",
			Help: "1 while a navigation session is running, 0 otherwise.",
		}),
		RoutesCalculated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_routes_calculated_total",
			Help: "Total successful route calculations.",
		}),
		CalculationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_calculation_errors_total",
			Help: "Total failed route calculations.",
		}),
		OffRouteEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_off_route_events_total",
			Help: "Total confirmed off-route events.",
		}),
		ReroutesPerformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_reroutes_performed_total",
			Help: "Total reroutes applied to the active session.",
		}),
		ReroutesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_reroutes_suppressed_total",
			Help: "Total reroute attempts suppressed by the throttle.",
		}),
		ReroutesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_reroutes_failed_total",
			Help: "Total reroute attempts that failed at the provider.",
		}),
		Announcements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_announcements_total",
			Help: "Total spoken navigation announcements.",
		}),
		Arrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nav_arrivals_total",
			Help: "Total destination arrivals.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nav_provider_requests_total",
			Help: "Directions provider requests by outcome.",
		}, []string{"outcome"}),
		ProviderRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nav_provider_request_duration_seconds",
			Help:    "Directions provider request latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.RoutesCalculated, c.CalculationErrors,
		c.OffRouteEvents, c.ReroutesPerformed, c.ReroutesSuppressed, c.ReroutesFailed,
		c.Announcements, c.Arrivals,
		c.ProviderRequests, c.ProviderRequestDuration,
	)

	return c
}

// Handler returns the /metrics HTTP handler for the private registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on the given address
func (c *Collector) Serve(log *zap.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", addr))
	return srv
}
