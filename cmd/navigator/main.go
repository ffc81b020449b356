package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/YoannChhang/4proj-nav-engine/internal/clients/mapbox"
	"github.com/YoannChhang/4proj-nav-engine/internal/config"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/features"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/routing"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/tracking"
	"github.com/YoannChhang/4proj-nav-engine/internal/metrics"
	"github.com/YoannChhang/4proj-nav-engine/internal/services"
	"github.com/YoannChhang/4proj-nav-engine/internal/sim"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	deviate := flag.Bool("deviate", false, "inject a detour into the simulated drive to exercise rerouting")
	flag.Parse()

	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	collector := metrics.NewCollector()
	if cfg.Metrics.Addr != "" {
		collector.Serve(log, cfg.Metrics.Addr)
	}

	client := mapbox.NewClientWithHTTPDoer(cfg.Provider.AccessToken, cfg.Provider.BaseURL, &http.Client{
		Timeout: 30 * time.Second,
	})
	instrumented := metrics.NewInstrumentedProvider(client, collector)
	provider := routing.NewCachingProvider(log, instrumented, cfg.Provider.CacheTTL)

	announcer := services.NewCountingAnnouncer(consoleAnnouncer{log: log}, collector)
	calculator := routing.NewCalculator(log, provider)
	analyzer := features.NewAnalyzer(log, provider, cfg.Features.DurationDeltaPct, cfg.Features.SimilarityFloor)
	tracker := tracking.NewTracker(log, cfg.TrackingConfig(), announcer)
	rerouter := tracking.NewRerouter(log, cfg.RerouteTrackingConfig(), provider, announcer)

	session := services.NewNavigationSession(log, calculator, analyzer, tracker, rerouter, nil, collector)
	session.SetResponseCache(provider)
	session.SetExcludes(cfg.Trip.Excludes)

	origin := cfg.Trip.Origin.ToPoint()
	destination := cfg.Trip.Destination.ToPoint()

	ctx := context.Background()
	if err := session.CalculateRoutes(ctx, origin, destination); err != nil {
		log.Fatal("route calculation failed", zap.Error(err))
	}

	state := session.Snapshot()
	logRouteFeatures(log, state)

	var dev *sim.Deviation
	if *deviate {
		// Push a handful of fixes ~200 m sideways a third of the way in.
		dev = &sim.Deviation{
			After:         len(state.SelectedRoute.Geometry) / 3,
			Count:         5,
			OffsetDegrees: 0.002,
		}
	}
	stream := sim.NewStream(log, state.SelectedRoute.Geometry, cfg.Sim.SpeedKmh, cfg.Sim.FixInterval, dev)
	session.SetLocationStream(stream)

	if err := session.StartNavigation(); err != nil {
		log.Fatal("navigation start failed", zap.Error(err))
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stream.Done():
			final := session.Snapshot()
			log.Info("drive finished",
				zap.Bool("navigating", final.IsNavigating),
				zap.Float64("remaining_m", final.RemainingDistance))
			return
		case <-ticker.C:
			s := session.Snapshot()
			log.Info("progress",
				zap.String("instruction", s.DisplayedInstruction),
				zap.Float64("to_maneuver_m", s.DistanceToNextManeuver),
				zap.Float64("remaining_m", s.RemainingDistance),
				zap.Time("eta", s.EstimatedArrival),
				zap.Bool("rerouting", s.IsRerouting))
		}
	}
}

func logRouteFeatures(log *zap.Logger, state services.NavigationState) {
	for key, f := range state.RouteFeatures {
		log.Info("route",
			zap.String("route", key),
			zap.String("duration", f.FormattedDuration),
			zap.String("distance", f.FormattedDistance),
			zap.Bool("highways", f.HasHighways),
			zap.Bool("tolls", f.HasTolls),
			zap.Bool("unpaved", f.HasUnpavedRoads),
			zap.String("traffic", string(f.TrafficLevel)))
	}
}

// consoleAnnouncer plays voice guidance as log lines
type consoleAnnouncer struct {
	log *zap.Logger
}

func (a consoleAnnouncer) Speak(text string, significant bool) {
	a.log.Info("announcement", zap.String("text", text), zap.Bool("significant", significant))
}
