package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/tracking"
)

// Config represents the complete navigation engine configuration
type Config struct {
	Provider ProviderConfig `koanf:"provider"`
	Guidance GuidanceConfig `koanf:"guidance"`
	Reroute  RerouteConfig  `koanf:"reroute"`
	Features FeaturesConfig `koanf:"features"`
	Trip     TripConfig     `koanf:"trip"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Sim      SimConfig      `koanf:"sim"`
}

// ProviderConfig holds directions provider settings
type ProviderConfig struct {
	AccessToken string        `koanf:"access_token"`
	BaseURL     string        `koanf:"base_url"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
}

// GuidanceConfig holds the progress tracker's thresholds
type GuidanceConfig struct {
	OffRouteThresholdMeters   float64 `koanf:"off_route_threshold_meters"`
	OffRouteConfirmationCount int     `koanf:"off_route_confirmation_count"`
	ArrivalThresholdMeters    float64 `koanf:"arrival_threshold_meters"`
	ActivationBufferMeters    float64 `koanf:"activation_buffer_meters"`
	ToleranceMeters           float64 `koanf:"tolerance_meters"`
}

// RerouteConfig holds the reroute throttle thresholds
type RerouteConfig struct {
	MinInterval       time.Duration `koanf:"min_interval"`
	MinDistanceMeters float64       `koanf:"min_distance_meters"`
}

// FeaturesConfig holds the feature-detection thresholds
type FeaturesConfig struct {
	DurationDeltaPct float64 `koanf:"duration_delta_pct"`
	SimilarityFloor  float64 `koanf:"similarity_floor"`
}

// CoordinateConfig represents a lon/lat pair in configuration
type CoordinateConfig struct {
	Longitude float64 `koanf:"lng"`
	Latitude  float64 `koanf:"lat"`
}

// ToPoint converts a CoordinateConfig to a geo.Point
func (c CoordinateConfig) ToPoint() geo.Point {
	return geo.Point{Longitude: c.Longitude, Latitude: c.Latitude}
}

// TripConfig holds the trip driven by the navigator command
type TripConfig struct {
	Origin      CoordinateConfig `koanf:"origin"`
	Destination CoordinateConfig `koanf:"destination"`
	Excludes    []string         `koanf:"excludes"`
}

// MetricsConfig holds the metrics endpoint settings; an empty address
// disables the metrics server.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// SimConfig holds the simulated drive settings for the navigator command
type SimConfig struct {
	SpeedKmh    float64       `koanf:"speed_kmh"`
	FixInterval time.Duration `koanf:"fix_interval"`
}

// defaults mirror the engine's standard thresholds
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"provider.base_url":  "https://api.mapbox.com",
		"provider.cache_ttl": 5 * time.Minute,

		"guidance.off_route_threshold_meters":   50.0,
		"guidance.off_route_confirmation_count": 3,
		"guidance.arrival_threshold_meters":     20.0,
		"guidance.activation_buffer_meters":     30.0,
		"guidance.tolerance_meters":             10.0,

		"reroute.min_interval":        30 * time.Second,
		"reroute.min_distance_meters": 50.0,

		"features.duration_delta_pct": 15.0,
		"features.similarity_floor":   0.75,

		// Châtelet → Place d'Italie by default
		"trip.origin.lng":      2.3470,
		"trip.origin.lat":      48.8583,
		"trip.destination.lng": 2.3556,
		"trip.destination.lat": 48.8322,

		"sim.speed_kmh":    40.0,
		"sim.fix_interval": time.Second,
	}
}

// Load reads configuration from defaults, an optional YAML file, and
// NAV_-prefixed environment variables, in that order of precedence
// (later sources win). Environment keys use a double underscore as the
// section separator, e.g. NAV_GUIDANCE__ARRIVAL_THRESHOLD_METERS.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("NAV_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "NAV_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings the engine cannot run without
func (c *Config) Validate() error {
	if c.Provider.AccessToken == "" {
		return errors.New("provider access token is required (NAV_PROVIDER__ACCESS_TOKEN)")
	}
	if c.Guidance.OffRouteConfirmationCount < 1 {
		return errors.New("guidance off_route_confirmation_count must be at least 1")
	}
	if _, err := geo.NewPoint(c.Trip.Origin.Longitude, c.Trip.Origin.Latitude); err != nil {
		return fmt.Errorf("trip origin: %w", err)
	}
	if _, err := geo.NewPoint(c.Trip.Destination.Longitude, c.Trip.Destination.Latitude); err != nil {
		return fmt.Errorf("trip destination: %w", err)
	}
	return nil
}

// TrackingConfig converts guidance settings to the tracker's config
func (c *Config) TrackingConfig() tracking.Config {
	return tracking.Config{
		OffRouteThresholdMeters:   c.Guidance.OffRouteThresholdMeters,
		OffRouteConfirmationCount: c.Guidance.OffRouteConfirmationCount,
		ArrivalThresholdMeters:    c.Guidance.ArrivalThresholdMeters,
		ActivationBufferMeters:    c.Guidance.ActivationBufferMeters,
		ToleranceMeters:           c.Guidance.ToleranceMeters,
	}
}

// RerouteTrackingConfig converts reroute settings to the rerouter's config
func (c *Config) RerouteTrackingConfig() tracking.RerouteConfig {
	return tracking.RerouteConfig{
		MinInterval:       c.Reroute.MinInterval,
		MinDistanceMeters: c.Reroute.MinDistanceMeters,
	}
}
