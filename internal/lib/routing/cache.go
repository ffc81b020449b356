package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CachingProvider wraps a Provider with a thread-safe in-memory TTL cache.
// Feature detection re-issues near-identical directions requests in quick
// succession; serving those from cache avoids re-billing the provider.
type CachingProvider struct {
	log   *zap.Logger
	inner Provider
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	data      []byte
	createdAt time.Time
	expiresAt time.Time
}

// NewCachingProvider wraps a provider with a response cache using the given TTL
func NewCachingProvider(log *zap.Logger, inner Provider, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		log:     log,
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

// Directions serves a cached response when a fresh one exists for the same
// request, delegating to the wrapped provider otherwise. Provider errors are
// never cached.
func (c *CachingProvider) Directions(ctx context.Context, req DirectionsRequest) ([]*Route, error) {
	key := cacheKey(req)

	if routes, ok := c.get(key); ok {
		c.log.Debug("directions cache hit", zap.String("key", key))
		return routes, nil
	}

	routes, err := c.inner.Directions(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.set(key, routes); err != nil {
		c.log.Warn("failed to cache directions response", zap.Error(err))
	}
	return routes, nil
}

func (c *CachingProvider) get(key string) ([]*Route, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	var routes []*Route
	if err := json.Unmarshal(entry.data, &routes); err != nil {
		c.log.Warn("failed to unmarshal cached directions", zap.Error(err))
		return nil, false
	}
	return routes, true
}

func (c *CachingProvider) set(key string, routes []*Route) error {
	data, err := json.Marshal(routes)
	if err != nil {
		return fmt.Errorf("failed to marshal routes for cache: %w", err)
	}

	now := time.Now()
	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		data:      data,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

// Purge drops all cached responses
func (c *CachingProvider) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// cacheKey builds a stable key from the request's coordinates, alternatives
// flag and sorted exclusion set.
func cacheKey(req DirectionsRequest) string {
	excludes := append([]string(nil), req.Excludes...)
	sort.Strings(excludes)
	return fmt.Sprintf("%.6f,%.6f|%.6f,%.6f|alt=%t|ex=%s",
		req.Origin.Longitude, req.Origin.Latitude,
		req.Destination.Longitude, req.Destination.Latitude,
		req.Alternatives, strings.Join(excludes, ","))
}
