package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sydlexius/driftwood/internal/media"
)

// Default rate limits per provider type (requests per second).
var defaultRateLimits = map[media.ProviderType]rate.Limit{
	TypeSpotify: 10,
	TypeQobuz:   5,
	TypeTidal:   5,
	TypeFile:    100,
}

// fallbackRateLimit applies to provider types without a documented limit.
const fallbackRateLimit rate.Limit = 2

// RateLimiterMap holds one rate.Limiter per provider type. Instances of the
// same type share a limiter since they usually share an upstream quota.
type RateLimiterMap struct {
	mu       sync.Mutex
	limiters map[media.ProviderType]*rate.Limiter
}

// NewRateLimiterMap creates the limiter map with the default limits.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[media.ProviderType]*rate.Limiter, len(defaultRateLimits)),
	}
	for t, limit := range defaultRateLimits {
		m.limiters[t] = rate.NewLimiter(limit, 1)
	}
	return m
}

// Wait blocks until the limiter for the given provider type allows a
// request, or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, t media.ProviderType) error {
	m.mu.Lock()
	limiter, ok := m.limiters[t]
	if !ok {
		limiter = rate.NewLimiter(fallbackRateLimit, 1)
		m.limiters[t] = limiter
	}
	m.mu.Unlock()
	return limiter.Wait(ctx)
}
