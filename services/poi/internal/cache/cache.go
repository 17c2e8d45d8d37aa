// Package cache holds the Poi read cache. Entries are a convenience copy of
// the store: any error talking to the backend is treated as a miss by
// readers, and writers only ever delete or overwrite whole entries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Defaults for the Poi view cache.
const (
	DefaultTTL     = time.Hour
	DefaultTimeout = 150 * time.Millisecond
	keyPrefix      = "poi:view:"
)

var requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "poi_cache_requests_total",
	Help: "Poi view cache operations by outcome.",
}, []string{"op", "result"})

// Key returns the cache key of Poi id.
func Key(id string) string { return keyPrefix + id }

// PoiViews caches the JSON representation of POIs. Every backend call runs
// under its own short timeout so a slow cache never stalls a request.
type PoiViews struct {
	backend Cache
	ttl     time.Duration
	timeout time.Duration
}

// NewPoiViews wraps backend. Non-positive ttl or timeout fall back to the
// defaults.
func NewPoiViews(backend Cache, ttl, timeout time.Duration) *PoiViews {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PoiViews{backend: backend, ttl: ttl, timeout: timeout}
}

// Get returns the cached Poi. A missing entry yields ErrMiss; backend
// failures, timeouts and undecodable entries yield a Transient error.
func (v *PoiViews) Get(ctx context.Context, id string) (*domain.Poi, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	data, err := v.backend.Get(ctx, Key(id))
	if errors.Is(err, ErrMiss) {
		requests.WithLabelValues("get", "miss").Inc()
		return nil, ErrMiss
	}
	if err != nil {
		requests.WithLabelValues("get", "error").Inc()
		return nil, apperrors.Transient("cache", fmt.Errorf("get %s: %w", id, err))
	}

	var p domain.Poi
	if err := json.Unmarshal(data, &p); err != nil {
		requests.WithLabelValues("get", "error").Inc()
		return nil, apperrors.Transient("cache", fmt.Errorf("decode %s: %w", id, err))
	}

	requests.WithLabelValues("get", "hit").Inc()
	return &p, nil
}

// Set stores p under its id with the configured TTL.
func (v *PoiViews) Set(ctx context.Context, p *domain.Poi) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode poi %s: %w", p.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if err := v.backend.Set(ctx, Key(p.ID), data, v.ttl); err != nil {
		requests.WithLabelValues("set", "error").Inc()
		return apperrors.Transient("cache", fmt.Errorf("set %s: %w", p.ID, err))
	}

	requests.WithLabelValues("set", "ok").Inc()
	return nil
}

// Invalidate deletes the entry for id. Deleting an absent key succeeds.
func (v *PoiViews) Invalidate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if err := v.backend.Delete(ctx, Key(id)); err != nil {
		requests.WithLabelValues("delete", "error").Inc()
		return apperrors.Transient("cache", fmt.Errorf("delete %s: %w", id, err))
	}

	requests.WithLabelValues("delete", "ok").Inc()
	return nil
}
