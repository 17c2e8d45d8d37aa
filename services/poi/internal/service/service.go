package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// ViewCache is the Poi read cache. *cache.PoiViews satisfies it. Get
// returns an error on a miss; callers treat every Get error as a miss.
type ViewCache interface {
	Get(ctx context.Context, id string) (*domain.Poi, error)
	Set(ctx context.Context, p *domain.Poi) error
	Invalidate(ctx context.Context, id string) error
}

// EventSink publishes domain events. It never fails the caller.
type EventSink interface {
	Publish(ctx context.Context, eventType, aggregateID string, payload any)
}

// NotificationQueue accepts notifications without blocking.
// *notify.Dispatcher satisfies it.
type NotificationQueue interface {
	Enqueue(n domain.Notification) bool
}

// Actor is the user performing an operation.
type Actor struct {
	ID        string
	Moderator bool
}

// Clock and ID sources, replaceable in tests.
type (
	Clock       func() time.Time
	IDGenerator func() string
)

func systemClock() time.Time { return time.Now().UTC() }

func newUUID() string { return uuid.NewString() }

var (
	recomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_score_recomputes_total",
		Help: "Popularity score recomputations by trigger and outcome.",
	}, []string{"trigger", "result"})
	cacheFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_cache_failures_ignored_total",
		Help: "Cache failures the service logged and carried on from.",
	}, []string{"op"})
	reviewRecomputeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_review_recompute_failures_total",
		Help: "Review writes that committed but left the Poi score stale.",
	}, []string{"reason"})
)

// storeErr wraps a repository failure. Errors that already carry a status,
// such as NotFound, keep it; anything else becomes a StoreError.
func storeErr(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperrors.Store(op, err)
}
