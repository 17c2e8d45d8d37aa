package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/utafrali/PoiCatalog/pkg/logger"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
	"github.com/utafrali/PoiCatalog/services/poi/internal/repository"
	"github.com/utafrali/PoiCatalog/services/poi/internal/score"
)

// Recompute triggers.
const (
	TriggerReview    = "review"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Recomputer refreshes stored popularity scores from the review store.
type Recomputer struct {
	pois    repository.PoiRepository
	reviews repository.ReviewRepository
	engine  *score.Engine
	cache   ViewCache
	events  EventSink
	logger  *slog.Logger

	now Clock
}

// NewRecomputer creates a Recomputer.
func NewRecomputer(
	pois repository.PoiRepository,
	reviews repository.ReviewRepository,
	engine *score.Engine,
	cache ViewCache,
	events EventSink,
	logger *slog.Logger,
) *Recomputer {
	return &Recomputer{
		pois:    pois,
		reviews: reviews,
		engine:  engine,
		cache:   cache,
		events:  events,
		logger:  logger,
		now:     systemClock,
	}
}

// GlobalAverage returns the mean rating over all reviews, or NaN when there
// are none so the engine falls back to its neutral average.
func (r *Recomputer) GlobalAverage(ctx context.Context) (float64, error) {
	avg, ok, err := r.reviews.GlobalAverageRating(ctx)
	if err != nil {
		return 0, storeErr("global average rating", err)
	}
	if !ok {
		return math.NaN(), nil
	}
	return avg, nil
}

// Recompute fetches the global average and refreshes one Poi.
func (r *Recomputer) Recompute(ctx context.Context, poiID, trigger string) (float64, error) {
	g, err := r.GlobalAverage(ctx)
	if err != nil {
		recomputes.WithLabelValues(trigger, "error").Inc()
		return 0, err
	}
	return r.RecomputeWith(ctx, poiID, g, trigger)
}

// RecomputeWith refreshes one Poi against a precomputed global average, so
// a batch can read the average once. The cache entry is dropped on both
// sides of the score write; a reader that refills it in between cannot pin
// the old score for a whole TTL.
func (r *Recomputer) RecomputeWith(ctx context.Context, poiID string, globalAverage float64, trigger string) (float64, error) {
	reviews, err := r.reviews.ListByTarget(ctx, domain.PoiTarget(poiID))
	if err != nil {
		recomputes.WithLabelValues(trigger, "error").Inc()
		return 0, storeErr("list poi reviews", err)
	}

	samples := make([]score.Sample, len(reviews))
	for i, rv := range reviews {
		samples[i] = score.Sample{Rating: float64(rv.Rating), CreatedAt: rv.CreatedAt}
	}

	now := r.now()
	value := r.engine.Compute(samples, globalAverage, now)

	r.invalidate(ctx, poiID)
	if err := r.pois.UpdateScore(ctx, poiID, value, now); err != nil {
		recomputes.WithLabelValues(trigger, "error").Inc()
		return 0, storeErr("update poi score", err)
	}
	r.invalidate(ctx, poiID)

	recomputes.WithLabelValues(trigger, "ok").Inc()
	r.events.Publish(ctx, domain.EventPoiRescored, poiID, domain.ScoreEvent{PoiID: poiID, Score: value, Trigger: trigger})

	logger.WithContext(ctx, r.logger).DebugContext(ctx, "poi score recomputed",
		slog.String("poi_id", poiID),
		slog.Float64("score", value),
		slog.Int("reviews", len(reviews)),
		slog.String("trigger", trigger),
	)
	return value, nil
}

func (r *Recomputer) invalidate(ctx context.Context, poiID string) {
	if err := r.cache.Invalidate(ctx, poiID); err != nil {
		cacheFailures.WithLabelValues("invalidate").Inc()
		logger.WithContext(ctx, r.logger).WarnContext(ctx, "poi cache invalidate failed",
			slog.String("poi_id", poiID),
			slog.String("error", err.Error()),
		)
	}
}
