package service

import (
	"context"
	"log/slog"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/pkg/logger"
	"github.com/utafrali/PoiCatalog/pkg/validator"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
	"github.com/utafrali/PoiCatalog/services/poi/internal/repository"
)

// ScoreRefresher recomputes one Poi's score. *Recomputer satisfies it.
type ScoreRefresher interface {
	Recompute(ctx context.Context, poiID, trigger string) (float64, error)
}

// ReviewService manages reviews. Every committed change to a Poi review is
// followed, before returning, by a recompute of that Poi's score.
type ReviewService struct {
	reviews repository.ReviewRepository
	pois    repository.PoiRepository
	scores  ScoreRefresher
	events  EventSink
	logger  *slog.Logger

	now   Clock
	newID IDGenerator
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	pois repository.PoiRepository,
	scores ScoreRefresher,
	events EventSink,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews: reviews,
		pois:    pois,
		scores:  scores,
		events:  events,
		logger:  logger,
		now:     systemClock,
		newID:   newUUID,
	}
}

// Create posts a review. Poi targets must exist.
func (s *ReviewService) Create(ctx context.Context, input domain.CreateReviewInput) (*domain.Review, error) {
	if input.Target.IsZero() {
		return nil, apperrors.InvalidInput(domain.ErrInvalidTarget.Error())
	}
	if input.AuthorID == "" {
		return nil, apperrors.InvalidInput("author is required")
	}
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	if poiID, ok := input.Target.PoiID(); ok {
		if _, err := s.pois.GetByID(ctx, poiID); err != nil {
			return nil, storeErr("get reviewed poi", err)
		}
	}

	platform := input.Platform
	if platform == "" {
		platform = "web"
	}

	now := s.now()
	rv := &domain.Review{
		ID:        s.newID(),
		Target:    input.Target,
		AuthorID:  input.AuthorID,
		Platform:  platform,
		Rating:    input.Rating,
		Body:      input.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, storeErr("create review", err)
	}

	s.afterWrite(ctx, domain.EventReviewCreated, rv)
	return rv, nil
}

// Get returns a review.
func (s *ReviewService) Get(ctx context.Context, id string) (*domain.Review, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get review", err)
	}
	return rv, nil
}

// List returns a page of reviews of target.
func (s *ReviewService) List(ctx context.Context, target domain.Target, limit, offset int) ([]domain.Review, int, error) {
	if target.IsZero() {
		return nil, 0, apperrors.InvalidInput(domain.ErrInvalidTarget.Error())
	}
	reviews, total, err := s.reviews.ListByTargetPage(ctx, target, limit, offset)
	if err != nil {
		return nil, 0, storeErr("list reviews", err)
	}
	return reviews, total, nil
}

// Update edits the rating or body. Only the author or a moderator may edit.
func (s *ReviewService) Update(ctx context.Context, id string, patch domain.ReviewPatch, actor Actor) (*domain.Review, error) {
	if err := validator.Validate(patch); err != nil {
		return nil, err
	}

	rv, err := s.authorize(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	patch.Apply(rv)
	rv.UpdatedAt = s.now()

	if err := s.reviews.Update(ctx, rv); err != nil {
		return nil, storeErr("update review", err)
	}

	s.afterWrite(ctx, domain.EventReviewUpdated, rv)
	return rv, nil
}

// Delete removes a review. Only the author or a moderator may delete.
func (s *ReviewService) Delete(ctx context.Context, id string, actor Actor) error {
	rv, err := s.authorize(ctx, id, actor)
	if err != nil {
		return err
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return storeErr("delete review", err)
	}

	s.afterWrite(ctx, domain.EventReviewDeleted, rv)
	return nil
}

// React records a like or dislike.
func (s *ReviewService) React(ctx context.Context, id string, reaction domain.Reaction) (*domain.Review, error) {
	if reaction != domain.ReactionLike && reaction != domain.ReactionDislike {
		return nil, apperrors.InvalidInput("reaction must be like or dislike")
	}

	rv, err := s.reviews.IncrementReaction(ctx, id, reaction)
	if err != nil {
		return nil, storeErr("react to review", err)
	}

	s.afterWrite(ctx, domain.EventReviewUpdated, rv)
	return rv, nil
}

func (s *ReviewService) authorize(ctx context.Context, id string, actor Actor) (*domain.Review, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get review", err)
	}
	if rv.AuthorID != actor.ID && !actor.Moderator {
		return nil, apperrors.Forbidden("only the author or a moderator can change this review")
	}
	return rv, nil
}

// afterWrite runs once a review change has committed: the owning Poi's score
// is recomputed and the change is published. A failed recompute is logged
// and left for the scheduled batch; the review change itself stands.
func (s *ReviewService) afterWrite(ctx context.Context, eventType string, rv *domain.Review) {
	if poiID, ok := rv.Target.PoiID(); ok {
		if _, err := s.scores.Recompute(ctx, poiID, TriggerReview); err != nil {
			level, reason := slog.LevelError, "error"
			if isNotFound(err) {
				level, reason = slog.LevelWarn, "not_found"
			}
			reviewRecomputeFailures.WithLabelValues(reason).Inc()
			logger.WithContext(ctx, s.logger).Log(ctx, level, "score recompute after review change failed",
				slog.String("poi_id", poiID),
				slog.String("review_id", rv.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.events.Publish(ctx, eventType, rv.ID, domain.ReviewEvent{Review: rv})
}
