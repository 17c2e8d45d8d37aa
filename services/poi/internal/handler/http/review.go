package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/pkg/httputil"
	"github.com/utafrali/PoiCatalog/pkg/pagination"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
	"github.com/utafrali/PoiCatalog/services/poi/internal/service"
)

// ReviewService is the review API as seen by the HTTP layer.
// *service.ReviewService satisfies it.
type ReviewService interface {
	Create(ctx context.Context, input domain.CreateReviewInput) (*domain.Review, error)
	Get(ctx context.Context, id string) (*domain.Review, error)
	List(ctx context.Context, target domain.Target, limit, offset int) ([]domain.Review, int, error)
	Update(ctx context.Context, id string, patch domain.ReviewPatch, actor service.Actor) (*domain.Review, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
	React(ctx context.Context, id string, reaction domain.Reaction) (*domain.Review, error)
}

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// CreateReviewRequest is the JSON body for posting a review.
type CreateReviewRequest struct {
	Rating   int    `json:"rating"`
	Body     string `json:"body"`
	Platform string `json:"platform"`
}

// ListReviews returns a handler for GET /api/v1/{kind}s/{id}/reviews.
func (h *ReviewHandler) ListReviews(kind domain.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := h.target(w, r, kind)
		if !ok {
			return
		}

		params := pagination.FromRequest(r)
		reviews, total, err := h.service.List(r.Context(), target, params.PerPage, params.Offset())
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(reviews, total, params))
	}
}

// CreateReview returns a handler for POST /api/v1/{kind}s/{id}/reviews.
func (h *ReviewHandler) CreateReview(kind domain.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := h.target(w, r, kind)
		if !ok {
			return
		}

		var req CreateReviewRequest
		if !decode(w, r, &req, h.logger) {
			return
		}

		rv, err := h.service.Create(r.Context(), domain.CreateReviewInput{
			Target:   target,
			AuthorID: actorFrom(r).ID,
			Platform: req.Platform,
			Rating:   req.Rating,
			Body:     req.Body,
		})
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteData(w, http.StatusCreated, rv)
	}
}

// GetReview handles GET /api/v1/reviews/{reviewId}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reviewId")
	if !ok {
		return
	}

	rv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rv)
}

// UpdateReview handles PATCH /api/v1/reviews/{reviewId}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reviewId")
	if !ok {
		return
	}

	var patch domain.ReviewPatch
	if !decode(w, r, &patch, h.logger) {
		return
	}

	rv, err := h.service.Update(r.Context(), id, patch, actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rv)
}

// DeleteReview handles DELETE /api/v1/reviews/{reviewId}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reviewId")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// React returns a handler for POST /api/v1/reviews/{reviewId}/like and
// /dislike.
func (h *ReviewHandler) React(reaction domain.Reaction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "reviewId")
		if !ok {
			return
		}

		rv, err := h.service.React(r.Context(), id, reaction)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, rv)
	}
}

// target builds the review target from the path. Poi ids must be UUIDs;
// blog and podcast ids are opaque.
func (h *ReviewHandler) target(w http.ResponseWriter, r *http.Request, kind domain.TargetKind) (domain.Target, bool) {
	id := chi.URLParam(r, "id")
	if kind == domain.TargetPoi {
		var ok bool
		if id, ok = pathID(w, r, "id"); !ok {
			return domain.Target{}, false
		}
	}
	target, err := domain.NewTarget(kind, id)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return domain.Target{}, false
	}
	return target, true
}
