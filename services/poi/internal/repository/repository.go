package repository

import (
	"context"
	"time"

	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// PoiRepository defines the interface for Poi persistence operations.
type PoiRepository interface {
	// Create inserts a new Poi.
	Create(ctx context.Context, p *domain.Poi) error

	// UpdateDetails writes only the non-nil fields of patch plus updated_at
	// and returns the stored Poi. Status and activation are left alone.
	UpdateDetails(ctx context.Context, id string, patch domain.PoiPatch, at time.Time) (*domain.Poi, error)

	// SetActive writes the active flag and the deactivation details.
	SetActive(ctx context.Context, id string, active bool, reason, by *string, at time.Time) (*domain.Poi, error)

	// Transition changes the status from from to to, recording by as the
	// approver when set. It returns Conflict when the stored status is no
	// longer from.
	Transition(ctx context.Context, id string, from, to domain.Status, by *string, at time.Time) (*domain.Poi, error)

	// GetByID returns the Poi or a NotFound error.
	GetByID(ctx context.Context, id string) (*domain.Poi, error)

	// Delete removes a Poi and its reviews. Deleting a missing Poi returns NotFound.
	Delete(ctx context.Context, id string) error

	// DeleteInStatus deletes like Delete but only while the Poi is in
	// status; otherwise it returns Conflict.
	DeleteInStatus(ctx context.Context, id string, status domain.Status) error

	// ExistsByNameInOrg reports whether another Poi in orgID already uses name.
	// excludeID, when non-empty, is left out of the check.
	ExistsByNameInOrg(ctx context.Context, name, orgID, excludeID string) (bool, error)

	// List returns a page of POIs matching filter and the total match count.
	List(ctx context.Context, filter domain.PoiFilter) ([]domain.Poi, int, error)

	// ListPopular returns approved, active POIs ordered by popularity.
	ListPopular(ctx context.Context, limit int) ([]domain.Poi, error)

	// Stream calls fn for every Poi, optionally restricted to one status, in
	// id order. Iteration stops at the first error returned by fn.
	Stream(ctx context.Context, status *domain.Status, fn func(*domain.Poi) error) error

	// UpdateScore writes the popularity score without touching other columns.
	UpdateScore(ctx context.Context, id string, score float64, at time.Time) error
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts a new review.
	Create(ctx context.Context, r *domain.Review) error

	// Update writes the rating, body and updated_at of an existing review.
	Update(ctx context.Context, r *domain.Review) error

	// GetByID returns the review or a NotFound error.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// Delete removes a review.
	Delete(ctx context.Context, id string) error

	// ListByTarget returns every review of target, newest first.
	ListByTarget(ctx context.Context, target domain.Target) ([]domain.Review, error)

	// ListByTargetPage returns one page of reviews of target and the total count.
	ListByTargetPage(ctx context.Context, target domain.Target, limit, offset int) ([]domain.Review, int, error)

	// GlobalAverageRating returns the mean rating over every review in the
	// system, whatever its target. ok is false when there are none.
	GlobalAverageRating(ctx context.Context) (avg float64, ok bool, err error)

	// GlobalReviewCount returns the number of reviews in the system.
	GlobalReviewCount(ctx context.Context) (int, error)

	// IncrementReaction adds one like or dislike and returns the updated review.
	IncrementReaction(ctx context.Context, id string, reaction domain.Reaction) (*domain.Review, error)
}
