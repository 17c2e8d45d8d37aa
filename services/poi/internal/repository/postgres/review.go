package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/PoiCatalog/pkg/database"
	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

const reviewColumns = `id, poi_id, blog_id, podcast_id, author_id, platform, rating, body,
		likes, dislikes, created_at, updated_at`

// targetColumn maps a target kind to the column holding its id. The reviews
// table enforces that exactly one of them is set.
var targetColumn = map[domain.TargetKind]string{
	domain.TargetPoi:     "poi_id",
	domain.TargetBlog:    "blog_id",
	domain.TargetPodcast: "podcast_id",
}

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) (err error) {
	query := `
		INSERT INTO reviews (id, poi_id, blog_id, podcast_id, author_id, platform, rating, body,
		                     likes, dislikes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	poiID, blogID, podcastID, err := targetIDs(rv.Target)
	if err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		rv.ID,
		poiID,
		blogID,
		podcastID,
		rv.AuthorID,
		rv.Platform,
		rv.Rating,
		rv.Body,
		rv.Likes,
		rv.Dislikes,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// Update writes the editable fields of a review.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) (err error) {
	query := `UPDATE reviews SET rating = $1, body = $2, updated_at = $3 WHERE id = $4`

	ctx, end := database.TraceQuery(ctx, "UpdateReview", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, rv.Rating, rv.Body, rv.UpdatedAt, rv.ID)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", rv.ID)
	}

	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (rv *domain.Review, err error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReview", query)
	defer func() { end(err) }()

	rv, err = scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	return rv, nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteReview", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}

	return nil
}

// ListByTarget returns every review of target, newest first. The score
// engine needs the full set, so there is no limit.
func (r *ReviewRepository) ListByTarget(ctx context.Context, target domain.Target) (reviews []domain.Review, err error) {
	col, ok := targetColumn[target.Kind()]
	if !ok {
		return nil, apperrors.InvalidInput(domain.ErrInvalidTarget.Error())
	}

	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE %s = $1 ORDER BY created_at DESC, id`, reviewColumns, col)

	ctx, end := database.TraceQuery(ctx, "ListReviewsByTarget", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, target.ID())
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *rv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, nil
}

// ListByTargetPage returns a page of reviews of target with the total count.
func (r *ReviewRepository) ListByTargetPage(ctx context.Context, target domain.Target, limit, offset int) (reviews []domain.Review, total int, err error) {
	col, ok := targetColumn[target.Kind()]
	if !ok {
		return nil, 0, apperrors.InvalidInput(domain.ErrInvalidTarget.Error())
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM reviews
		WHERE %s = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, reviewColumns, col)

	ctx, end := database.TraceQuery(ctx, "ListReviewsPage", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, target.ID(), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rv, err := scanReview(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *rv)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, total, nil
}

// GlobalAverageRating returns the mean rating across every review.
func (r *ReviewRepository) GlobalAverageRating(ctx context.Context) (avg float64, ok bool, err error) {
	query := `SELECT AVG(rating)::float8 FROM reviews`

	ctx, end := database.TraceQuery(ctx, "GlobalAverageRating", query)
	defer func() { end(err) }()

	var v *float64
	if err = r.pool.QueryRow(ctx, query).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("global average rating: %w", err)
	}
	if v == nil {
		return 0, false, nil
	}

	return *v, true, nil
}

// GlobalReviewCount returns the number of reviews.
func (r *ReviewRepository) GlobalReviewCount(ctx context.Context) (n int, err error) {
	query := `SELECT COUNT(*) FROM reviews`

	ctx, end := database.TraceQuery(ctx, "GlobalReviewCount", query)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("global review count: %w", err)
	}

	return n, nil
}

// IncrementReaction adds one like or dislike atomically.
func (r *ReviewRepository) IncrementReaction(ctx context.Context, id string, reaction domain.Reaction) (rv *domain.Review, err error) {
	var col string
	switch reaction {
	case domain.ReactionLike:
		col = "likes"
	case domain.ReactionDislike:
		col = "dislikes"
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown reaction %q", reaction))
	}

	query := fmt.Sprintf(`UPDATE reviews SET %s = %s + 1 WHERE id = $1 RETURNING %s`, col, col, reviewColumns)

	ctx, end := database.TraceQuery(ctx, "IncrementReaction", query)
	defer func() { end(err) }()

	rv, err = scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("increment %s: %w", col, err)
	}

	return rv, nil
}

func targetIDs(t domain.Target) (poiID, blogID, podcastID *string, err error) {
	id := t.ID()
	switch t.Kind() {
	case domain.TargetPoi:
		poiID = &id
	case domain.TargetBlog:
		blogID = &id
	case domain.TargetPodcast:
		podcastID = &id
	default:
		return nil, nil, nil, domain.ErrInvalidTarget
	}
	return poiID, blogID, podcastID, nil
}

func scanReview(row rowScanner, extra ...any) (*domain.Review, error) {
	var (
		rv                       domain.Review
		poiID, blogID, podcastID *string
	)
	dest := []any{
		&rv.ID,
		&poiID,
		&blogID,
		&podcastID,
		&rv.AuthorID,
		&rv.Platform,
		&rv.Rating,
		&rv.Body,
		&rv.Likes,
		&rv.Dislikes,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	switch {
	case poiID != nil:
		rv.Target, err = domain.NewTarget(domain.TargetPoi, *poiID)
	case blogID != nil:
		rv.Target, err = domain.NewTarget(domain.TargetBlog, *blogID)
	case podcastID != nil:
		rv.Target, err = domain.NewTarget(domain.TargetPodcast, *podcastID)
	default:
		err = domain.ErrInvalidTarget
	}
	if err != nil {
		return nil, fmt.Errorf("review %s: %w", rv.ID, err)
	}

	rv.CreatedAt = rv.CreatedAt.UTC()
	rv.UpdatedAt = rv.UpdatedAt.UTC()
	return &rv, nil
}
