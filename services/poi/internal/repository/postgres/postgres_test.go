package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/PoiCatalog/pkg/database"
	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func strPtr(s string) *string { return &s }

// anyArgs matches n arguments of any value; pgxmock rejects calls whose
// argument count differs from the expectation's.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

var poiColumnNames = []string{
	"id", "organization_id", "created_by", "name", "description", "category", "address",
	"lat", "lon", "submitter_email", "submitter_phone", "status", "active",
	"deactivation_reason", "deactivated_by", "approved_by", "popularity_score",
	"created_at", "updated_at",
}

func samplePoi() domain.Poi {
	return domain.Poi{
		ID:             "00000000-0000-0000-0000-0000000000a1",
		OrganizationID: "00000000-0000-0000-0000-0000000000f1",
		CreatedBy:      "user-1",
		Name:           "Old Mill",
		Description:    "Restored water mill",
		Category:       "heritage",
		Address:        "1 Mill Lane",
		Location:       domain.Location{Lat: 52.37, Lon: 4.89},
		SubmitterEmail: "ada@example.com",
		SubmitterPhone: "+31600000000",
		Status:         domain.StatusSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func poiRow(p domain.Poi) []any {
	return []any{
		p.ID, p.OrganizationID, p.CreatedBy, p.Name, p.Description, p.Category, p.Address,
		p.Location.Lat, p.Location.Lon, p.SubmitterEmail, p.SubmitterPhone, p.Status, p.Active,
		p.DeactivationReason, p.DeactivatedBy, p.ApprovedBy, p.PopularityScore,
		p.CreatedAt, p.UpdatedAt,
	}
}

var reviewColumnNames = []string{
	"id", "poi_id", "blog_id", "podcast_id", "author_id", "platform", "rating", "body",
	"likes", "dislikes", "created_at", "updated_at",
}

func reviewRow(id string, poiID, blogID, podcastID *string, rating int) []any {
	return []any{id, poiID, blogID, podcastID, "user-2", "web", rating, "nice", int64(3), int64(1), now, now}
}

// ─── Poi ────────────────────────────────────────────────────────────────────

func TestPoiRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	p := samplePoi()

	mock.ExpectExec("INSERT INTO pois").
		WithArgs(
			p.ID, p.OrganizationID, p.CreatedBy, p.Name, p.Description, p.Category, p.Address,
			p.Location.Lon, p.Location.Lat, p.SubmitterEmail, p.SubmitterPhone, p.Status, p.Active,
			p.DeactivationReason, p.DeactivatedBy, p.ApprovedBy, p.PopularityScore, p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_Create_UniqueViolation(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	p := samplePoi()

	mock.ExpectExec("INSERT INTO pois").
		WithArgs(anyArgs(19)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "pois_org_name_key"})

	err := repo.Create(context.Background(), &p)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	p := samplePoi()
	p.ApprovedBy = strPtr("mod-1")

	mock.ExpectQuery("SELECT .+ FROM pois WHERE id").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(poiColumnNames).AddRow(poiRow(p)...))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM pois WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_UpdateDetails_WritesOnlyPatch(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	p := samplePoi()
	p.Status = domain.StatusApproved
	p.Description = "Now with a terrace"

	desc := p.Description
	patch := domain.PoiPatch{Description: &desc}

	mock.ExpectQuery("UPDATE pois").
		WithArgs(
			(*string)(nil), &desc, (*string)(nil), (*string)(nil),
			(*float64)(nil), (*float64)(nil),
			(*string)(nil), (*string)(nil), now, p.ID,
		).
		WillReturnRows(pgxmock.NewRows(poiColumnNames).AddRow(poiRow(p)...))

	got, err := repo.UpdateDetails(context.Background(), p.ID, patch, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Equal(t, "Now with a terrace", got.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_UpdateDetails_Location(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	p := samplePoi()

	loc := domain.Location{Lat: 41.0, Lon: 29.0}
	mock.ExpectQuery("UPDATE pois").
		WithArgs(
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			&loc.Lon, &loc.Lat,
			(*string)(nil), (*string)(nil), now, p.ID,
		).
		WillReturnRows(pgxmock.NewRows(poiColumnNames).AddRow(poiRow(p)...))

	_, err := repo.UpdateDetails(context.Background(), p.ID, domain.PoiPatch{Location: &loc}, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_UpdateDetails_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectQuery("UPDATE pois").WithArgs(anyArgs(10)...).WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateDetails(context.Background(), "missing", domain.PoiPatch{Name: strPtr("x")}, now)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_UpdateDetails_DuplicateName(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectQuery("UPDATE pois").WithArgs(anyArgs(10)...).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.UpdateDetails(context.Background(), "poi-1", domain.PoiPatch{Name: strPtr("Taken")}, now)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_SetActive(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	p := samplePoi()
	p.Active = false
	p.DeactivationReason = strPtr("closed")
	p.DeactivatedBy = strPtr("mod-1")

	mock.ExpectQuery("UPDATE pois").
		WithArgs(false, p.DeactivationReason, p.DeactivatedBy, now, p.ID).
		WillReturnRows(pgxmock.NewRows(poiColumnNames).AddRow(poiRow(p)...))
	mock.ExpectQuery("UPDATE pois").
		WithArgs(true, (*string)(nil), (*string)(nil), now, "missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.SetActive(context.Background(), p.ID, false, p.DeactivationReason, p.DeactivatedBy, now)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = repo.SetActive(context.Background(), "missing", true, nil, nil, now)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_Transition(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	p := samplePoi()
	p.Status = domain.StatusApproved
	p.ApprovedBy = strPtr("mod-1")

	mock.ExpectQuery("UPDATE pois").
		WithArgs(domain.StatusApproved, p.ApprovedBy, now, p.ID, domain.StatusSubmitted).
		WillReturnRows(pgxmock.NewRows(poiColumnNames).AddRow(poiRow(p)...))

	got, err := repo.Transition(context.Background(), p.ID, domain.StatusSubmitted, domain.StatusApproved, p.ApprovedBy, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_Transition_StatusMoved(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectQuery("UPDATE pois").WithArgs(anyArgs(5)...).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM pois").
		WithArgs("poi-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.StatusApproved))

	_, err := repo.Transition(context.Background(), "poi-1", domain.StatusSubmitted, domain.StatusApproved, strPtr("mod-2"), now)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_Transition_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectQuery("UPDATE pois").WithArgs(anyArgs(5)...).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM pois").WithArgs(anyArgs(1)...).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Transition(context.Background(), "gone", domain.StatusSubmitted, domain.StatusApproved, nil, now)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_DeleteInStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectExec("DELETE FROM pois WHERE id").
		WithArgs("poi-1", domain.StatusSubmitted).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM pois WHERE id").
		WithArgs("poi-2", domain.StatusSubmitted).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT status FROM pois").
		WithArgs("poi-2").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.StatusApproved))

	require.NoError(t, repo.DeleteInStatus(context.Background(), "poi-1", domain.StatusSubmitted))
	assert.ErrorIs(t, repo.DeleteInStatus(context.Background(), "poi-2", domain.StatusSubmitted), apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectExec("DELETE FROM pois WHERE id").
		WithArgs("poi-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM pois WHERE id").
		WithArgs("poi-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "poi-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "poi-2"), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_ExistsByNameInOrg(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("org-1", "Old Mill").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(.+id <> \$3\)`).
		WithArgs("org-1", "Old Mill", "poi-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.ExistsByNameInOrg(context.Background(), "Old Mill", "org-1", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByNameInOrg(context.Background(), "Old Mill", "org-1", "poi-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_List_WithFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	p := samplePoi()
	status := domain.StatusApproved
	active := true

	mock.ExpectQuery("SELECT .+ FROM pois").
		WithArgs("org-1", status, true, 10, 20).
		WillReturnRows(pgxmock.NewRows(append(poiColumnNames, "total_count")).AddRow(append(poiRow(p), 31)...))

	pois, total, err := repo.List(context.Background(), domain.PoiFilter{
		OrganizationID: "org-1",
		Status:         &status,
		Active:         &active,
		Limit:          10,
		Offset:         20,
	})
	require.NoError(t, err)
	assert.Equal(t, 31, total)
	require.Len(t, pois, 1)
	assert.Equal(t, p.ID, pois[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_List_EmptyIsNonNil(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM pois").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(poiColumnNames, "total_count")))

	pois, total, err := repo.List(context.Background(), domain.PoiFilter{})
	require.NoError(t, err)
	assert.NotNil(t, pois)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_ListPopular(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	a, b := samplePoi(), samplePoi()
	b.ID = "00000000-0000-0000-0000-0000000000a2"
	a.PopularityScore, b.PopularityScore = 4.4, 3.1

	mock.ExpectQuery("SELECT .+ FROM pois\\s+WHERE status = \\$1 AND active").
		WithArgs(domain.StatusApproved, 5).
		WillReturnRows(pgxmock.NewRows(poiColumnNames).AddRow(poiRow(a)...).AddRow(poiRow(b)...))

	pois, err := repo.ListPopular(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, pois, 2)
	assert.Equal(t, 4.4, pois[0].PopularityScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_Stream_PagesByKeyset(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	first := pgxmock.NewRows(poiColumnNames)
	var lastID string
	for i := 0; i < streamBatchSize; i++ {
		p := samplePoi()
		p.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1)
		lastID = p.ID
		first.AddRow(poiRow(p)...)
	}
	tail := samplePoi()
	tail.ID = "00000000-0000-0000-0000-999999999999"

	mock.ExpectQuery("SELECT .+ FROM pois WHERE id > \\$1 ORDER BY id").
		WithArgs("00000000-0000-0000-0000-000000000000", streamBatchSize).
		WillReturnRows(first)
	mock.ExpectQuery("SELECT .+ FROM pois WHERE id > \\$1 ORDER BY id").
		WithArgs(lastID, streamBatchSize).
		WillReturnRows(pgxmock.NewRows(poiColumnNames).AddRow(poiRow(tail)...))

	var seen int
	err := repo.Stream(context.Background(), nil, func(*domain.Poi) error {
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, streamBatchSize+1, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_Stream_StopsOnCallbackError(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)
	a, b := samplePoi(), samplePoi()
	b.ID = "00000000-0000-0000-0000-0000000000a2"
	status := domain.StatusApproved

	mock.ExpectQuery("SELECT .+ FROM pois WHERE id > \\$1 AND status = \\$3").
		WithArgs("00000000-0000-0000-0000-000000000000", streamBatchSize, status).
		WillReturnRows(pgxmock.NewRows(poiColumnNames).AddRow(poiRow(a)...).AddRow(poiRow(b)...))

	stop := errors.New("stop")
	var seen int
	err := repo.Stream(context.Background(), &status, func(*domain.Poi) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoiRepository_UpdateScore(t *testing.T) {
	mock := newMock(t)
	repo := NewPoiRepository(mock)

	mock.ExpectExec("UPDATE pois SET popularity_score").
		WithArgs(3.24, now, "poi-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE pois SET popularity_score").
		WithArgs(3.0, now, "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateScore(context.Background(), "poi-1", 3.24, now))
	assert.ErrorIs(t, repo.UpdateScore(context.Background(), "gone", 3.0, now), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─── Review ─────────────────────────────────────────────────────────────────

func TestReviewRepository_Create_SetsOnlyTargetColumn(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	target, err := domain.NewTarget(domain.TargetBlog, "blog-1")
	require.NoError(t, err)
	rv := domain.Review{
		ID: "rev-1", Target: target, AuthorID: "user-2", Platform: "ios",
		Rating: 4, Body: "good read", CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs("rev-1", (*string)(nil), strPtr("blog-1"), (*string)(nil), "user-2", "ios", 4, "good read",
			int64(0), int64(0), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &rv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_RejectsZeroTarget(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	err := repo.Create(context.Background(), &domain.Review{ID: "rev-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows(reviewColumnNames).AddRow(reviewRow("rev-1", nil, nil, strPtr("pod-9"), 5)...))

	rv, err := repo.GetByID(context.Background(), "rev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TargetPodcast, rv.Target.Kind())
	assert.Equal(t, "pod-9", rv.Target.ID())
	assert.Equal(t, int64(3), rv.Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE id").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByTarget(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	poiID := strPtr("poi-1")

	mock.ExpectQuery("SELECT .+ FROM reviews WHERE poi_id = \\$1").
		WithArgs("poi-1").
		WillReturnRows(pgxmock.NewRows(reviewColumnNames).
			AddRow(reviewRow("rev-1", poiID, nil, nil, 5)...).
			AddRow(reviewRow("rev-2", poiID, nil, nil, 1)...))

	reviews, err := repo.ListByTarget(context.Background(), domain.PoiTarget("poi-1"))
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	id, ok := reviews[1].Target.PoiID()
	assert.True(t, ok)
	assert.Equal(t, "poi-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListByTargetPage(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews\\s+WHERE podcast_id = \\$1").
		WithArgs("pod-1", 10, 10).
		WillReturnRows(pgxmock.NewRows(append(reviewColumnNames, "total_count")).
			AddRow(append(reviewRow("rev-1", nil, nil, strPtr("pod-1"), 2), 11)...))

	target, err := domain.NewTarget(domain.TargetPodcast, "pod-1")
	require.NoError(t, err)

	reviews, total, err := repo.ListByTargetPage(context.Background(), target, 10, 10)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GlobalAverageRating(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	avg := 3.8

	mock.ExpectQuery("SELECT AVG\\(rating\\)").
		WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow(&avg))
	mock.ExpectQuery("SELECT AVG\\(rating\\)").
		WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow((*float64)(nil)))

	got, ok, err := repo.GlobalAverageRating(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3.8, got)

	_, ok, err = repo.GlobalAverageRating(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GlobalReviewCount(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	n, err := repo.GlobalReviewCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_IncrementReaction(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("UPDATE reviews SET dislikes = dislikes \\+ 1 WHERE id = \\$1 RETURNING").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows(reviewColumnNames).AddRow(reviewRow("rev-1", strPtr("poi-1"), nil, nil, 4)...))

	rv, err := repo.IncrementReaction(context.Background(), "rev-1", domain.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, "rev-1", rv.ID)

	_, err = repo.IncrementReaction(context.Background(), "rev-1", domain.Reaction("love"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_UpdateAndDelete(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := domain.Review{ID: "rev-1", Rating: 2, Body: "meh", UpdatedAt: now}

	mock.ExpectExec("UPDATE reviews SET rating").
		WithArgs(2, "meh", now, "rev-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM reviews WHERE id").
		WithArgs("rev-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Update(context.Background(), &rv))
	assert.ErrorIs(t, repo.Delete(context.Background(), "rev-1"), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
