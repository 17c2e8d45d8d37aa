package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/PoiCatalog/pkg/database"
	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// streamBatchSize is the keyset page size used by Stream.
const streamBatchSize = 500

const poiColumns = `id, organization_id, created_by, name, description, category, address,
		ST_Y(location::geometry) AS lat, ST_X(location::geometry) AS lon,
		submitter_email, submitter_phone, status, active,
		deactivation_reason, deactivated_by, approved_by, popularity_score,
		created_at, updated_at`

// PoiRepository implements repository.PoiRepository using PostgreSQL with
// PostGIS for the location column.
type PoiRepository struct {
	pool database.DBTX
}

// NewPoiRepository creates a new PostgreSQL-backed Poi repository.
func NewPoiRepository(pool database.DBTX) *PoiRepository {
	return &PoiRepository{pool: pool}
}

// Create inserts a new Poi.
func (r *PoiRepository) Create(ctx context.Context, p *domain.Poi) (err error) {
	query := `
		INSERT INTO pois (id, organization_id, created_by, name, description, category, address,
		                  location, submitter_email, submitter_phone, status, active,
		                  deactivation_reason, deactivated_by, approved_by, popularity_score,
		                  created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
		        ST_SetSRID(ST_MakePoint($8, $9), 4326)::geography, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19)`

	ctx, end := database.TraceQuery(ctx, "CreatePoi", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.OrganizationID,
		p.CreatedBy,
		p.Name,
		p.Description,
		p.Category,
		p.Address,
		p.Location.Lon,
		p.Location.Lat,
		p.SubmitterEmail,
		p.SubmitterPhone,
		p.Status,
		p.Active,
		p.DeactivationReason,
		p.DeactivatedBy,
		p.ApprovedBy,
		p.PopularityScore,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateName("poi", p.Name, "organization "+p.OrganizationID)
		}
		return fmt.Errorf("insert poi: %w", err)
	}

	return nil
}

// UpdateDetails writes the non-nil fields of patch and updated_at in one
// statement. Status, activation and score columns are never touched, so a
// concurrent moderation or activation change survives the patch.
func (r *PoiRepository) UpdateDetails(ctx context.Context, id string, patch domain.PoiPatch, at time.Time) (p *domain.Poi, err error) {
	query := `
		UPDATE pois
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    category = COALESCE($3, category),
		    address = COALESCE($4, address),
		    location = CASE WHEN $5::float8 IS NULL THEN location
		                    ELSE ST_SetSRID(ST_MakePoint($5::float8, $6::float8), 4326)::geography END,
		    submitter_email = COALESCE($7, submitter_email),
		    submitter_phone = COALESCE($8, submitter_phone),
		    updated_at = $9
		WHERE id = $10
		RETURNING ` + poiColumns

	ctx, end := database.TraceQuery(ctx, "UpdatePoiDetails", query)
	defer func() { end(err) }()

	var lon, lat *float64
	if patch.Location != nil {
		lon, lat = &patch.Location.Lon, &patch.Location.Lat
	}

	p, err = scanPoi(r.pool.QueryRow(ctx, query,
		patch.Name,
		patch.Description,
		patch.Category,
		patch.Address,
		lon,
		lat,
		patch.SubmitterEmail,
		patch.SubmitterPhone,
		at,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("poi", id)
		}
		if isUniqueViolation(err) {
			name := ""
			if patch.Name != nil {
				name = *patch.Name
			}
			return nil, apperrors.DuplicateName("poi", name, "its organization")
		}
		return nil, fmt.Errorf("update poi details: %w", err)
	}

	return p, nil
}

// SetActive writes the active flag and the deactivation details.
func (r *PoiRepository) SetActive(ctx context.Context, id string, active bool, reason, by *string, at time.Time) (p *domain.Poi, err error) {
	query := `
		UPDATE pois
		SET active = $1, deactivation_reason = $2, deactivated_by = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + poiColumns

	ctx, end := database.TraceQuery(ctx, "SetPoiActive", query)
	defer func() { end(err) }()

	p, err = scanPoi(r.pool.QueryRow(ctx, query, active, reason, by, at, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("poi", id)
		}
		return nil, fmt.Errorf("set poi active: %w", err)
	}

	return p, nil
}

// Transition moves a Poi from one moderation status to another. The write
// only applies while the stored status is still from; otherwise the result
// is Conflict, or NotFound when the Poi is gone. by, when set, is recorded
// as the approver.
func (r *PoiRepository) Transition(ctx context.Context, id string, from, to domain.Status, by *string, at time.Time) (p *domain.Poi, err error) {
	query := `
		UPDATE pois
		SET status = $1, approved_by = COALESCE($2, approved_by), updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + poiColumns

	ctx, end := database.TraceQuery(ctx, "TransitionPoi", query)
	defer func() { end(err) }()

	p, err = scanPoi(r.pool.QueryRow(ctx, query, to, by, at, id, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.notInStatus(ctx, id, from)
		}
		return nil, fmt.Errorf("transition poi: %w", err)
	}

	return p, nil
}

// GetByID retrieves a Poi by its ID.
func (r *PoiRepository) GetByID(ctx context.Context, id string) (p *domain.Poi, err error) {
	query := `SELECT ` + poiColumns + ` FROM pois WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetPoi", query)
	defer func() { end(err) }()

	p, err = scanPoi(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("poi", id)
		}
		return nil, fmt.Errorf("get poi: %w", err)
	}

	return p, nil
}

// Delete removes a Poi. Its reviews go with it through ON DELETE CASCADE.
func (r *PoiRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM pois WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeletePoi", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete poi: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("poi", id)
	}

	return nil
}

// DeleteInStatus removes a Poi only while it is still in status.
func (r *PoiRepository) DeleteInStatus(ctx context.Context, id string, status domain.Status) (err error) {
	query := `DELETE FROM pois WHERE id = $1 AND status = $2`

	ctx, end := database.TraceQuery(ctx, "DeletePoiInStatus", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("delete poi: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return r.notInStatus(ctx, id, status)
	}

	return nil
}

// notInStatus explains a guarded write that matched no row.
func (r *PoiRepository) notInStatus(ctx context.Context, id string, want domain.Status) error {
	var current domain.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM pois WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("poi", id)
		}
		return fmt.Errorf("read poi status: %w", err)
	}
	return apperrors.Conflict(fmt.Sprintf("poi %s is %s, expected %s", id, current, want))
}

// ExistsByNameInOrg checks name uniqueness within an organization. The
// comparison is exact: case and whitespace matter.
func (r *PoiRepository) ExistsByNameInOrg(ctx context.Context, name, orgID, excludeID string) (exists bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM pois WHERE organization_id = $1 AND name = $2)`
	args := []any{orgID, name}
	if excludeID != "" {
		query = `SELECT EXISTS(SELECT 1 FROM pois WHERE organization_id = $1 AND name = $2 AND id <> $3)`
		args = append(args, excludeID)
	}

	ctx, end := database.TraceQuery(ctx, "PoiNameExists", query)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check poi name: %w", err)
	}

	return exists, nil
}

// List returns POIs matching filter, newest first, with the total count.
func (r *PoiRepository) List(ctx context.Context, filter domain.PoiFilter) (pois []domain.Poi, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("organization_id = $%d", argIndex))
		args = append(args, filter.OrganizationID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argIndex))
		args = append(args, *filter.Active)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM pois
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		poiColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListPois", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pois: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPoi(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan poi row: %w", err)
		}
		pois = append(pois, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate poi rows: %w", err)
	}

	if pois == nil {
		pois = []domain.Poi{}
	}

	return pois, total, nil
}

// ListPopular returns visible POIs ordered by descending popularity score.
func (r *PoiRepository) ListPopular(ctx context.Context, limit int) (pois []domain.Poi, err error) {
	query := `SELECT ` + poiColumns + `
		FROM pois
		WHERE status = $1 AND active = TRUE
		ORDER BY popularity_score DESC, id
		LIMIT $2`

	if limit <= 0 {
		limit = 20
	}

	ctx, end := database.TraceQuery(ctx, "ListPopularPois", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, domain.StatusApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("list popular pois: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPoi(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poi row: %w", err)
		}
		pois = append(pois, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poi rows: %w", err)
	}

	if pois == nil {
		pois = []domain.Poi{}
	}

	return pois, nil
}

// Stream walks every Poi in id order using keyset pagination, so the table
// is never held in memory at once and rows inserted mid-walk with a higher
// id are still visited.
func (r *PoiRepository) Stream(ctx context.Context, status *domain.Status, fn func(*domain.Poi) error) error {
	cursor := uuid.Nil.String()
	for {
		batch, err := r.streamBatch(ctx, status, cursor)
		if err != nil {
			return err
		}
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		if len(batch) < streamBatchSize {
			return nil
		}
		cursor = batch[len(batch)-1].ID
	}
}

func (r *PoiRepository) streamBatch(ctx context.Context, status *domain.Status, after string) (pois []domain.Poi, err error) {
	query := `SELECT ` + poiColumns + ` FROM pois WHERE id > $1 ORDER BY id LIMIT $2`
	args := []any{after, streamBatchSize}
	if status != nil {
		query = `SELECT ` + poiColumns + ` FROM pois WHERE id > $1 AND status = $3 ORDER BY id LIMIT $2`
		args = append(args, *status)
	}

	ctx, end := database.TraceQuery(ctx, "StreamPois", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stream pois: %w", err)
	}
	defer rows.Close()

	pois = make([]domain.Poi, 0, streamBatchSize)
	for rows.Next() {
		p, err := scanPoi(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poi row: %w", err)
		}
		pois = append(pois, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poi rows: %w", err)
	}

	return pois, nil
}

// UpdateScore writes the popularity score and bumps updated_at.
func (r *PoiRepository) UpdateScore(ctx context.Context, id string, score float64, at time.Time) (err error) {
	query := `UPDATE pois SET popularity_score = $1, updated_at = $2 WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "UpdatePoiScore", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, score, at, id)
	if err != nil {
		return fmt.Errorf("update poi score: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("poi", id)
	}

	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPoi reads one row selected with poiColumns. extra receives any
// trailing columns, such as a window count.
func scanPoi(row rowScanner, extra ...any) (*domain.Poi, error) {
	var p domain.Poi
	dest := []any{
		&p.ID,
		&p.OrganizationID,
		&p.CreatedBy,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Address,
		&p.Location.Lat,
		&p.Location.Lon,
		&p.SubmitterEmail,
		&p.SubmitterPhone,
		&p.Status,
		&p.Active,
		&p.DeactivationReason,
		&p.DeactivatedBy,
		&p.ApprovedBy,
		&p.PopularityScore,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// isUniqueViolation reports a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
