package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/pkg/httputil"
	"github.com/utafrali/PoiCatalog/pkg/middleware"
	"github.com/utafrali/PoiCatalog/pkg/pagination"
	"github.com/utafrali/PoiCatalog/pkg/validator"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
	"github.com/utafrali/PoiCatalog/services/poi/internal/service"
)

const (
	defaultPopularLimit = 10
	maxPopularLimit     = 100
)

// PoiService is the Poi lifecycle as seen by the HTTP layer.
// *service.PoiService satisfies it.
type PoiService interface {
	Create(ctx context.Context, input domain.CreatePoiInput) (*domain.Poi, error)
	Get(ctx context.Context, id string) (*domain.Poi, error)
	List(ctx context.Context, filter domain.PoiFilter) ([]domain.Poi, int, error)
	ListPopular(ctx context.Context, limit int) ([]domain.Poi, error)
	Update(ctx context.Context, id string, patch domain.PoiPatch, actor service.Actor) (*domain.Poi, error)
	Activate(ctx context.Context, id string, actor service.Actor) (*domain.Poi, error)
	Deactivate(ctx context.Context, id, reason string, actor service.Actor) (*domain.Poi, error)
	Approve(ctx context.Context, id string, actor service.Actor) (*domain.Poi, error)
	Reject(ctx context.Context, id string, actor service.Actor) error
	Delete(ctx context.Context, id string, actor service.Actor) error
}

// PoiHandler handles HTTP requests for Poi endpoints.
type PoiHandler struct {
	service PoiService
	logger  *slog.Logger
}

// NewPoiHandler creates a new Poi HTTP handler.
func NewPoiHandler(svc PoiService, logger *slog.Logger) *PoiHandler {
	return &PoiHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreatePoiRequest is the JSON body for submitting a Poi. The submitter is
// the authenticated user; the organization defaults to the token's.
type CreatePoiRequest struct {
	OrganizationID string          `json:"organization_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Address        string          `json:"address"`
	Location       domain.Location `json:"location"`
	SubmitterEmail string          `json:"submitter_email"`
	SubmitterPhone string          `json:"submitter_phone"`
}

// DeactivateRequest is the JSON body for deactivating a Poi.
type DeactivateRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

// --- Handlers ---

// CreatePoi handles POST /api/v1/pois
func (h *PoiHandler) CreatePoi(w http.ResponseWriter, r *http.Request) {
	var req CreatePoiRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}
	input := domain.CreatePoiInput{
		OrganizationID: req.OrganizationID,
		CreatedBy:      claims.UserID,
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Address:        req.Address,
		Location:       req.Location,
		SubmitterEmail: req.SubmitterEmail,
		SubmitterPhone: req.SubmitterPhone,
	}
	if input.OrganizationID == "" {
		input.OrganizationID = claims.OrganizationID
	}
	if _, err := uuid.Parse(input.OrganizationID); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("organization_id must be a UUID"), h.logger)
		return
	}
	if input.SubmitterEmail == "" {
		input.SubmitterEmail = claims.Email
	}

	p, err := h.service.Create(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, p)
}

// GetPoi handles GET /api/v1/pois/{id}
func (h *PoiHandler) GetPoi(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	actor := actorFrom(r)
	if !canSee(actor, p) {
		httputil.WriteError(w, r, apperrors.NotFound("poi", id), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view(actor, *p))
}

// ListPois handles GET /api/v1/pois?status=&organization_id=&active=&page=&per_page=
// The status and active filters apply to moderators only; everyone else
// gets approved, active POIs.
func (h *PoiHandler) ListPois(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := domain.PoiFilter{
		Limit:  params.PerPage,
		Offset: params.Offset(),
	}

	if v := r.URL.Query().Get("organization_id"); v != "" {
		if _, err := uuid.Parse(v); err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("organization_id must be a UUID"), h.logger)
			return
		}
		filter.OrganizationID = v
	}

	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.Status(v)
		if !status.Valid() {
			httputil.WriteError(w, r, apperrors.InvalidInput("status must be one of submitted, approved, rejected"), h.logger)
			return
		}
		filter.Status = &status
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("active must be true or false"), h.logger)
			return
		}
		filter.Active = &active
	}

	// Only moderators see the moderation queue and hidden POIs.
	actor := actorFrom(r)
	if !actor.Moderator {
		approved, active := domain.StatusApproved, true
		filter.Status, filter.Active = &approved, &active
	}

	pois, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(views(actor, pois), total, params))
}

// ListPopular handles GET /api/v1/pois/popular?limit=
func (h *PoiHandler) ListPopular(w http.ResponseWriter, r *http.Request) {
	limit := defaultPopularLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPopularLimit {
			httputil.WriteError(w, r, apperrors.InvalidInput("limit must be between 1 and 100"), h.logger)
			return
		}
		limit = n
	}

	pois, err := h.service.ListPopular(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, views(actorFrom(r), pois))
}

// UpdatePoi handles PATCH /api/v1/pois/{id}
func (h *PoiHandler) UpdatePoi(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var patch domain.PoiPatch
	if !decode(w, r, &patch, h.logger) {
		return
	}

	actor := actorFrom(r)
	p, err := h.service.Update(r.Context(), id, patch, actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view(actor, *p))
}

// DeletePoi handles DELETE /api/v1/pois/{id}
func (h *PoiHandler) DeletePoi(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivatePoi handles POST /api/v1/pois/{id}/activate
func (h *PoiHandler) ActivatePoi(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.Activate(r.Context(), id, actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// DeactivatePoi handles POST /api/v1/pois/{id}/deactivate
func (h *PoiHandler) DeactivatePoi(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req DeactivateRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	p, err := h.service.Deactivate(r.Context(), id, req.Reason, actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// ApprovePoi handles POST /api/v1/pois/{id}/approve
func (h *PoiHandler) ApprovePoi(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.Approve(r.Context(), id, actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// RejectPoi handles POST /api/v1/pois/{id}/reject. A rejected Poi is
// deleted, so there is no body to return.
func (h *PoiHandler) RejectPoi(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Reject(r.Context(), id, actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// canSee reports whether actor may read p at all. Moderators and the
// submitter see every state; everyone else only visible POIs.
func canSee(actor service.Actor, p *domain.Poi) bool {
	return p.Visible() || actor.Moderator || owns(actor, p)
}

// view returns the part of p that actor may see. Contact details are for
// moderators and the submitter only.
func view(actor service.Actor, p domain.Poi) domain.Poi {
	if actor.Moderator || owns(actor, &p) {
		return p
	}
	return p.Redacted()
}

func views(actor service.Actor, pois []domain.Poi) []domain.Poi {
	out := make([]domain.Poi, len(pois))
	for i := range pois {
		out[i] = view(actor, pois[i])
	}
	return out
}

func owns(actor service.Actor, p *domain.Poi) bool {
	return actor.ID != "" && actor.ID == p.CreatedBy
}

// decode reads and validates a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}
	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		err = apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	httputil.WriteError(w, r, err, logger)
	return false
}

// pathID reads a UUID path parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, ok := httputil.ParseUUID(w, name, chi.URLParam(r, name))
	if !ok {
		return "", false
	}
	return id.String(), true
}
