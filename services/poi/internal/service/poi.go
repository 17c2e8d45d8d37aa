package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/pkg/logger"
	"github.com/utafrali/PoiCatalog/pkg/validator"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
	"github.com/utafrali/PoiCatalog/services/poi/internal/repository"
)

// PoiService runs the Poi lifecycle. Every mutation of an existing Poi
// invalidates its cache entry before touching the store.
type PoiService struct {
	repo     repository.PoiRepository
	cache    ViewCache
	events   EventSink
	notifier NotificationQueue
	logger   *slog.Logger

	now   Clock
	newID IDGenerator
}

// NewPoiService creates a new Poi service.
func NewPoiService(
	repo repository.PoiRepository,
	cache ViewCache,
	events EventSink,
	notifier NotificationQueue,
	logger *slog.Logger,
) *PoiService {
	return &PoiService{
		repo:     repo,
		cache:    cache,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      systemClock,
		newID:    newUUID,
	}
}

// Create submits a new Poi. It starts submitted, inactive and unscored.
func (s *PoiService) Create(ctx context.Context, input domain.CreatePoiInput) (*domain.Poi, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByNameInOrg(ctx, input.Name, input.OrganizationID, "")
	if err != nil {
		return nil, storeErr("check poi name", err)
	}
	if exists {
		return nil, apperrors.DuplicateName("poi", input.Name, "organization "+input.OrganizationID)
	}

	now := s.now()
	p := &domain.Poi{
		ID:              s.newID(),
		OrganizationID:  input.OrganizationID,
		CreatedBy:       input.CreatedBy,
		Name:            input.Name,
		Description:     input.Description,
		Category:        input.Category,
		Address:         input.Address,
		Location:        input.Location,
		SubmitterEmail:  input.SubmitterEmail,
		SubmitterPhone:  input.SubmitterPhone,
		Status:          domain.StatusSubmitted,
		Active:          false,
		PopularityScore: 0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, storeErr("create poi", err)
	}

	s.notify(ctx, domain.NotifyPoiCreated, p, p.Submitter())
	s.events.Publish(ctx, domain.EventPoiCreated, p.ID, domain.NewPoiEvent(p, input.CreatedBy))

	s.log(ctx).InfoContext(ctx, "poi submitted",
		slog.String("poi_id", p.ID),
		slog.String("organization_id", p.OrganizationID),
	)

	return p, nil
}

// Get reads a Poi through the cache. Cache failures are treated as misses
// and a failed cache fill is logged and ignored.
func (s *PoiService) Get(ctx context.Context, id string) (*domain.Poi, error) {
	cached, err := s.cache.Get(ctx, id)
	if err == nil && cached != nil {
		return cached, nil
	}
	if err != nil && apperrors.IsTransient(err) {
		s.cacheFailed(ctx, "get", id, err)
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get poi", err)
	}

	if err := s.cache.Set(ctx, p); err != nil {
		s.cacheFailed(ctx, "set", id, err)
	}

	return p, nil
}

// List returns a page of POIs straight from the store.
func (s *PoiService) List(ctx context.Context, filter domain.PoiFilter) ([]domain.Poi, int, error) {
	pois, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, storeErr("list pois", err)
	}
	return pois, total, nil
}

// ListPopular returns visible POIs by descending score. There is no
// per-user signal; every caller gets the same ranking.
func (s *PoiService) ListPopular(ctx context.Context, limit int) ([]domain.Poi, error) {
	pois, err := s.repo.ListPopular(ctx, limit)
	if err != nil {
		return nil, storeErr("list popular pois", err)
	}
	return pois, nil
}

// Update applies patch. The name uniqueness check only runs when the name
// actually changes. Only the patched columns are written, so a moderation or
// activation change landing between the read and the write is kept.
func (s *PoiService) Update(ctx context.Context, id string, patch domain.PoiPatch, actor Actor) (*domain.Poi, error) {
	if err := validator.Validate(patch); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Apply(p) {
		exists, err := s.repo.ExistsByNameInOrg(ctx, p.Name, p.OrganizationID, p.ID)
		if err != nil {
			return nil, storeErr("check poi name", err)
		}
		if exists {
			return nil, apperrors.DuplicateName("poi", p.Name, "organization "+p.OrganizationID)
		}
	}

	p, err = s.repo.UpdateDetails(ctx, id, patch, s.now())
	if err != nil {
		return nil, storeErr("update poi", err)
	}

	s.events.Publish(ctx, domain.EventPoiUpdated, p.ID, domain.NewPoiEvent(p, actor.ID))
	return p, nil
}

// Activate makes a Poi active and clears any deactivation details. Status
// is left alone; only approved POIs are publicly visible either way.
func (s *PoiService) Activate(ctx context.Context, id string, actor Actor) (*domain.Poi, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	p, err := s.repo.SetActive(ctx, id, true, nil, nil, s.now())
	if err != nil {
		return nil, storeErr("activate poi", err)
	}

	s.events.Publish(ctx, domain.EventPoiActivated, p.ID, domain.NewPoiEvent(p, actor.ID))
	return p, nil
}

// Deactivate hides a Poi and records why and by whom.
func (s *PoiService) Deactivate(ctx context.Context, id, reason string, actor Actor) (*domain.Poi, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	by := actor.ID
	p, err := s.repo.SetActive(ctx, id, false, &reason, &by, s.now())
	if err != nil {
		return nil, storeErr("deactivate poi", err)
	}

	s.events.Publish(ctx, domain.EventPoiDeactivated, p.ID, domain.NewPoiEvent(p, actor.ID))
	return p, nil
}

// Approve moves a submitted Poi to approved. The store write is guarded on
// the submitted status, so a racing approve or reject ends in Conflict.
func (s *PoiService) Approve(ctx context.Context, id string, actor Actor) (*domain.Poi, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusSubmitted {
		return nil, apperrors.Conflict(fmt.Sprintf("poi %s is %s, only submitted POIs can be approved", id, p.Status))
	}

	by := actor.ID
	p, err = s.repo.Transition(ctx, id, domain.StatusSubmitted, domain.StatusApproved, &by, s.now())
	if err != nil {
		return nil, storeErr("approve poi", err)
	}

	s.notify(ctx, domain.NotifyPoiApproved, p, p.Submitter())
	s.events.Publish(ctx, domain.EventPoiApproved, p.ID, domain.NewPoiEvent(p, actor.ID))

	s.log(ctx).InfoContext(ctx, "poi approved", slog.String("poi_id", p.ID))
	return p, nil
}

// Reject deletes a submitted Poi and tells the submitter. The record is not
// kept; the notification and the poi.rejected event carry the last state.
// The notification is queued before the delete, so a failed delete can leave
// a rejection notice for a Poi that is still submitted.
func (s *PoiService) Reject(ctx context.Context, id string, actor Actor) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != domain.StatusSubmitted {
		return apperrors.Conflict(fmt.Sprintf("poi %s is %s, only submitted POIs can be rejected", id, p.Status))
	}

	rejected := *p
	rejected.Status = domain.StatusRejected
	s.notify(ctx, domain.NotifyPoiRejected, &rejected, p.Submitter())

	if err := s.repo.DeleteInStatus(ctx, p.ID, domain.StatusSubmitted); err != nil {
		return storeErr("reject poi", err)
	}

	s.events.Publish(ctx, domain.EventPoiRejected, p.ID, domain.NewPoiEvent(&rejected, actor.ID))

	s.log(ctx).InfoContext(ctx, "poi rejected and deleted", slog.String("poi_id", p.ID))
	return nil
}

// Delete removes a Poi. The poi.deleted event carries its last state.
func (s *PoiService) Delete(ctx context.Context, id string, actor Actor) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return storeErr("delete poi", err)
	}

	s.events.Publish(ctx, domain.EventPoiDeleted, p.ID, domain.NewPoiEvent(p, actor.ID))

	s.log(ctx).InfoContext(ctx, "poi deleted", slog.String("poi_id", p.ID))
	return nil
}

// load invalidates the cache entry for id and then reads the Poi from the
// store. Every mutation of an existing Poi starts here.
func (s *PoiService) load(ctx context.Context, id string) (*domain.Poi, error) {
	s.invalidate(ctx, id)

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("load poi", err)
	}
	return p, nil
}

func (s *PoiService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.cacheFailed(ctx, "invalidate", id, err)
	}
}

func (s *PoiService) cacheFailed(ctx context.Context, op, id string, err error) {
	cacheFailures.WithLabelValues(op).Inc()
	s.log(ctx).WarnContext(ctx, "poi cache "+op+" failed",
		slog.String("poi_id", id),
		slog.String("error", err.Error()),
	)
}

func (s *PoiService) notify(ctx context.Context, kind domain.NotificationKind, p *domain.Poi, to domain.Recipient) {
	n := domain.Notification{
		Kind:      kind,
		PoiID:     p.ID,
		Recipient: to,
		Data: map[string]string{
			"name":   p.Name,
			"status": string(p.Status),
		},
	}
	if !s.notifier.Enqueue(n) {
		s.log(ctx).WarnContext(ctx, "notification not queued",
			slog.String("kind", string(kind)),
			slog.String("poi_id", p.ID),
		)
	}
}

func (s *PoiService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}

// isNotFound reports whether err is a NotFound failure.
func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
