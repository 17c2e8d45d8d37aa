package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/services/poi/internal/cache"
	cacheredis "github.com/utafrali/PoiCatalog/services/poi/internal/cache/redis"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// memPoiStore keeps POIs in a map with the same per-column write semantics
// as the postgres repository. Every method works on copies.
type memPoiStore struct {
	mu   sync.Mutex
	rows map[string]domain.Poi

	// afterGet, when set, runs once right after the next GetByID returns
	// its copy, outside the lock.
	afterGet func(id string)
}

func newMemPoiStore() *memPoiStore {
	return &memPoiStore{rows: make(map[string]domain.Poi)}
}

func (s *memPoiStore) Create(_ context.Context, p *domain.Poi) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[p.ID]; ok {
		return apperrors.Conflict("poi " + p.ID + " exists")
	}
	s.rows[p.ID] = *p
	return nil
}

func (s *memPoiStore) write(id string, fn func(*domain.Poi) error) (*domain.Poi, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, apperrors.NotFound("poi", id)
	}
	if err := fn(&row); err != nil {
		return nil, err
	}
	s.rows[id] = row
	return &row, nil
}

func (s *memPoiStore) UpdateDetails(_ context.Context, id string, patch domain.PoiPatch, at time.Time) (*domain.Poi, error) {
	return s.write(id, func(p *domain.Poi) error {
		patch.Apply(p)
		p.UpdatedAt = at
		return nil
	})
}

func (s *memPoiStore) SetActive(_ context.Context, id string, active bool, reason, by *string, at time.Time) (*domain.Poi, error) {
	return s.write(id, func(p *domain.Poi) error {
		p.Active = active
		p.DeactivationReason = reason
		p.DeactivatedBy = by
		p.UpdatedAt = at
		return nil
	})
}

func (s *memPoiStore) Transition(_ context.Context, id string, from, to domain.Status, by *string, at time.Time) (*domain.Poi, error) {
	return s.write(id, func(p *domain.Poi) error {
		if p.Status != from {
			return apperrors.Conflict(fmt.Sprintf("poi %s is %s, expected %s", id, p.Status, from))
		}
		p.Status = to
		if by != nil {
			p.ApprovedBy = by
		}
		p.UpdatedAt = at
		return nil
	})
}

func (s *memPoiStore) GetByID(_ context.Context, id string) (*domain.Poi, error) {
	s.mu.Lock()
	row, ok := s.rows[id]
	hook := s.afterGet
	s.afterGet = nil
	s.mu.Unlock()

	if !ok {
		return nil, apperrors.NotFound("poi", id)
	}
	if hook != nil {
		hook(id)
	}
	return &row, nil
}

func (s *memPoiStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return apperrors.NotFound("poi", id)
	}
	delete(s.rows, id)
	return nil
}

func (s *memPoiStore) DeleteInStatus(_ context.Context, id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return apperrors.NotFound("poi", id)
	}
	if row.Status != status {
		return apperrors.Conflict(fmt.Sprintf("poi %s is %s, expected %s", id, row.Status, status))
	}
	delete(s.rows, id)
	return nil
}

func (s *memPoiStore) ExistsByNameInOrg(_ context.Context, name, orgID, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.rows {
		if id != excludeID && p.OrganizationID == orgID && p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *memPoiStore) sorted() []domain.Poi {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Poi, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memPoiStore) List(_ context.Context, filter domain.PoiFilter) ([]domain.Poi, int, error) {
	var out []domain.Poi
	for _, p := range s.sorted() {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		if filter.OrganizationID != "" && p.OrganizationID != filter.OrganizationID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (s *memPoiStore) ListPopular(_ context.Context, limit int) ([]domain.Poi, error) {
	var out []domain.Poi
	for _, p := range s.sorted() {
		if p.Visible() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PopularityScore > out[j].PopularityScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memPoiStore) Stream(_ context.Context, status *domain.Status, fn func(*domain.Poi) error) error {
	for _, p := range s.sorted() {
		if status != nil && p.Status != *status {
			continue
		}
		if err := fn(&p); err != nil {
			return err
		}
	}
	return nil
}

func (s *memPoiStore) UpdateScore(_ context.Context, id string, score float64, at time.Time) error {
	_, err := s.write(id, func(p *domain.Poi) error {
		p.PopularityScore = score
		p.UpdatedAt = at
		return nil
	})
	return err
}

// newRedisViews returns a Poi view cache on an in-process redis server.
func newRedisViews(t *testing.T) (*cache.PoiViews, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewPoiViews(cacheredis.New(client), time.Minute, time.Second), mr
}

// storeEnv is a PoiService over the in-memory store and a real view cache.
type storeEnv struct {
	store  *memPoiStore
	views  *cache.PoiViews
	mr     *miniredis.Miniredis
	events *recordingEvents
	queue  *recordingQueue
	svc    *PoiService
}

func newStoreEnv(t *testing.T) *storeEnv {
	t.Helper()
	e := &storeEnv{
		store:  newMemPoiStore(),
		events: &recordingEvents{},
		queue:  &recordingQueue{},
	}
	e.views, e.mr = newRedisViews(t)
	e.svc = NewPoiService(e.store, e.views, e.events, e.queue, newTestLogger())
	e.svc.now = fixedClock
	e.svc.newID = func() string { return "poi-new" }
	return e
}
