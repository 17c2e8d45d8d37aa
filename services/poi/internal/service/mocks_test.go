package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// callLog records the order of collaborator calls across mocks.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// indexOf returns the position of the first call named name, or -1.
func (l *callLog) indexOf(name string) int {
	for i, c := range l.list() {
		if c == name {
			return i
		}
	}
	return -1
}

// --- Mock Poi Repository ---

type mockPoiRepository struct {
	mock.Mock
	log *callLog
}

func (m *mockPoiRepository) Create(ctx context.Context, p *domain.Poi) error {
	m.log.add("store.Create")
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPoiRepository) UpdateDetails(ctx context.Context, id string, patch domain.PoiPatch, at time.Time) (*domain.Poi, error) {
	m.log.add("store.UpdateDetails")
	args := m.Called(ctx, id, patch, at)
	return poiResult(args)
}

func (m *mockPoiRepository) SetActive(ctx context.Context, id string, active bool, reason, by *string, at time.Time) (*domain.Poi, error) {
	m.log.add("store.SetActive")
	args := m.Called(ctx, id, active, reason, by, at)
	return poiResult(args)
}

func (m *mockPoiRepository) Transition(ctx context.Context, id string, from, to domain.Status, by *string, at time.Time) (*domain.Poi, error) {
	m.log.add("store.Transition")
	args := m.Called(ctx, id, from, to, by, at)
	return poiResult(args)
}

func (m *mockPoiRepository) GetByID(ctx context.Context, id string) (*domain.Poi, error) {
	m.log.add("store.GetByID")
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so the service cannot mutate the fixture.
	p := *args.Get(0).(*domain.Poi)
	return &p, args.Error(1)
}

func (m *mockPoiRepository) Delete(ctx context.Context, id string) error {
	m.log.add("store.Delete")
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPoiRepository) DeleteInStatus(ctx context.Context, id string, status domain.Status) error {
	m.log.add("store.DeleteInStatus")
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockPoiRepository) ExistsByNameInOrg(ctx context.Context, name, orgID, excludeID string) (bool, error) {
	m.log.add("store.ExistsByNameInOrg")
	args := m.Called(ctx, name, orgID, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPoiRepository) List(ctx context.Context, filter domain.PoiFilter) ([]domain.Poi, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Poi), args.Int(1), args.Error(2)
}

func (m *mockPoiRepository) ListPopular(ctx context.Context, limit int) ([]domain.Poi, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Poi), args.Error(1)
}

func (m *mockPoiRepository) Stream(ctx context.Context, status *domain.Status, fn func(*domain.Poi) error) error {
	args := m.Called(ctx, status, fn)
	return args.Error(0)
}

func (m *mockPoiRepository) UpdateScore(ctx context.Context, id string, score float64, at time.Time) error {
	m.log.add("store.UpdateScore")
	args := m.Called(ctx, id, score, at)
	return args.Error(0)
}

// poiResult copies the returned Poi so the service cannot mutate the fixture.
func poiResult(args mock.Arguments) (*domain.Poi, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	p := *args.Get(0).(*domain.Poi)
	return &p, args.Error(1)
}

// --- Mock Review Repository ---

type mockReviewRepository struct {
	mock.Mock
	log *callLog
}

func (m *mockReviewRepository) Create(ctx context.Context, r *domain.Review) error {
	m.log.add("reviews.Create")
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockReviewRepository) Update(ctx context.Context, r *domain.Review) error {
	m.log.add("reviews.Update")
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	rv := *args.Get(0).(*domain.Review)
	return &rv, args.Error(1)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	m.log.add("reviews.Delete")
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReviewRepository) ListByTarget(ctx context.Context, target domain.Target) ([]domain.Review, error) {
	args := m.Called(ctx, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListByTargetPage(ctx context.Context, target domain.Target, limit, offset int) ([]domain.Review, int, error) {
	args := m.Called(ctx, target, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) GlobalAverageRating(ctx context.Context) (float64, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

func (m *mockReviewRepository) GlobalReviewCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepository) IncrementReaction(ctx context.Context, id string, reaction domain.Reaction) (*domain.Review, error) {
	m.log.add("reviews.IncrementReaction")
	args := m.Called(ctx, id, reaction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

// --- Mock Cache ---

type mockCache struct {
	mock.Mock
	log *callLog
}

func (m *mockCache) Get(ctx context.Context, id string) (*domain.Poi, error) {
	m.log.add("cache.Get")
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Poi), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, p *domain.Poi) error {
	m.log.add("cache.Set")
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, id string) error {
	m.log.add("cache.Invalidate")
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Recording sinks ---

type publishedEvent struct {
	eventType   string
	aggregateID string
	payload     any
}

type recordingEvents struct {
	mu     sync.Mutex
	events []publishedEvent
	log    *callLog
}

func (r *recordingEvents) Publish(_ context.Context, eventType, aggregateID string, payload any) {
	r.log.add("events.Publish")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{eventType: eventType, aggregateID: aggregateID, payload: payload})
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.eventType
	}
	return out
}

type recordingQueue struct {
	mu     sync.Mutex
	queued []domain.Notification
	full   bool
	log    *callLog
}

func (q *recordingQueue) Enqueue(n domain.Notification) bool {
	q.log.add("notify.Enqueue")
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.queued = append(q.queued, n)
	return true
}

func (q *recordingQueue) list() []domain.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Notification(nil), q.queued...)
}

type mockScores struct {
	mock.Mock
	log *callLog
}

func (m *mockScores) Recompute(ctx context.Context, poiID, trigger string) (float64, error) {
	m.log.add("scores.Recompute")
	args := m.Called(ctx, poiID, trigger)
	return args.Get(0).(float64), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }
