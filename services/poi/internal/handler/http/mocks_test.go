package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
	"github.com/utafrali/PoiCatalog/services/poi/internal/scheduler"
	"github.com/utafrali/PoiCatalog/services/poi/internal/service"
)

type mockPoiService struct {
	mock.Mock
}

func (m *mockPoiService) Create(ctx context.Context, input domain.CreatePoiInput) (*domain.Poi, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Poi), args.Error(1)
}

func (m *mockPoiService) Get(ctx context.Context, id string) (*domain.Poi, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Poi), args.Error(1)
}

func (m *mockPoiService) List(ctx context.Context, filter domain.PoiFilter) ([]domain.Poi, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Poi), args.Int(1), args.Error(2)
}

func (m *mockPoiService) ListPopular(ctx context.Context, limit int) ([]domain.Poi, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Poi), args.Error(1)
}

func (m *mockPoiService) Update(ctx context.Context, id string, patch domain.PoiPatch, actor service.Actor) (*domain.Poi, error) {
	args := m.Called(ctx, id, patch, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Poi), args.Error(1)
}

func (m *mockPoiService) Activate(ctx context.Context, id string, actor service.Actor) (*domain.Poi, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Poi), args.Error(1)
}

func (m *mockPoiService) Deactivate(ctx context.Context, id, reason string, actor service.Actor) (*domain.Poi, error) {
	args := m.Called(ctx, id, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Poi), args.Error(1)
}

func (m *mockPoiService) Approve(ctx context.Context, id string, actor service.Actor) (*domain.Poi, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Poi), args.Error(1)
}

func (m *mockPoiService) Reject(ctx context.Context, id string, actor service.Actor) error {
	args := m.Called(ctx, id, actor)
	return args.Error(0)
}

func (m *mockPoiService) Delete(ctx context.Context, id string, actor service.Actor) error {
	args := m.Called(ctx, id, actor)
	return args.Error(0)
}

type mockReviewService struct {
	mock.Mock
}

func (m *mockReviewService) Create(ctx context.Context, input domain.CreateReviewInput) (*domain.Review, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewService) Get(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewService) List(ctx context.Context, target domain.Target, limit, offset int) ([]domain.Review, int, error) {
	args := m.Called(ctx, target, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewService) Update(ctx context.Context, id string, patch domain.ReviewPatch, actor service.Actor) (*domain.Review, error) {
	args := m.Called(ctx, id, patch, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewService) Delete(ctx context.Context, id string, actor service.Actor) error {
	args := m.Called(ctx, id, actor)
	return args.Error(0)
}

func (m *mockReviewService) React(ctx context.Context, id string, reaction domain.Reaction) (*domain.Review, error) {
	args := m.Called(ctx, id, reaction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

type mockBatch struct {
	mock.Mock
}

func (m *mockBatch) RunOnce(ctx context.Context, trigger string) (scheduler.Report, error) {
	args := m.Called(ctx, trigger)
	return args.Get(0).(scheduler.Report), args.Error(1)
}
