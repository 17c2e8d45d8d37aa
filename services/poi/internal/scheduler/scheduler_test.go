package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

type fakeSource struct {
	ids []string
	err error
}

func (f *fakeSource) Stream(ctx context.Context, status *domain.Status, fn func(*domain.Poi) error) error {
	for _, id := range f.ids {
		if err := fn(&domain.Poi{ID: id}); err != nil {
			return err
		}
	}
	return f.err
}

type fakeScores struct {
	mu       sync.Mutex
	avg      float64
	avgErr   error
	fail     map[string]error
	seen     []string
	averages []float64
	avgCalls int
	block    chan struct{}
}

func (f *fakeScores) GlobalAverage(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avgCalls++
	return f.avg, f.avgErr
}

func (f *fakeScores) RecomputeWith(ctx context.Context, poiID string, g float64, trigger string) (float64, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, poiID)
	f.averages = append(f.averages, g)
	if err := f.fail[poiID]; err != nil {
		return 0, err
	}
	return g, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_IsolatesFailures(t *testing.T) {
	source := &fakeSource{ids: []string{"a", "b", "c", "d"}}
	scores := &fakeScores{
		avg: 3.7,
		fail: map[string]error{
			"b": apperrors.Store("update poi score", errors.New("deadlock")),
			"c": apperrors.NotFound("poi", "c"),
		},
	}
	s := New(source, scores, time.Hour, newTestLogger())

	report, err := s.RunOnce(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "b", report.Errors[0].PoiID)
	assert.Contains(t, report.Errors[0].Error, "deadlock")
	assert.Equal(t, "c", report.Errors[1].PoiID)

	// Every Poi was attempted, all against the same average read once.
	assert.Equal(t, []string{"a", "b", "c", "d"}, scores.seen)
	assert.Equal(t, 1, scores.avgCalls)
	for _, g := range scores.averages {
		assert.Equal(t, 3.7, g)
	}
}

func TestRunOnce_EmptyCatalog(t *testing.T) {
	s := New(&fakeSource{}, &fakeScores{avg: 3}, 0, newTestLogger())

	report, err := s.RunOnce(context.Background(), "scheduled")
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.NotNil(t, report.Errors)
	assert.Equal(t, DefaultInterval, s.Interval())
}

func TestRunOnce_GlobalAverageFailureAbortsBeforeAnyPoi(t *testing.T) {
	scores := &fakeScores{avgErr: apperrors.Store("global average rating", errors.New("timeout"))}
	s := New(&fakeSource{ids: []string{"a"}}, scores, time.Hour, newTestLogger())

	_, err := s.RunOnce(context.Background(), "manual")
	assert.ErrorIs(t, err, apperrors.ErrStore)
	assert.Empty(t, scores.seen)
}

func TestRunOnce_ListingFailureKeepsPartialReport(t *testing.T) {
	source := &fakeSource{ids: []string{"a", "b"}, err: errors.New("conn closed")}
	s := New(source, &fakeScores{avg: 3}, time.Hour, newTestLogger())

	report, err := s.RunOnce(context.Background(), "manual")
	assert.ErrorIs(t, err, apperrors.ErrStore)
	assert.Equal(t, 2, report.Updated)
}

func TestRunOnce_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scores := &fakeScores{avg: 3}
	s := New(&fakeSource{ids: []string{"a", "b"}}, scores, time.Hour, newTestLogger())

	_, err := s.RunOnce(ctx, "manual")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, scores.seen)
}

func TestRunOnce_RejectsConcurrentBatch(t *testing.T) {
	scores := &fakeScores{avg: 3, block: make(chan struct{})}
	s := New(&fakeSource{ids: []string{"a"}}, scores, time.Hour, newTestLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background(), "scheduled")
		done <- err
	}()

	require.Eventually(t, s.running.Load, time.Second, time.Millisecond)

	_, err := s.RunOnce(context.Background(), "manual")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	close(scores.block)
	require.NoError(t, <-done)

	// The guard is released once the first batch ends.
	_, err = s.RunOnce(context.Background(), "manual")
	assert.NoError(t, err)
}

func TestRun_TicksUntilCanceled(t *testing.T) {
	var runs atomic.Int32
	source := &countingSource{runs: &runs}
	s := New(source, &fakeScores{avg: 3}, 5*time.Millisecond, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx, "scheduled")
		close(stopped)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type countingSource struct {
	runs *atomic.Int32
}

func (c *countingSource) Stream(ctx context.Context, status *domain.Status, fn func(*domain.Poi) error) error {
	c.runs.Add(1)
	return fn(&domain.Poi{ID: "only"})
}
