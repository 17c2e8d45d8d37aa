// Package scheduler runs the periodic popularity score batch.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// DefaultInterval is how often the batch runs when no interval is set.
const DefaultInterval = 24 * time.Hour

var (
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "poi_score_batch_duration_seconds",
		Help:    "Duration of full popularity score recompute batches.",
		Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
	})
	batchPois = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_score_batch_pois_total",
		Help: "POIs processed by recompute batches, by outcome.",
	}, []string{"result"})
	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poi_score_batch_last_success_timestamp_seconds",
		Help: "Unix time of the last batch that finished without failures.",
	})
)

// PoiSource streams every Poi. repository.PoiRepository satisfies it.
type PoiSource interface {
	Stream(ctx context.Context, status *domain.Status, fn func(*domain.Poi) error) error
}

// Recomputer refreshes one Poi's score. *service.Recomputer satisfies it.
type Recomputer interface {
	GlobalAverage(ctx context.Context) (float64, error)
	RecomputeWith(ctx context.Context, poiID string, globalAverage float64, trigger string) (float64, error)
}

// Failure is one Poi the batch could not refresh.
type Failure struct {
	PoiID string `json:"poi_id"`
	Error string `json:"error"`
}

// Report summarizes a batch run.
type Report struct {
	Trigger  string        `json:"trigger"`
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Errors   []Failure     `json:"errors"`
	Started  time.Time     `json:"started_at"`
	Duration time.Duration `json:"duration_ns"`
}

// Scheduler recomputes every Poi's score on an interval or on demand. At
// most one batch runs at a time.
type Scheduler struct {
	source   PoiSource
	scores   Recomputer
	interval time.Duration
	logger   *slog.Logger
	running  atomic.Bool
	now      func() time.Time
}

// New creates a Scheduler. A non-positive interval means DefaultInterval.
func New(source PoiSource, scores Recomputer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		source:   source,
		scores:   scores,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Interval returns the time between scheduled runs.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run blocks, starting a batch every interval until ctx is canceled. A
// batch that is still running when the next tick fires is not doubled up.
func (s *Scheduler) Run(ctx context.Context, trigger string) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("score recompute scheduler started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("score recompute scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, trigger); err != nil && !errors.Is(err, apperrors.ErrConflict) {
				s.logger.Error("scheduled score recompute failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce recomputes the score of every Poi. The global average is read
// once for the whole batch. A failure on one Poi is recorded in the report
// and the batch moves on; the returned error is only set when the batch as
// a whole could not run (another batch in progress, the global average or
// the Poi listing failing, or ctx ending).
func (s *Scheduler) RunOnce(ctx context.Context, trigger string) (Report, error) {
	report := Report{Trigger: trigger, Started: s.now(), Errors: []Failure{}}
	if !s.running.CompareAndSwap(false, true) {
		return report, apperrors.Conflict("a score recompute batch is already running")
	}
	defer s.running.Store(false)

	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		batchDuration.Observe(report.Duration.Seconds())
	}()

	g, err := s.scores.GlobalAverage(ctx)
	if err != nil {
		return report, err
	}

	err = s.source.Stream(ctx, nil, func(p *domain.Poi) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Total++
		if _, err := s.scores.RecomputeWith(ctx, p.ID, g, trigger); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, Failure{PoiID: p.ID, Error: err.Error()})
			batchPois.WithLabelValues("failed").Inc()
			s.logger.Warn("poi score recompute failed",
				slog.String("poi_id", p.ID),
				slog.String("trigger", trigger),
				slog.String("error", err.Error()),
			)
			return nil
		}
		report.Updated++
		batchPois.WithLabelValues("updated").Inc()
		return nil
	})

	attrs := []any{
		slog.String("trigger", trigger),
		slog.Int("total", report.Total),
		slog.Int("updated", report.Updated),
		slog.Int("failed", report.Failed),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		if ctx.Err() == nil {
			err = apperrors.Store("stream pois", err)
		}
		s.logger.Error("score recompute batch aborted", append(attrs, slog.String("error", err.Error()))...)
		return report, err
	}
	if report.Failed == 0 {
		lastSuccess.SetToCurrentTime()
	}
	s.logger.Info("score recompute batch finished", attrs...)
	return report, nil
}
