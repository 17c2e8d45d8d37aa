package event

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkgkafka "github.com/utafrali/PoiCatalog/pkg/kafka"
	"github.com/utafrali/PoiCatalog/pkg/logger"
)

// SourcePoiService identifies events written by this service.
const SourcePoiService = "poi-service"

// Aggregate types.
const (
	AggregatePoi    = "poi"
	AggregateReview = "review"
)

// Topics carrying domain events, one per aggregate type.
var (
	TopicPois    = pkgkafka.Topic("catalog", "pois")
	TopicReviews = pkgkafka.Topic("catalog", "reviews")
)

// TopicFor returns the topic for an aggregate type.
func TopicFor(aggregateType string) string {
	if aggregateType == AggregateReview {
		return TopicReviews
	}
	return TopicPois
}

// aggregateOf derives the aggregate type from an event type such as
// "poi.created".
func aggregateOf(eventType string) string {
	if i := strings.IndexByte(eventType, '.'); i > 0 {
		return eventType[:i]
	}
	return eventType
}

var dropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "poi_events_dropped_total",
	Help: "Domain events not delivered to Kafka, by reason.",
}, []string{"reason"})

// Bus is the Kafka side of the publisher. *pkgkafka.Producer satisfies it.
type Bus interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Broadcaster receives every event as it is published. *Hub satisfies it.
type Broadcaster interface {
	Broadcast(event *pkgkafka.Event)
}

// PublisherConfig tunes the outbound queue.
type PublisherConfig struct {
	QueueSize int
	Timeout   time.Duration
}

// DefaultPublisherConfig returns a 1024 event queue and a 5s write timeout.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{QueueSize: 1024, Timeout: 5 * time.Second}
}

// Publisher is the service's event sink. Publish never blocks the caller and
// never fails it: events are queued for a single sender goroutine, which
// keeps per-process publish order, and failures are logged and counted.
type Publisher struct {
	bus     Bus
	local   Broadcaster
	timeout time.Duration
	logger  *slog.Logger

	queue chan *pkgkafka.Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewPublisher starts the sender goroutine. local may be nil; when set it
// receives every event synchronously on Publish.
func NewPublisher(bus Bus, local Broadcaster, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultPublisherConfig().QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPublisherConfig().Timeout
	}
	p := &Publisher{
		bus:     bus,
		local:   local,
		timeout: cfg.Timeout,
		logger:  logger,
		queue:   make(chan *pkgkafka.Event, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish wraps payload in an event envelope and queues it.
func (p *Publisher) Publish(ctx context.Context, eventType, aggregateID string, payload any) {
	log := logger.WithContext(ctx, p.logger)

	evt, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateOf(eventType), SourcePoiService, payload)
	if err != nil {
		dropped.WithLabelValues("encode").Inc()
		log.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("aggregate_id", aggregateID),
			slog.String("error", err.Error()),
		)
		return
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if p.local != nil {
		p.local.Broadcast(evt)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		dropped.WithLabelValues("closed").Inc()
		log.WarnContext(ctx, "event publisher closed, dropping event",
			slog.String("event_type", eventType),
			slog.String("aggregate_id", aggregateID),
		)
		return
	}

	select {
	case p.queue <- evt:
	default:
		dropped.WithLabelValues("queue_full").Inc()
		log.WarnContext(ctx, "event queue full, dropping event",
			slog.String("event_type", eventType),
			slog.String("aggregate_id", aggregateID),
		)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for evt := range p.queue {
		p.send(evt)
	}
}

func (p *Publisher) send(evt *pkgkafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.bus.Publish(ctx, TopicFor(evt.AggregateType), evt); err != nil {
		dropped.WithLabelValues("publish").Inc()
		p.logger.Error("failed to publish event",
			slog.String("event_type", evt.EventType),
			slog.String("aggregate_id", evt.AggregateID),
			slog.String("correlation_id", evt.CorrelationID),
			slog.String("error", err.Error()),
		)
	}
}

// Close stops accepting events and waits for queued ones to be sent or for
// ctx to end.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
