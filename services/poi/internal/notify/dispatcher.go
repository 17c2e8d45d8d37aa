package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

var (
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poi_notifications_total",
		Help: "Notification deliveries by kind, channel and outcome.",
	}, []string{"kind", "channel", "result"})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poi_notification_queue_depth",
		Help: "Notifications waiting for a worker.",
	})
)

// Config sizes the worker pool and the retry policy.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per delivery attempt
	Attempts  int
	Backoff   time.Duration // multiplied by the attempt number
}

// DefaultConfig returns 4 workers, a 256 slot queue, 5s attempts, two
// attempts and 200ms backoff.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 256,
		Timeout:   5 * time.Second,
		Attempts:  2,
		Backoff:   200 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	}
	return c
}

// errQueueFull is the dead-letter cause for notifications dropped at enqueue.
var errQueueFull = errors.New("notification queue full")

// errStopped is the dead-letter cause for notifications enqueued after Stop.
var errStopped = errors.New("notification dispatcher stopped")

// Dispatcher delivers notifications from a bounded queue with a fixed pool
// of workers. Enqueue never blocks; every channel of a recipient is
// delivered and retried on its own.
type Dispatcher struct {
	notifier Notifier
	dead     DeadLetterSink
	cfg      Config
	logger   *slog.Logger

	queue chan domain.Notification
	quit  chan struct{}
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewDispatcher creates a dispatcher. dead may be nil, in which case
// undeliverable notifications are only logged.
func NewDispatcher(notifier Notifier, dead DeadLetterSink, cfg Config, logger *slog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		notifier: notifier,
		dead:     dead,
		cfg:      cfg,
		logger:   logger,
		queue:    make(chan domain.Notification, cfg.QueueSize),
		quit:     make(chan struct{}),
	}
}

// Start launches the workers. Calling it twice has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("notification dispatcher started",
		slog.Int("workers", d.cfg.Workers),
		slog.Int("queue_size", d.cfg.QueueSize),
	)
}

// Enqueue hands n to the pool. It reports false, after logging n as a dead
// letter, when the queue is full or the dispatcher is stopped. Recipients with no
// address are skipped and reported as accepted.
func (d *Dispatcher) Enqueue(n domain.Notification) bool {
	if n.Recipient.Empty() {
		d.logger.Debug("notification has no reachable channel",
			slog.String("kind", string(n.Kind)),
			slog.String("poi_id", n.PoiID),
		)
		return true
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.logDeadLetter(n, "", errStopped)
		return false
	}
	select {
	case d.queue <- n:
		d.mu.RUnlock()
		queueDepth.Inc()
		return true
	default:
		d.mu.RUnlock()
		d.logDeadLetter(n, "", errQueueFull)
		return false
	}
}

// Stop stops accepting notifications and waits for the workers to drain the
// queue. When ctx ends first, in-flight retries are abandoned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for n := range d.queue {
			queueDepth.Dec()
			d.deadLetter(ctx, n, "", errStopped)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(d.quit)
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		queueDepth.Dec()
		d.process(n)
	}
}

func (d *Dispatcher) process(n domain.Notification) {
	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["poi_id"] = n.PoiID

	for _, to := range split(n.Recipient) {
		d.deliver(n, to, data)
	}
}

// deliver sends to a single-address recipient with retries.
func (d *Dispatcher) deliver(n domain.Notification, to domain.Recipient, data map[string]string) {
	channel := ChannelOf(to)
	var err error

	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err = d.notifier.Notify(ctx, n.Kind, to, data)
		cancel()
		if err == nil {
			deliveries.WithLabelValues(string(n.Kind), string(channel), "sent").Inc()
			return
		}

		d.logger.Warn("notification attempt failed",
			slog.String("kind", string(n.Kind)),
			slog.String("channel", string(channel)),
			slog.String("poi_id", n.PoiID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if attempt < d.cfg.Attempts && !d.sleep(time.Duration(attempt)*d.cfg.Backoff) {
			break
		}
	}

	single := n
	single.Recipient = to
	d.deadLetter(context.Background(), single, channel, err)
}

// sleep waits for wait and reports false if the dispatcher was told to quit.
func (d *Dispatcher) sleep(wait time.Duration) bool {
	if wait <= 0 {
		return true
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.quit:
		return false
	}
}

// logDeadLetter records n as undeliverable without touching the sink, so it
// is safe on the request path.
func (d *Dispatcher) logDeadLetter(n domain.Notification, channel Channel, cause error) {
	deliveries.WithLabelValues(string(n.Kind), string(channel), "dead_letter").Inc()
	d.logger.Error("notification dead-lettered",
		slog.String("kind", string(n.Kind)),
		slog.String("channel", string(channel)),
		slog.String("poi_id", n.PoiID),
		slog.String("user_id", n.Recipient.UserID),
		slog.String("error", cause.Error()),
	)
}

// deadLetter logs n and hands it to the sink.
func (d *Dispatcher) deadLetter(ctx context.Context, n domain.Notification, channel Channel, cause error) {
	d.logDeadLetter(n, channel, cause)
	if d.dead == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()
	if err := d.dead.DeadLetter(ctx, n, cause); err != nil {
		d.logger.Error("failed to store dead letter",
			slog.String("kind", string(n.Kind)),
			slog.String("poi_id", n.PoiID),
			slog.String("error", err.Error()),
		)
	}
}
