package event

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkgkafka "github.com/utafrali/PoiCatalog/pkg/kafka"
)

var (
	liveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poi_live_subscribers",
		Help: "Open live event subscriptions.",
	})
	liveDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poi_live_events_dropped_total",
		Help: "Live events skipped because a subscriber's buffer was full.",
	})
)

// Hub fans events out to in-process subscribers. A subscriber that falls
// behind misses events instead of slowing down publishers.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription is one live listener.
type Subscription struct {
	hub    *Hub
	ch     chan *pkgkafka.Event
	filter func(*pkgkafka.Event) bool
	once   sync.Once
}

// C delivers events. It is closed by Close.
func (s *Subscription) C() <-chan *pkgkafka.Event { return s.ch }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
		liveSubscribers.Dec()
	})
}

// Subscribe registers a listener with the given buffer. A nil filter
// accepts every event.
func (h *Hub) Subscribe(buffer int, filter func(*pkgkafka.Event) bool) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{hub: h, ch: make(chan *pkgkafka.Event, buffer), filter: filter}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	liveSubscribers.Inc()
	return s
}

// Broadcast delivers event to every matching subscriber without blocking.
func (h *Hub) Broadcast(event *pkgkafka.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if s.filter != nil && !s.filter(event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			liveDropped.Inc()
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
