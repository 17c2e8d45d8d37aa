package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pkgkafka "github.com/utafrali/PoiCatalog/pkg/kafka"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
	"github.com/utafrali/PoiCatalog/services/poi/internal/event"
)

const (
	streamBuffer    = 64
	streamHeartbeat = 15 * time.Second
)

// StreamHandler serves domain events as server-sent events.
type StreamHandler struct {
	hub       *event.Hub
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a handler reading from hub.
func NewStreamHandler(hub *event.Hub, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger, heartbeat: streamHeartbeat}
}

// Stream handles GET /api/v1/pois/events?types=poi.approved,poi.rescored&poi_id=
// A client that cannot keep up misses events rather than slowing writers.
// Callers who are not moderators only get events about approved POIs.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server write timeout would cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	filter := streamFilter(r)
	if !actorFrom(r).Moderator {
		filter = publicOnly(filter)
	}
	sub := h.hub.Subscribe(streamBuffer, filter)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(r.Context(), "live stream not supported by writer", slog.String("error", err.Error()))
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeEvent(w, evt); err != nil {
				h.logger.DebugContext(r.Context(), "live stream closed", slog.String("error", err.Error()))
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, evt *pkgkafka.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.EventID, evt.EventType, data)
	return err
}

// streamFilter narrows the stream by event type and aggregate id.
func streamFilter(r *http.Request) func(*pkgkafka.Event) bool {
	q := r.URL.Query()
	types := make(map[string]struct{})
	for _, t := range strings.Split(q.Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = struct{}{}
		}
	}
	poiID := q.Get("poi_id")
	if len(types) == 0 && poiID == "" {
		return nil
	}

	return func(evt *pkgkafka.Event) bool {
		if len(types) > 0 {
			if _, ok := types[evt.EventType]; !ok {
				return false
			}
		}
		return poiID == "" || evt.AggregateID == poiID
	}
}

// publicOnly drops poi.* events whose Poi is not approved, then applies next.
func publicOnly(next func(*pkgkafka.Event) bool) func(*pkgkafka.Event) bool {
	return func(evt *pkgkafka.Event) bool {
		if !publicEvent(evt) {
			return false
		}
		return next == nil || next(evt)
	}
}

func publicEvent(evt *pkgkafka.Event) bool {
	if !strings.HasPrefix(evt.EventType, "poi.") || evt.EventType == domain.EventPoiRescored {
		return true
	}
	var payload domain.PoiEvent
	if err := json.Unmarshal(evt.Data, &payload); err != nil || payload.Poi == nil {
		return false
	}
	return payload.Poi.Status == domain.StatusApproved
}
