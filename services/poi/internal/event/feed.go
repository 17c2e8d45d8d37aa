package event

import (
	"context"

	pkgkafka "github.com/utafrali/PoiCatalog/pkg/kafka"
)

// HubFeed returns a consumer handler that forwards every consumed event to
// hub. Wrap it with pkgkafka.IdempotentHandler so redelivered messages are
// not shown twice.
func HubFeed(hub *Hub) pkgkafka.Handler {
	return func(_ context.Context, event *pkgkafka.Event) error {
		hub.Broadcast(event)
		return nil
	}
}
