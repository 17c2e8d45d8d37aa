// Package notify delivers best-effort messages to Poi submitters. Nothing
// here can fail the request that triggered a message.
package notify

import (
	"context"
	"log/slog"

	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Notifier sends one message to one recipient. Recipients passed by the
// Dispatcher carry exactly one address.
type Notifier interface {
	Notify(ctx context.Context, kind domain.NotificationKind, to domain.Recipient, data map[string]string) error
}

// ChannelOf returns the channel of a single-address recipient.
func ChannelOf(to domain.Recipient) Channel {
	if to.Email != "" {
		return ChannelEmail
	}
	return ChannelWhatsApp
}

// split turns a recipient into one recipient per reachable channel.
func split(r domain.Recipient) []domain.Recipient {
	var out []domain.Recipient
	if r.Email != "" {
		out = append(out, domain.Recipient{UserID: r.UserID, Email: r.Email})
	}
	if r.Phone != "" {
		out = append(out, domain.Recipient{UserID: r.UserID, Phone: r.Phone})
	}
	return out
}

// LogNotifier writes messages to the log. It is used when no gateway is
// configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message and succeeds.
func (n *LogNotifier) Notify(ctx context.Context, kind domain.NotificationKind, to domain.Recipient, data map[string]string) error {
	n.logger.InfoContext(ctx, "notification sent",
		slog.String("kind", string(kind)),
		slog.String("channel", string(ChannelOf(to))),
		slog.String("user_id", to.UserID),
		slog.String("poi_id", data["poi_id"]),
	)
	return nil
}
