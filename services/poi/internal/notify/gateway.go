package notify

import (
	"context"
	"fmt"

	"github.com/utafrali/PoiCatalog/pkg/httpclient"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// gatewayRequest is the body POSTed to the notification gateway.
type gatewayRequest struct {
	Kind    domain.NotificationKind `json:"kind"`
	Channel Channel                 `json:"channel"`
	UserID  string                  `json:"user_id,omitempty"`
	To      string                  `json:"to"`
	Data    map[string]string       `json:"data,omitempty"`
}

// GatewayNotifier hands messages to an HTTP email/WhatsApp gateway behind a
// circuit breaker.
type GatewayNotifier struct {
	client *httpclient.CircuitBreakerClient
	url    string
}

// NewGatewayNotifier creates a notifier posting to url.
func NewGatewayNotifier(client *httpclient.CircuitBreakerClient, url string) *GatewayNotifier {
	return &GatewayNotifier{client: client, url: url}
}

// Notify posts one message. Non-2xx responses and an open breaker are errors.
func (g *GatewayNotifier) Notify(ctx context.Context, kind domain.NotificationKind, to domain.Recipient, data map[string]string) error {
	body := gatewayRequest{
		Kind:    kind,
		Channel: ChannelOf(to),
		UserID:  to.UserID,
		To:      to.Email,
		Data:    data,
	}
	if body.Channel == ChannelWhatsApp {
		body.To = to.Phone
	}

	req, err := httpclient.NewJSONRequest(ctx, g.url, body)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("notification gateway: %w", err)
	}
	return resp.Body.Close()
}
