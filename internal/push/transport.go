package push

import (
	"context"
	"io"
	"strings"

	"cakeshop-notifier/internal/common/config"
	"cakeshop-notifier/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Transport delivers one encrypted message and reports the push service's
// HTTP status.
type Transport interface {
	Deliver(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error)
}

// WebPushTransport signs requests with the VAPID key pair and encrypts
// payloads for the subscription keys.
type WebPushTransport struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	client     webpush.HTTPClient
}

// NewWebPushTransport returns nil when the VAPID keys are not configured.
func NewWebPushTransport(cfg config.PushConfig, client webpush.HTTPClient) *WebPushTransport {
	if !cfg.Enabled() {
		return nil
	}
	return &WebPushTransport{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: strings.TrimPrefix(cfg.Subject, "mailto:"),
		ttl:        cfg.TTL,
		client:     client,
	}
}

func (t *WebPushTransport) PublicKey() string { return t.publicKey }

func (t *WebPushTransport) Deliver(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Keys.Auth,
			P256dh: sub.Keys.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      t.subscriber,
		TTL:             t.ttl,
		Urgency:         webpush.UrgencyHigh,
		VAPIDPublicKey:  t.publicKey,
		VAPIDPrivateKey: t.privateKey,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
