package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

const DriverWebPush = "webpush"

// ErrSubscriptionExpired is returned when the push service answers 410 Gone.
var ErrSubscriptionExpired = errors.New("push subscription expired")

// WebPushConfig holds the VAPID identity used for every subscription.
type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             time.Duration
	// HTTPClient overrides the client used to reach push services.
	HTTPClient webpush.HTTPClient
}

// Subscription is a browser push subscription.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// WebPushMessage is the JSON the service worker receives.
type WebPushMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Tag   string         `json:"tag,omitempty"`
	URL   string         `json:"url,omitempty"`
	Image string         `json:"image,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

type WebPushSender struct {
	cfg WebPushConfig
}

func NewWebPushSender(cfg WebPushConfig) (*WebPushSender, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, errors.New("webpush: vapid keys are required")
	}
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:notifymanager@localhost"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &WebPushSender{cfg: cfg}, nil
}

// VAPIDPublicKey is handed to browsers when they subscribe.
func (s *WebPushSender) VAPIDPublicKey() string { return s.cfg.VAPIDPublicKey }

// Device returns a handle for one subscription.
func (s *WebPushSender) Device(sub Subscription) (Handle, error) {
	if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return nil, errors.New("webpush: endpoint, p256dh and auth are required")
	}
	return &webpushHandle{s: s, sub: sub}, nil
}

type webpushHandle struct {
	s   *WebPushSender
	sub Subscription
}

func (h *webpushHandle) Send(ctx context.Context, n Notification) error {
	msg := WebPushMessage{Title: n.Title, Body: n.Message, Data: n.Data}
	msg.Tag, _ = n.Data["tag"].(string)
	msg.URL, _ = n.Data["url"].(string)
	msg.Image, _ = n.Data["image"].(string)

	body, err := json.Marshal(msg)
	if err != nil {
		webpushTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: h.sub.Endpoint,
		Keys:     webpush.Keys{P256dh: h.sub.P256dh, Auth: h.sub.Auth},
	}, &webpush.Options{
		HTTPClient:      h.s.cfg.HTTPClient,
		Subscriber:      h.s.cfg.Subscriber,
		TTL:             int(h.s.cfg.TTL.Seconds()),
		Urgency:         urgencyFor(n.Data),
		VAPIDPublicKey:  h.s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: h.s.cfg.VAPIDPrivateKey,
	})
	if err != nil {
		webpushTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		webpushTotal.WithLabelValues("expired").Inc()
		return ErrSubscriptionExpired
	case resp.StatusCode >= 400:
		webpushTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	webpushTotal.WithLabelValues("success").Inc()
	return nil
}

// urgencyFor maps the Android importance key onto the web push urgency header.
func urgencyFor(data map[string]any) webpush.Urgency {
	imp, _ := data["importance"].(string)
	switch imp {
	case "high", "max":
		return webpush.UrgencyHigh
	case "low", "min":
		return webpush.UrgencyLow
	}
	return webpush.UrgencyNormal
}

// GenerateVAPIDKeys returns a fresh (public, private) key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
