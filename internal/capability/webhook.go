package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	DriverWebhook = "webhook"

	defaultWebhookTimeout = 10 * time.Second
	webhookUserAgent      = "notifymanager/1"
)

// WebhookConfig is shared by every webhook device.
type WebhookConfig struct {
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Retries    int
	Headers    map[string]string
}

// WebhookEnvelope is the JSON body POSTed per notification.
type WebhookEnvelope struct {
	Device  DeviceID       `json:"device"`
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	SentAt  string         `json:"sent_at"`
}

// WebhookClient owns the HTTP client and the rate limiter shared by all
// webhook devices.
type WebhookClient struct {
	http    *http.Client
	limiter *rate.Limiter
	cfg     WebhookConfig
}

func NewWebhookClient(cfg WebhookConfig) *WebhookClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWebhookTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RatePerSec))
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return &WebhookClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: lim,
		cfg:     cfg,
	}
}

// Device returns a handle posting to rawURL.
func (c *WebhookClient) Device(id DeviceID, rawURL string) (Handle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("webhook url must include a host")
	}
	return &webhookHandle{c: c, id: id, url: rawURL}, nil
}

type webhookHandle struct {
	c   *WebhookClient
	id  DeviceID
	url string
}

func (h *webhookHandle) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(WebhookEnvelope{
		Device:  h.id,
		Title:   n.Title,
		Message: n.Message,
		Data:    n.Data,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		webhookRequestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= h.c.cfg.Retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(time.Duration(attempt) * time.Second)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("webhook retry cancelled: %w", ctx.Err())
			}
			webhookRequestsTotal.WithLabelValues("retry").Inc()
		}
		if h.c.limiter != nil {
			if err := h.c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("webhook rate limit: %w", err)
			}
		}
		lastErr = h.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			break
		}
	}
	webhookRequestsTotal.WithLabelValues("error").Inc()
	return lastErr
}

func (h *webhookHandle) post(ctx context.Context, body []byte) error {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	for k, v := range h.c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.c.http.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		webhookRequestDuration.WithLabelValues("error").Observe(elapsed)
		return &webhookError{err: err, retryable: true}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		webhookRequestsTotal.WithLabelValues("success").Inc()
		webhookRequestDuration.WithLabelValues("success").Observe(elapsed)
		return nil
	}
	webhookRequestDuration.WithLabelValues("error").Observe(elapsed)
	return &webhookError{
		err:       fmt.Errorf("webhook returned HTTP %d", resp.StatusCode),
		retryable: resp.StatusCode >= 500,
	}
}

type webhookError struct {
	err       error
	retryable bool
}

func (e *webhookError) Error() string { return e.err.Error() }
func (e *webhookError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var we *webhookError
	if errors.As(err, &we) {
		return we.retryable
	}
	return true
}

// RedactURL hides credentials and query values for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid-url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			q.Set(k, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
