package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebhookChannel posts notifications as JSON to a configured URL
type WebhookChannel struct {
	url     string
	secret  string
	headers map[string]string
	client  *http.Client
}

// NewWebhookChannel creates an unconfigured webhook channel
func NewWebhookChannel() *WebhookChannel {
	return &WebhookChannel{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configure expects "url" and optionally "secret" (HMAC signing key)
// plus any number of "header.<Name>" entries
func (w *WebhookChannel) Configure(settings map[string]string) error {
	raw, ok := settings["url"]
	if !ok || raw == "" {
		return errors.New("notify: webhook url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notify: invalid webhook url %q", raw)
	}

	w.url = raw
	w.secret = settings["secret"]
	w.headers = make(map[string]string)
	for k, v := range settings {
		if name, found := strings.CutPrefix(k, "header."); found && name != "" {
			w.headers[name] = v
		}
	}
	return nil
}

// Send delivers one notification
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	if w.url == "" {
		return errors.New("notify: webhook channel not configured")
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	if w.secret != "" {
		req.Header.Set("X-Warden-Signature", sign(payload, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook delivery: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// TestConnection sends a throwaway info notification
func (w *WebhookChannel) TestConnection(ctx context.Context) error {
	return w.Send(ctx, Notification{
		Subject:   "warden connectivity test",
		Severity:  SeverityInfo,
		Timestamp: time.Now(),
	})
}

// sign computes the hex HMAC-SHA256 of the payload
func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
