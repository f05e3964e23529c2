package status

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event is the payload sent to the webhook endpoint.
type Event struct {
	Type      string `json:"type"` // "run.progress" or "run.terminal"
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// Sign computes the hex HMAC-SHA256 of body with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
// Header: X-Landrec-Signature: sha256=<hex>
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Landrec-Webhook/1.0")

	if secret != "" {
		req.Header.Set("X-Landrec-Signature", "sha256="+Sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// WebhookSink forwards progress and terminal statements to an HTTP
// endpoint. Delivery failures are logged and dropped: status reporting is
// advisory and must never affect the row loop.
type WebhookSink struct {
	URL    string
	Secret string
	RunID  string
}

func (s *WebhookSink) Progress(msg string) { s.send("run.progress", msg) }
func (s *WebhookSink) Terminal(msg string) { s.send("run.terminal", msg) }

func (s *WebhookSink) send(eventType, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := Deliver(ctx, s.URL, s.Secret, &Event{
		Type:      eventType,
		RunID:     s.RunID,
		Timestamp: time.Now().Unix(),
		Message:   msg,
	})
	if err != nil {
		slog.Warn("webhook delivery failed",
			"url", s.URL,
			"event", eventType,
			"error", err,
		)
	}
}
